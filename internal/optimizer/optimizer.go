// Package optimizer proposes a long-only, capped, maximum-Sharpe allocation
// over the universe, with expected returns tilted by news sentiment. Its
// output is advisory and never feeds back into the sentiment pipeline.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tigro/internal/config"
)

// ErrNoData is returned when no ticker has enough price history.
var ErrNoData = errors.New("no ticker has enough price history")

// Optimizer runs the allocation.
type Optimizer struct {
	cfg    config.OptimizerConfig
	prices PriceSource
	log    *slog.Logger
	now    func() time.Time
}

// New creates an Optimizer.
func New(cfg config.OptimizerConfig, prices PriceSource, log *slog.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, prices: prices, log: log, now: time.Now}
}

// Run fetches prices for tickers, tilts expected returns by scores (which
// may be nil) and solves for the allocation.
func (o *Optimizer) Run(ctx context.Context, tickers []string, scores map[string]float64) (*Report, error) {
	end := o.now().UTC()
	start := end.AddDate(0, 0, -o.cfg.LookbackDays)

	closes, err := o.prices.DailyCloses(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	if closes == nil {
		closes = make(map[string][]Close)
	}
	for _, t := range tickers {
		if _, ok := closes[t]; !ok {
			closes[t] = nil
		}
	}

	in := Estimate(closes, o.log)
	if len(in.Tickers) == 0 {
		return nil, ErrNoData
	}
	in.Tilt(scores, o.cfg.Alpha)

	w := Solve(in, o.cfg.RiskFreeRate, o.cfg.MaxWeight, o.cfg.Iterations)
	stats := Evaluate(in, w, o.cfg.RiskFreeRate)
	v := ValueAtRisk(stats, o.cfg.Confidence)

	capital := decimal.NewFromFloat(o.cfg.Capital)
	r := &Report{
		GeneratedAt:  end,
		Start:        start,
		End:          end,
		Observations: in.Observations,
		Dropped:      in.Dropped,
		Stats:        stats,
		RiskFreeRate: o.cfg.RiskFreeRate,
		Confidence:   o.cfg.Confidence,
		VaR:          v,
		VaRAmount:    formatMoney(capital.Mul(decimal.NewFromFloat(v)), o.cfg.Currency),
		Capital:      formatMoney(capital, o.cfg.Currency),
		Allocations:  buildAllocations(in, w, scores, o.cfg.Capital, o.cfg.Currency),
	}

	o.log.Info("optimization complete",
		"tickers", len(in.Tickers),
		"dropped", len(in.Dropped),
		"return", stats.Return,
		"volatility", stats.Volatility,
		"sharpe", stats.Sharpe,
	)
	return r, nil
}
