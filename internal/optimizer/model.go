package optimizer

import (
	"log/slog"
	"math"
	"sort"
	"time"
)

// TradingDays annualises daily statistics.
const TradingDays = 252

// Inputs are the annualised estimates the solver works on. Mean[i] and
// Cov[i] refer to Tickers[i].
type Inputs struct {
	Tickers      []string
	Mean         []float64
	Cov          [][]float64
	Observations int
	Dropped      []string
}

// Estimate aligns closes on the dates shared by every kept ticker, computes
// daily simple returns and annualises their mean and sample covariance.
// Tickers with fewer than two returns are dropped with a warning.
func Estimate(closes map[string][]Close, log *slog.Logger) Inputs {
	var in Inputs

	symbols := make([]string, 0, len(closes))
	for sym := range closes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if len(validCloses(closes[sym])) < 3 {
			log.Warn("dropping ticker with too little price history", "ticker", sym, "closes", len(closes[sym]))
			in.Dropped = append(in.Dropped, sym)
			continue
		}
		in.Tickers = append(in.Tickers, sym)
	}
	if len(in.Tickers) == 0 {
		return in
	}

	dates := commonDates(closes, in.Tickers)
	if len(dates) < 3 {
		log.Warn("too few common trading days", "days", len(dates), "tickers", len(in.Tickers))
		in.Dropped = append(in.Dropped, in.Tickers...)
		sort.Strings(in.Dropped)
		in.Tickers = nil
		return in
	}

	returns := make([][]float64, len(in.Tickers))
	for i, sym := range in.Tickers {
		byDate := make(map[time.Time]float64, len(closes[sym]))
		for _, c := range validCloses(closes[sym]) {
			byDate[c.Date.Truncate(24*time.Hour)] = c.Price
		}
		r := make([]float64, 0, len(dates)-1)
		for k := 1; k < len(dates); k++ {
			prev, cur := byDate[dates[k-1]], byDate[dates[k]]
			r = append(r, cur/prev-1)
		}
		returns[i] = r
	}

	n := len(in.Tickers)
	obs := len(returns[0])
	in.Observations = obs
	in.Mean = make([]float64, n)
	for i := range returns {
		in.Mean[i] = mean(returns[i]) * TradingDays
	}

	in.Cov = make([][]float64, n)
	for i := range in.Cov {
		in.Cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		mi := in.Mean[i] / TradingDays
		for j := i; j < n; j++ {
			mj := in.Mean[j] / TradingDays
			var s float64
			for k := 0; k < obs; k++ {
				s += (returns[i][k] - mi) * (returns[j][k] - mj)
			}
			c := s / float64(obs-1) * TradingDays
			in.Cov[i][j] = c
			in.Cov[j][i] = c
		}
	}
	return in
}

// Tilt adds alpha times the sentiment score to each ticker's expected
// return. Tickers without a score are unchanged.
func (in *Inputs) Tilt(scores map[string]float64, alpha float64) {
	if alpha == 0 {
		return
	}
	for i, sym := range in.Tickers {
		if s, ok := scores[sym]; ok && !math.IsNaN(s) {
			in.Mean[i] += alpha * s
		}
	}
}

func validCloses(cs []Close) []Close {
	out := cs[:0:0]
	for _, c := range cs {
		if c.Price > 0 && !math.IsNaN(c.Price) && !math.IsInf(c.Price, 0) {
			out = append(out, c)
		}
	}
	return out
}

// commonDates returns the sorted trading days present for every ticker.
func commonDates(closes map[string][]Close, tickers []string) []time.Time {
	counts := make(map[time.Time]int)
	for _, sym := range tickers {
		seen := make(map[time.Time]bool)
		for _, c := range validCloses(closes[sym]) {
			d := c.Date.Truncate(24 * time.Hour)
			if !seen[d] {
				seen[d] = true
				counts[d]++
			}
		}
	}
	var dates []time.Time
	for d, n := range counts {
		if n == len(tickers) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
