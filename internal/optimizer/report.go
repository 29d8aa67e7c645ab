package optimizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Allocation is one position in the proposed portfolio.
type Allocation struct {
	Ticker         string
	Weight         float64
	Amount         string
	ExpectedReturn float64
	Sentiment      float64
	HasSentiment   bool
}

// Report is the optimizer's advisory output.
type Report struct {
	GeneratedAt  time.Time
	Start, End   time.Time
	Observations int
	Dropped      []string
	Stats        Stats
	RiskFreeRate float64
	Confidence   float64
	VaR          float64
	VaRAmount    string
	Capital      string
	Allocations  []Allocation
}

// minWeight hides positions too small to act on.
const minWeight = 0.0005

// formatMoney renders amount in currency using its minor-unit fraction.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	return money.New(amount.Mul(factor).Round(0).IntPart(), currency).Display()
}

// buildAllocations converts weights into sorted allocations of capital.
func buildAllocations(in Inputs, w []float64, scores map[string]float64, capital float64, currency string) []Allocation {
	total := decimal.NewFromFloat(capital)
	var out []Allocation
	for i, sym := range in.Tickers {
		if w[i] < minWeight {
			continue
		}
		a := Allocation{
			Ticker:         sym,
			Weight:         w[i],
			Amount:         formatMoney(total.Mul(decimal.NewFromFloat(w[i])), currency),
			ExpectedReturn: in.Mean[i],
		}
		if s, ok := scores[sym]; ok {
			a.Sentiment = s
			a.HasSentiment = true
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// Markdown renders the report for the terminal.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Portfolio Optimization (advisory)\n\n")
	fmt.Fprintf(&b, "Price history %s to %s, %d daily returns.\n\n",
		r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly), r.Observations)

	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Capital | %s |\n", r.Capital)
	fmt.Fprintf(&b, "| Expected return | %.2f%% |\n", r.Stats.Return*100)
	fmt.Fprintf(&b, "| Volatility | %.2f%% |\n", r.Stats.Volatility*100)
	fmt.Fprintf(&b, "| Sharpe (rf %.2f%%) | %.3f |\n", r.RiskFreeRate*100, r.Stats.Sharpe)
	fmt.Fprintf(&b, "| VaR %.0f%% | %.2f%% (%s) |\n\n", r.Confidence*100, r.VaR*100, r.VaRAmount)

	b.WriteString("## Allocation\n\n")
	if len(r.Allocations) == 0 {
		b.WriteString("No allocation.\n")
	} else {
		b.WriteString("| Ticker | Weight | Amount | Exp. return | Sentiment |\n|---|---:|---:|---:|---:|\n")
		for _, a := range r.Allocations {
			sent := "-"
			if a.HasSentiment {
				sent = fmt.Sprintf("%+.3f", a.Sentiment)
			}
			fmt.Fprintf(&b, "| %s | %.1f%% | %s | %.1f%% | %s |\n",
				a.Ticker, a.Weight*100, a.Amount, a.ExpectedReturn*100, sent)
		}
	}

	if len(r.Dropped) > 0 {
		fmt.Fprintf(&b, "\nDropped for insufficient history: %s\n", strings.Join(r.Dropped, ", "))
	}
	return b.String()
}
