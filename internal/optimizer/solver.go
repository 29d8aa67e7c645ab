package optimizer

import (
	"math"
)

// Portfolio statistics for a weight vector.
type Stats struct {
	Return     float64
	Volatility float64
	Sharpe     float64
}

// Evaluate computes annualised return, volatility and Sharpe ratio.
func Evaluate(in Inputs, w []float64, rf float64) Stats {
	var s Stats
	for i := range w {
		s.Return += w[i] * in.Mean[i]
	}
	s.Volatility = math.Sqrt(math.Max(0, quad(in.Cov, w)))
	if s.Volatility > 0 {
		s.Sharpe = (s.Return - rf) / s.Volatility
	}
	return s
}

// Solve maximises the Sharpe ratio over long-only weights summing to one,
// each at most maxWeight, by projected gradient ascent from equal weights.
// It runs exactly iterations steps and returns the best weights seen, so the
// result is deterministic. When maxWeight*n < 1 the cap is raised to 1/n.
func Solve(in Inputs, rf, maxWeight float64, iterations int) []float64 {
	n := len(in.Tickers)
	if n == 0 {
		return nil
	}
	if maxWeight*float64(n) < 1 {
		maxWeight = 1 / float64(n)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	best := append([]float64(nil), w...)
	bestSharpe := Evaluate(in, w, rf).Sharpe

	grad := make([]float64, n)
	for k := 0; k < iterations; k++ {
		sharpeGradient(in, w, rf, grad)
		norm := 0.0
		for _, g := range grad {
			norm += g * g
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			break
		}

		step := 0.1 / math.Sqrt(float64(k+1))
		for i := range w {
			w[i] += step * grad[i] / norm
		}
		projectCappedSimplex(w, maxWeight)

		if s := Evaluate(in, w, rf).Sharpe; s > bestSharpe {
			bestSharpe = s
			copy(best, w)
		}
	}
	return best
}

// sharpeGradient writes d(Sharpe)/dw into grad.
func sharpeGradient(in Inputs, w []float64, rf float64, grad []float64) {
	n := len(w)
	sw := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sw[i] += in.Cov[i][j] * w[j]
		}
	}
	var ret, variance float64
	for i := 0; i < n; i++ {
		ret += w[i] * in.Mean[i]
		variance += w[i] * sw[i]
	}
	if variance <= 0 {
		copy(grad, in.Mean)
		return
	}
	sigma := math.Sqrt(variance)
	excess := ret - rf
	for i := 0; i < n; i++ {
		grad[i] = in.Mean[i]/sigma - excess*sw[i]/(sigma*variance)
	}
}

// projectCappedSimplex projects v in place onto {0 <= x <= c, sum(x) = 1}.
// The projection is clamp(v - tau, 0, c) for the tau found by bisection.
func projectCappedSimplex(v []float64, c float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	lo -= c + 1
	hi += 1

	sum := func(tau float64) float64 {
		var s float64
		for _, x := range v {
			s += math.Max(0, math.Min(c, x-tau))
		}
		return s
	}
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if sum(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	tau := (lo + hi) / 2
	for i, x := range v {
		v[i] = math.Max(0, math.Min(c, x-tau))
	}
}

func quad(m [][]float64, w []float64) float64 {
	var s float64
	for i := range w {
		for j := range w {
			s += w[i] * m[i][j] * w[j]
		}
	}
	return s
}

// ValueAtRisk is the parametric annual VaR at the given confidence:
// return - z*volatility, where z is the standard normal quantile.
func ValueAtRisk(s Stats, confidence float64) float64 {
	z := math.Sqrt2 * math.Erfinv(2*confidence-1)
	return s.Return - z*s.Volatility
}
