// Package trend classifies how each ticker's sentiment moved between a
// historical snapshot and the current one.
package trend

import (
	"log/slog"
	"math"
	"sort"

	"tigro/internal/domain"
)

// Config holds the classification constants. Both come from configuration.
type Config struct {
	// Threshold is the relative change beyond which a move counts as UP or
	// DOWN. A change of exactly Threshold is STABLE.
	Threshold float64
	// ZeroEpsilon is the magnitude below which a score is treated as zero and
	// the float noise tolerated at the threshold boundary.
	ZeroEpsilon float64
}

// DefaultConfig returns the standard 5% threshold.
func DefaultConfig() Config {
	return Config{Threshold: 0.05, ZeroEpsilon: 1e-9}
}

// Compute returns one TrendRecord per well-formed ticker in current, sorted by
// ticker. Tickers only present in historical never produce a record. The
// function is pure: identical inputs yield identical outputs.
func Compute(current, historical map[string]domain.SnapshotRow, window int, cfg Config, log *slog.Logger) []domain.TrendRecord {
	tickers := make([]string, 0, len(current))
	for t := range current {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	out := make([]domain.TrendRecord, 0, len(tickers))
	for _, t := range tickers {
		cur := current[t]
		if t == "" || cur.Ticker != t || (cur.HasData() && !finite(cur.MeanScore)) {
			log.Warn("skipping malformed current row", "ticker", t, "window", window)
			continue
		}

		hist, ok := historical[t]
		if ok && hist.HasData() && !finite(hist.MeanScore) {
			log.Warn("ignoring malformed historical row", "ticker", t, "window", window)
			ok = false
		}

		out = append(out, classify(cur, hist, ok && hist.HasData(), window, cfg))
	}
	return out
}

func classify(cur, hist domain.SnapshotRow, hasHist bool, window int, cfg Config) domain.TrendRecord {
	rec := domain.TrendRecord{
		Ticker:     cur.Ticker,
		Window:     window,
		HasCurrent: cur.HasData(),
	}
	if cur.HasData() {
		rec.Current = cur.MeanScore
	}

	if !hasHist {
		rec.Label = domain.TrendNew
		return rec
	}
	rec.Historical = hist.MeanScore
	rec.HasHistorical = true

	// Nothing measurable today; the ticker is known, so not NEW.
	if !cur.HasData() {
		rec.Label = domain.TrendStable
		return rec
	}

	eps := cfg.ZeroEpsilon
	c, h := cur.MeanScore, hist.MeanScore

	// Zero baseline: relative change is undefined, use the sign of current.
	if math.Abs(h) <= eps {
		switch {
		case c > eps:
			rec.Label = domain.TrendUp
		case c < -eps:
			rec.Label = domain.TrendDown
		default:
			rec.Label = domain.TrendStable
		}
		return rec
	}

	pct := (c - h) / math.Abs(h)
	rec.PctChange = pct
	rec.HasPct = true
	switch {
	case pct > cfg.Threshold+eps:
		rec.Label = domain.TrendUp
	case pct < -cfg.Threshold-eps:
		rec.Label = domain.TrendDown
	default:
		rec.Label = domain.TrendStable
	}
	return rec
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ---------------------------------------------------------------------------
// Helpers over computed records
// ---------------------------------------------------------------------------

// Orphans returns tickers present in the historical snapshot but not in the
// current universe, sorted.
func Orphans(universe []string, historical map[string]domain.SnapshotRow) []string {
	known := make(map[string]bool, len(universe))
	for _, t := range universe {
		known[t] = true
	}
	var out []string
	for t := range historical {
		if t != "" && !known[t] {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Decliners returns the DOWN records ordered by the size of the drop, most
// negative first. Zero-baseline drops, which carry no percentage, follow in
// order of their current score. n <= 0 returns all of them.
func Decliners(records []domain.TrendRecord, n int) []domain.TrendRecord {
	var down []domain.TrendRecord
	for _, r := range records {
		if r.Label == domain.TrendDown {
			down = append(down, r)
		}
	}
	sort.SliceStable(down, func(i, j int) bool {
		a, b := down[i], down[j]
		if a.HasPct != b.HasPct {
			return a.HasPct
		}
		if a.HasPct && a.PctChange != b.PctChange {
			return a.PctChange < b.PctChange
		}
		if !a.HasPct && a.Current != b.Current {
			return a.Current < b.Current
		}
		return a.Ticker < b.Ticker
	})
	if n > 0 && len(down) > n {
		down = down[:n]
	}
	return down
}

// Counts tallies records per label.
func Counts(records []domain.TrendRecord) map[domain.TrendLabel]int {
	m := make(map[domain.TrendLabel]int, 4)
	for _, r := range records {
		m[r.Label]++
	}
	return m
}
