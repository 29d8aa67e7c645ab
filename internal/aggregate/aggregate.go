// Package aggregate reduces scored articles into per-ticker daily rows.
package aggregate

import (
	"math"
	"sort"
	"time"

	"tigro/internal/domain"
	"tigro/internal/universe"
)

// Sub-windows reported next to the full-window mean.
const (
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 30 * 24 * time.Hour
)

// Aggregate builds one SnapshotRow per universe ticker from the records
// published in [asOf - window, asOf]. Tickers without articles get a no-data
// row; records for tickers outside the universe are ignored. Rows are sorted
// by ticker.
func Aggregate(u *universe.Universe, records []domain.ArticleRecord, asOf time.Time, window time.Duration) []domain.SnapshotRow {
	start := asOf.Add(-window)

	byTicker := make(map[string][]domain.ArticleRecord, u.Len())
	for _, r := range records {
		if !u.Contains(r.Ticker) {
			continue
		}
		if r.Published.Before(start) || r.Published.After(asOf) {
			continue
		}
		if math.IsNaN(r.Combined) || math.IsInf(r.Combined, 0) {
			continue
		}
		byTicker[r.Ticker] = append(byTicker[r.Ticker], r)
	}

	tickers := u.Tickers()
	sort.Strings(tickers)

	rows := make([]domain.SnapshotRow, 0, len(tickers))
	for _, t := range tickers {
		row := domain.SnapshotRow{
			Ticker:  t,
			Company: u.Company(t),
			AsOf:    asOf,
		}
		if recs := byTicker[t]; len(recs) > 0 {
			fill(&row, recs, asOf)
		}
		rows = append(rows, row)
	}
	return rows
}

func fill(row *domain.SnapshotRow, recs []domain.ArticleRecord, asOf time.Time) {
	weekStart, monthStart := asOf.Add(-WeekWindow), asOf.Add(-MonthWindow)

	all := make([]float64, 0, len(recs))
	var week, month []float64
	var pos, neg int
	for _, r := range recs {
		all = append(all, r.Combined)
		if !r.Published.Before(weekStart) {
			week = append(week, r.Combined)
		}
		if !r.Published.Before(monthStart) {
			month = append(month, r.Combined)
		}
		switch {
		case r.HeadlineScore > 0:
			pos++
		case r.HeadlineScore < 0:
			neg++
		}
	}

	row.ArticleCount = len(all)
	row.MeanScore, row.StdDev = MeanStd(all)
	if len(week) > 0 {
		row.WeekScore, _ = MeanStd(week)
		row.HasWeek = true
	}
	if len(month) > 0 {
		row.MonthScore, _ = MeanStd(month)
		row.HasMonth = true
	}
	row.PositiveRatio = float64(pos) / float64(len(all))
	row.NegativeRatio = float64(neg) / float64(len(all))
}

// MeanStd returns the mean and population standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
