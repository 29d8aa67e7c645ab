package aggregate

import (
	"math"
	"testing"
	"time"

	"tigro/internal/domain"
	"tigro/internal/universe"
)

func TestAggregate(t *testing.T) {
	u := universe.New([]universe.Entry{
		{Symbol: "MSFT", Company: "Microsoft"},
		{Symbol: "AAPL", Company: "Apple"},
		{Symbol: "QUIET", Company: "Quiet Corp"},
	})
	asOf := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	recs := []domain.ArticleRecord{
		{Ticker: "AAPL", Combined: 0.2, Published: asOf.Add(-time.Hour)},
		{Ticker: "AAPL", Combined: 0.4, Published: asOf.Add(-48 * time.Hour)},
		{Ticker: "AAPL", Combined: 0.9, Published: asOf.Add(-40 * 24 * time.Hour)}, // outside window
		{Ticker: "MSFT", Combined: -0.5, Published: asOf.Add(-2 * time.Hour)},
		{Ticker: "OTHER", Combined: 1, Published: asOf.Add(-time.Hour)},
		{Ticker: "MSFT", Combined: math.NaN(), Published: asOf.Add(-time.Hour)},
	}

	rows := Aggregate(u, recs, asOf, window)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	want := []struct {
		ticker string
		count  int
		mean   float64
		std    float64
	}{
		{"AAPL", 2, 0.3, 0.1},
		{"MSFT", 1, -0.5, 0},
		{"QUIET", 0, 0, 0},
	}
	for i, w := range want {
		r := rows[i]
		if r.Ticker != w.ticker {
			t.Errorf("rows[%d].Ticker = %s, want %s", i, r.Ticker, w.ticker)
		}
		if r.ArticleCount != w.count {
			t.Errorf("%s ArticleCount = %d, want %d", w.ticker, r.ArticleCount, w.count)
		}
		if math.Abs(r.MeanScore-w.mean) > 1e-9 {
			t.Errorf("%s MeanScore = %v, want %v", w.ticker, r.MeanScore, w.mean)
		}
		if math.Abs(r.StdDev-w.std) > 1e-9 {
			t.Errorf("%s StdDev = %v, want %v", w.ticker, r.StdDev, w.std)
		}
		if !r.AsOf.Equal(asOf) {
			t.Errorf("%s AsOf = %v, want %v", w.ticker, r.AsOf, asOf)
		}
	}
	if rows[2].HasData() {
		t.Error("QUIET should be a no-data row")
	}
	if rows[0].Company != "Apple" {
		t.Errorf("AAPL Company = %q, want Apple", rows[0].Company)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 || std != 2 {
		t.Errorf("MeanStd = %v,%v, want 5,2", mean, std)
	}
	if m, s := MeanStd(nil); m != 0 || s != 0 {
		t.Errorf("MeanStd(nil) = %v,%v, want 0,0", m, s)
	}
}

func TestAggregateWindowBoundsInclusive(t *testing.T) {
	u := universe.New([]universe.Entry{{Symbol: "AAPL", Company: "Apple"}})
	asOf := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	recs := []domain.ArticleRecord{
		{Ticker: "AAPL", Combined: 0.2, Published: asOf.Add(-window)},
		{Ticker: "AAPL", Combined: 0.4, Published: asOf},
		{Ticker: "AAPL", Combined: 0.9, Published: asOf.Add(-window - time.Millisecond)},
		{Ticker: "AAPL", Combined: 0.9, Published: asOf.Add(time.Millisecond)},
	}

	rows := Aggregate(u, recs, asOf, window)
	if rows[0].ArticleCount != 2 {
		t.Fatalf("ArticleCount = %d, want 2 (both window edges included)", rows[0].ArticleCount)
	}
	if math.Abs(rows[0].MeanScore-0.3) > 1e-9 {
		t.Errorf("MeanScore = %v, want 0.3", rows[0].MeanScore)
	}
}

func TestAggregateSubWindowsAndRatios(t *testing.T) {
	u := universe.New([]universe.Entry{
		{Symbol: "AAPL", Company: "Apple"},
		{Symbol: "OLD", Company: "Old News"},
		{Symbol: "QUIET", Company: "Quiet Corp"},
	})
	asOf := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	recs := []domain.ArticleRecord{
		{Ticker: "AAPL", Combined: 0.6, HeadlineScore: 0.9, Published: asOf.Add(-day)},
		{Ticker: "AAPL", Combined: 0.2, HeadlineScore: 0, Published: asOf.Add(-7 * day)},
		{Ticker: "AAPL", Combined: -0.2, HeadlineScore: -0.8, Published: asOf.Add(-20 * day)},
		{Ticker: "AAPL", Combined: -0.6, HeadlineScore: -0.7, Published: asOf.Add(-40 * day)},
		{Ticker: "OLD", Combined: 0.5, HeadlineScore: 0.5, Published: asOf.Add(-50 * day)},
	}

	rows := Aggregate(u, recs, asOf, 60*day)
	aapl, old, quiet := rows[0], rows[1], rows[2]

	if aapl.ArticleCount != 4 || math.Abs(aapl.MeanScore-0) > 1e-9 {
		t.Errorf("AAPL = %d articles, mean %v; want 4, 0", aapl.ArticleCount, aapl.MeanScore)
	}
	if !aapl.HasWeek || math.Abs(aapl.WeekScore-0.4) > 1e-9 {
		t.Errorf("AAPL WeekScore = %v (%v), want 0.4", aapl.WeekScore, aapl.HasWeek)
	}
	if !aapl.HasMonth || math.Abs(aapl.MonthScore-0.2) > 1e-9 {
		t.Errorf("AAPL MonthScore = %v (%v), want 0.2", aapl.MonthScore, aapl.HasMonth)
	}
	if aapl.PositiveRatio != 0.25 || aapl.NegativeRatio != 0.5 {
		t.Errorf("AAPL ratios = %v/%v, want 0.25/0.5", aapl.PositiveRatio, aapl.NegativeRatio)
	}

	if !old.HasData() || old.HasWeek || old.HasMonth {
		t.Errorf("OLD = %+v, want data without 7d/30d scores", old)
	}
	if old.PositiveRatio != 1 {
		t.Errorf("OLD PositiveRatio = %v, want 1", old.PositiveRatio)
	}
	if quiet.HasData() || quiet.HasWeek || quiet.HasMonth {
		t.Errorf("QUIET = %+v, want no data", quiet)
	}
}
