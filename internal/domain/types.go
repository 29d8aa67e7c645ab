// Package domain defines the core types shared across the sentiment pipeline:
// scored articles, daily snapshot rows and trend records.
package domain

import (
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// Articles
// ---------------------------------------------------------------------------

// ArticleRecord is a news article after scoring. Records are immutable once
// produced by the scorer.
type ArticleRecord struct {
	Ticker        string
	ArticleID     string
	Source        string
	Headline      string
	Body          string
	URL           string
	Published     time.Time
	HeadlineScore float64
	BodyScore     float64
	HasBody       bool
	Combined      float64
	ScoredAt      time.Time
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// SnapshotRow is the per-ticker aggregate for one day. MeanScore, StdDev and
// the ratios are meaningless when ArticleCount is zero; WeekScore and
// MonthScore only when HasWeek and HasMonth are set.
type SnapshotRow struct {
	Ticker       string
	Company      string
	AsOf         time.Time
	MeanScore    float64
	ArticleCount int
	StdDev       float64

	WeekScore  float64 // mean over the last 7 days
	HasWeek    bool
	MonthScore float64 // mean over the last 30 days
	HasMonth   bool

	// Share of articles whose headline was classified positive or negative.
	PositiveRatio float64
	NegativeRatio float64
}

// HasData reports whether the row is backed by at least one article.
func (r SnapshotRow) HasData() bool {
	return r.ArticleCount > 0
}

// Snapshot is one immutable day's set of rows.
type Snapshot struct {
	ID        string
	AsOf      time.Time
	CreatedAt time.Time
	Rows      []SnapshotRow
}

// ByTicker indexes the snapshot rows by ticker. Later duplicates win.
func (s *Snapshot) ByTicker() map[string]SnapshotRow {
	m := make(map[string]SnapshotRow, len(s.Rows))
	for _, r := range s.Rows {
		m[r.Ticker] = r
	}
	return m
}

// Tickers returns the sorted tickers present in the snapshot.
func (s *Snapshot) Tickers() []string {
	out := make([]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, r.Ticker)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Trends
// ---------------------------------------------------------------------------

// TrendLabel classifies the change of a ticker's score over a window.
type TrendLabel string

const (
	TrendUp     TrendLabel = "UP"
	TrendDown   TrendLabel = "DOWN"
	TrendStable TrendLabel = "STABLE"
	TrendNew    TrendLabel = "NEW"
)

// TrendRecord compares a ticker's current score against a historical one.
// Historical is only meaningful when HasHistorical is set, PctChange only
// when HasPct is set.
type TrendRecord struct {
	Ticker        string
	Current       float64
	HasCurrent    bool
	Historical    float64
	HasHistorical bool
	PctChange     float64
	HasPct        bool
	Label         TrendLabel
	Window        int // lookback in days
}
