// Package mailer builds the daily declining-sentiment digest and delivers it
// over authenticated SMTP.
package mailer

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"tigro/internal/aggregate"
	"tigro/internal/domain"
	"tigro/internal/trend"
)

// Alert is one flagged ticker.
type Alert struct {
	Ticker    string
	Company   string
	Current   float64
	Change    float64 // fractional change; only set when HasChange
	HasChange bool
	Articles  int
}

// Stats summarises the snapshot. Up and Down are trend labels and stay zero
// without a baseline; Positive and Negative count score levels beyond the
// configured cutoff.
type Stats struct {
	Tickers    int
	WithData   int
	Up         int
	Down       int
	Positive   int
	Negative   int
	Cutoff     float64 // negative; levels beyond ±|Cutoff| count
	Average    float64
	HasAverage bool
}

// Digest is the content of one notification.
type Digest struct {
	AsOf       time.Time
	Window     int
	FromTrends bool // false when alerts came from the low-score fallback
	Alerts     []Alert
	Stats      Stats
	Dashboard  string
}

// BuildDigest selects up to topN alerts. With a baseline for the window the
// alerts are the largest DOWN moves; without one they are the lowest current
// scores below negativeCutoff.
func BuildDigest(snap *domain.Snapshot, w *trend.Window, topN int, negativeCutoff float64) Digest {
	d := Digest{AsOf: snap.AsOf}
	rows := snap.ByTicker()
	d.Stats.Cutoff = negativeCutoff

	var scores []float64
	for _, r := range snap.Rows {
		if !r.HasData() {
			continue
		}
		scores = append(scores, r.MeanScore)
		switch {
		case r.MeanScore > -negativeCutoff:
			d.Stats.Positive++
		case r.MeanScore < negativeCutoff:
			d.Stats.Negative++
		}
	}
	d.Stats.Tickers = len(snap.Rows)
	d.Stats.WithData = len(scores)
	if len(scores) > 0 {
		d.Stats.Average, _ = aggregate.MeanStd(scores)
		d.Stats.HasAverage = true
	}

	if w != nil && w.Baseline != nil {
		d.Window = w.Days
		d.FromTrends = true
		counts := trend.Counts(w.Records)
		d.Stats.Up = counts[domain.TrendUp]
		d.Stats.Down = counts[domain.TrendDown]

		for _, rec := range trend.Decliners(w.Records, topN) {
			row := rows[rec.Ticker]
			d.Alerts = append(d.Alerts, Alert{
				Ticker:    rec.Ticker,
				Company:   row.Company,
				Current:   rec.Current,
				Change:    rec.PctChange,
				HasChange: rec.HasPct,
				Articles:  row.ArticleCount,
			})
		}
		return d
	}

	if w != nil {
		d.Window = w.Days
	}
	var low []domain.SnapshotRow
	for _, r := range snap.Rows {
		if r.HasData() && r.MeanScore < negativeCutoff {
			low = append(low, r)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].MeanScore != low[j].MeanScore {
			return low[i].MeanScore < low[j].MeanScore
		}
		return low[i].Ticker < low[j].Ticker
	})
	if topN > 0 && len(low) > topN {
		low = low[:topN]
	}
	for _, r := range low {
		d.Alerts = append(d.Alerts, Alert{
			Ticker:   r.Ticker,
			Company:  r.Company,
			Current:  r.MeanScore,
			Articles: r.ArticleCount,
		})
	}
	return d
}

// Subject returns the message subject for the digest.
func (d Digest) Subject(prefix string) string {
	date := d.AsOf.UTC().Format("January 2, 2006")
	n := len(d.Alerts)
	switch n {
	case 0:
		return fmt.Sprintf("%s - %s - All Clear", prefix, date)
	case 1:
		return fmt.Sprintf("%s - %s - 1 Declining Stock", prefix, date)
	default:
		return fmt.Sprintf("%s - %s - %d Declining Stocks", prefix, date, n)
	}
}

// Mood describes the average sentiment.
func (s Stats) Mood() string {
	switch {
	case !s.HasAverage:
		return "No data"
	case s.Average > -s.Cutoff:
		return "Positive"
	case s.Average < s.Cutoff:
		return "Negative"
	default:
		return "Neutral"
	}
}

// Markdown renders the digest. It doubles as the plain-text part.
func (d Digest) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Sentiment Report: %s\n\n", d.AsOf.UTC().Format("January 2, 2006"))

	avg := "n/a"
	if d.Stats.HasAverage {
		avg = fmt.Sprintf("%+.3f", d.Stats.Average)
	}
	up, down := "-", "-"
	if d.FromTrends {
		up, down = strconv.Itoa(d.Stats.Up), strconv.Itoa(d.Stats.Down)
	}
	b.WriteString("| Tickers | With data | Trending up | Trending down | Positive | Negative | Average | Mood |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %s | %s | %d | %d | %s | %s |\n\n",
		d.Stats.Tickers, d.Stats.WithData, up, down,
		d.Stats.Positive, d.Stats.Negative, avg, d.Stats.Mood())

	if d.FromTrends {
		fmt.Fprintf(&b, "## Declining sentiment (%d-day window)\n\n", d.Window)
	} else {
		fmt.Fprintf(&b, "## Most negative sentiment (below %.2f)\n\n", d.Stats.Cutoff)
	}

	if len(d.Alerts) == 0 {
		b.WriteString("No declining stocks today.\n")
	} else {
		b.WriteString("| Ticker | Company | Current | Change | Articles |\n")
		b.WriteString("|---|---|---:|---:|---:|\n")
		for _, a := range d.Alerts {
			change := "-"
			if a.HasChange {
				change = fmt.Sprintf("%+.1f%%", a.Change*100)
			}
			fmt.Fprintf(&b, "| %s | %s | %+.3f | %s | %d |\n",
				a.Ticker, escapeCell(a.Company), a.Current, change, a.Articles)
		}
	}

	if d.Dashboard != "" {
		fmt.Fprintf(&b, "\nFull dashboard: %s\n", d.Dashboard)
	}
	return b.String()
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// HTML renders the digest's markdown to an HTML document.
func (d Digest) HTML() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(htmlHead)
	if err := markdown.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("rendering digest: %w", err)
	}
	buf.WriteString(htmlTail)
	return buf.String(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

const htmlHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; color: #1f2328; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #d0d7de; padding: 4px 10px; }
th { background: #f6f8fa; }
</style></head><body>
`

const htmlTail = "</body></html>\n"
