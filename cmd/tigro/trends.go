package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"tigro/internal/dashboard"
	"tigro/internal/domain"
	"tigro/internal/pipeline"
	"tigro/internal/trend"
)

// trendsCmd prints the trend table for one lookback window.
type trendsCmd struct {
	window int
	limit  int
}

func (*trendsCmd) Name() string     { return "trends" }
func (*trendsCmd) Synopsis() string { return "print sentiment trends from the latest snapshot" }
func (*trendsCmd) Usage() string {
	return `trends [-window days] [-limit n]:
  Print the trend labels of the latest snapshot against a past baseline.
`
}

func (c *trendsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.window, "window", 0, "lookback in days (default: first configured lookback)")
	f.IntVar(&c.limit, "limit", 10, "list at most n decliners (0 = all)")
}

func (c *trendsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if c.window > 0 {
		a.cfg.Trend.Lookbacks = []int{c.window}
	}

	p, err := a.pipeline(ctx, pipeline.ModeDashboardOnly)
	if err != nil {
		a.log.Error("setting up pipeline", "error", err)
		return subcommands.ExitFailure
	}
	snap, windows, err := p.Trends(ctx)
	if err != nil {
		a.log.Error("computing trends", "error", err)
		return subcommands.ExitFailure
	}

	w := trend.Find(windows, a.cfg.Trend.Lookbacks[0])
	if w == nil {
		a.log.Error("no trend window computed")
		return subcommands.ExitFailure
	}
	printMarkdown(trendMarkdown(snap.ID, w, c.limit))
	return subcommands.ExitSuccess
}

func trendMarkdown(snapshotID string, w *trend.Window, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %dd trends for %s\n\n", w.Days, snapshotID)
	if w.Baseline == nil {
		b.WriteString("No baseline snapshot is old enough; every ticker is NEW.\n\n")
	} else {
		fmt.Fprintf(&b, "Baseline: %s\n\n", w.Baseline.ID)
	}

	counts := trend.Counts(w.Records)
	b.WriteString("| Trend | Tickers |\n|---|---:|\n")
	for _, l := range []domain.TrendLabel{domain.TrendUp, domain.TrendDown, domain.TrendStable, domain.TrendNew} {
		fmt.Fprintf(&b, "| %s | %d |\n", l, counts[l])
	}

	if down := trend.Decliners(w.Records, limit); len(down) > 0 {
		b.WriteString("\n## Decliners\n")
		writeTrendTable(&b, down)
	}

	records := append([]domain.TrendRecord(nil), w.Records...)
	sort.Slice(records, func(i, j int) bool { return records[i].Ticker < records[j].Ticker })
	b.WriteString("\n## All tickers\n")
	writeTrendTable(&b, records)
	return b.String()
}

func writeTrendTable(b *strings.Builder, records []domain.TrendRecord) {
	b.WriteString("\n| Ticker | Current | Baseline | Change | Trend |\n|---|---:|---:|---:|---|\n")
	for _, r := range records {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			r.Ticker,
			dashboard.FormatScore(r.Current, r.HasCurrent),
			dashboard.FormatScore(r.Historical, r.HasHistorical),
			dashboard.FormatPct(r.PctChange, r.HasPct),
			r.Label)
	}
}
