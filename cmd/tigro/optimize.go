package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tigro/internal/optimizer"
	"tigro/internal/store"
)

// optimizeCmd proposes a sentiment-tilted max-Sharpe allocation.
type optimizeCmd struct {
	noSentiment bool
	capital     float64
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "propose a sentiment-tilted portfolio allocation" }
func (*optimizeCmd) Usage() string {
	return `optimize [-no-sentiment] [-capital amount]:
  Fetch daily closes from Alpaca and solve for a capped, long-only
  maximum-Sharpe allocation over the universe. Output is advisory.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noSentiment, "no-sentiment", false, "ignore the latest snapshot's scores")
	f.Float64Var(&c.capital, "capital", 0, "capital to allocate (default from config)")
}

func (c *optimizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	ac := a.cfg.News.Alpaca
	if ac.APIKey == "" || ac.APISecret == "" {
		a.log.Error("optimize needs Alpaca credentials (APCA_API_KEY_ID, APCA_API_SECRET_KEY)")
		return subcommands.ExitUsageError
	}

	oc := a.cfg.Optimizer
	if c.capital > 0 {
		oc.Capital = c.capital
	}

	var scores map[string]float64
	if !c.noSentiment {
		scores, err = latestScores(ctx, a.snaps)
		if err != nil {
			a.log.Error("loading latest snapshot", "error", err)
			return subcommands.ExitFailure
		}
	}

	opt := optimizer.New(oc, optimizer.NewAlpacaPrices(ac.APIKey, ac.APISecret, ac.DataURL, a.log), a.log)
	report, err := opt.Run(ctx, a.universe.Tickers(), scores)
	if err != nil {
		a.log.Error("optimization failed", "error", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Markdown())
	return subcommands.ExitSuccess
}

// latestScores returns the mean scores of the latest snapshot, or nil when
// none has been written yet.
func latestScores(ctx context.Context, snaps store.SnapshotStore) (map[string]float64, error) {
	snap, err := snaps.Latest(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(snap.Rows))
	for _, r := range snap.Rows {
		if r.HasData() {
			scores[r.Ticker] = r.MeanScore
		}
	}
	return scores, nil
}
