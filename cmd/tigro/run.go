package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tigro/internal/pipeline"
)

// runCmd executes one full pipeline run.
type runCmd struct {
	collectOnly   bool
	dashboardOnly bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "collect, score, snapshot, trend, render and notify" }
func (*runCmd) Usage() string {
	return `run [-collect-only | -dashboard-only]:
  Run the daily sentiment pipeline once.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.collectOnly, "collect-only", false, "collect and score news, then stop")
	f.BoolVar(&c.dashboardOnly, "dashboard-only", false, "re-render the dashboard from the latest snapshot")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.collectOnly && c.dashboardOnly {
		fmt.Fprintln(os.Stderr, "-collect-only and -dashboard-only are mutually exclusive")
		return subcommands.ExitUsageError
	}
	mode := pipeline.ModeAll
	switch {
	case c.collectOnly:
		mode = pipeline.ModeCollectOnly
	case c.dashboardOnly:
		mode = pipeline.ModeDashboardOnly
	}
	return runPipeline(ctx, mode)
}

// collectCmd is shorthand for run -collect-only.
type collectCmd struct{}

func (*collectCmd) Name() string             { return "collect" }
func (*collectCmd) Synopsis() string         { return "collect and score news without snapshotting" }
func (*collectCmd) Usage() string            { return "collect:\n  Collect and score news for every ticker.\n" }
func (*collectCmd) SetFlags(_ *flag.FlagSet) {}
func (*collectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runPipeline(ctx, pipeline.ModeCollectOnly)
}

// dashboardCmd is shorthand for run -dashboard-only.
type dashboardCmd struct{}

func (*dashboardCmd) Name() string             { return "dashboard" }
func (*dashboardCmd) Synopsis() string         { return "re-render the dashboard from the latest snapshot" }
func (*dashboardCmd) Usage() string            { return "dashboard:\n  Render the dashboard from stored snapshots.\n" }
func (*dashboardCmd) SetFlags(_ *flag.FlagSet) {}
func (*dashboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runPipeline(ctx, pipeline.ModeDashboardOnly)
}

func runPipeline(ctx context.Context, mode pipeline.Mode) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	p, err := a.pipeline(ctx, mode)
	if err != nil {
		a.log.Error("setting up pipeline", "error", err)
		return subcommands.ExitFailure
	}

	sum, err := p.Run(ctx, mode)
	if sum != nil {
		printMarkdown(sum.Markdown())
	}
	if err != nil {
		a.log.Error("pipeline failed", "mode", mode.String(), "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
