package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"

	"tigro/internal/pipeline"
)

// scheduleCmd runs the pipeline on a cron schedule until interrupted.
type scheduleCmd struct {
	spec string
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "run the pipeline on a cron schedule" }
func (*scheduleCmd) Usage() string {
	return `schedule [-cron spec]:
  Run the full pipeline on a five-field cron schedule until interrupted.
  Overlapping runs are skipped.
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.spec, "cron", "", "cron spec (default pipeline.schedule from config)")
}

func (c *scheduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	spec := c.spec
	if spec == "" {
		spec = a.cfg.Pipeline.Schedule
	}
	if spec == "" {
		a.log.Error("no schedule configured")
		return subcommands.ExitUsageError
	}

	p, err := a.pipeline(ctx, pipeline.ModeAll)
	if err != nil {
		a.log.Error("setting up pipeline", "error", err)
		return subcommands.ExitFailure
	}

	var mu sync.Mutex
	job := func() {
		if !mu.TryLock() {
			a.log.Warn("previous run still in progress, skipping")
			return
		}
		defer mu.Unlock()

		sum, err := p.Run(ctx, pipeline.ModeAll)
		if err != nil {
			a.log.Error("scheduled run failed", "error", err)
			return
		}
		a.log.Info("scheduled run complete",
			"run_id", sum.RunID,
			"snapshot", sum.SnapshotID,
			"scored", sum.ArticlesScored,
			"duration", sum.Duration)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(spec, job); err != nil {
		a.log.Error("invalid cron spec", "spec", spec, "error", err)
		return subcommands.ExitUsageError
	}
	sched.Start()
	a.log.Info("scheduler started", "spec", spec)

	<-ctx.Done()
	a.log.Info("scheduler stopping")
	<-sched.Stop().Done()
	return subcommands.ExitSuccess
}
