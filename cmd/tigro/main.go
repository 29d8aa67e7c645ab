// Command tigro runs the daily news-sentiment pipeline for a ticker
// universe: it collects and scores news, stores a dated snapshot, labels
// sentiment trends, renders a static dashboard and emails the decliners.
//
// Usage:
//
//	go build -o bin/tigro ./cmd/tigro/
//	bin/tigro [-config config/tigro.yaml] run [-collect-only|-dashboard-only]
//	bin/tigro trends [-window 7]
//	bin/tigro optimize
//	bin/tigro schedule [-cron "0 18 * * 1-5"]
//	bin/tigro serve [-addr 127.0.0.1:8080]
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&runCmd{}, "pipeline")
	commander.Register(&collectCmd{}, "pipeline")
	commander.Register(&dashboardCmd{}, "pipeline")
	commander.Register(&scheduleCmd{}, "pipeline")
	commander.Register(&trendsCmd{}, "reports")
	commander.Register(&optimizeCmd{}, "reports")
	commander.Register(&serveCmd{}, "reports")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
