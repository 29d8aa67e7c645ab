package news

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tigro/internal/util"
)

// CollectorOptions bounds how far back and how hard the collector tries.
type CollectorOptions struct {
	Window      time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Collector fans out to every source for a ticker.
type Collector struct {
	sources []Source
	opts    CollectorOptions
	log     *slog.Logger
}

// Result is the outcome of collecting one ticker. Failed lists the sources
// that gave up after retries; their articles are simply missing.
type Result struct {
	Ticker   string
	Articles []RawArticle
	Failed   []string
}

// NewCollector creates a Collector over sources.
func NewCollector(sources []Source, opts CollectorOptions, log *slog.Logger) *Collector {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	return &Collector{sources: sources, opts: opts, log: log}
}

// Sources returns the configured source names.
func (c *Collector) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect fetches articles for ticker published in [now-window, now]. Each
// source is retried with backoff; a source that still fails is recorded in
// Result.Failed and the others continue. Articles are de-duplicated by
// (source, id), first seen wins. Order is not meaningful.
func (c *Collector) Collect(ctx context.Context, ticker string, now time.Time) Result {
	ticker = strings.ToUpper(ticker)
	start := now.Add(-c.opts.Window)
	res := Result{Ticker: ticker}
	seen := make(map[string]bool)

	for _, src := range c.sources {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, src.Name())
			continue
		}

		var articles []RawArticle
		attempt := 0
		err := util.Retry(ctx, c.opts.MaxAttempts, c.opts.RetryDelay, func() error {
			attempt++
			var err error
			articles, err = src.Fetch(ctx, ticker, start, now)
			if err == nil {
				return nil
			}
			if !IsRetryable(err) {
				return util.Permanent(err)
			}
			c.log.Debug("retrying news source", "ticker", ticker, "source", src.Name(), "attempt", attempt, "error", err)
			return err
		})
		if err != nil {
			c.log.Warn("news source failed", "ticker", ticker, "source", src.Name(), "attempts", attempt, "error", err)
			res.Failed = append(res.Failed, src.Name())
			continue
		}

		kept := 0
		for _, a := range articles {
			a.Ticker = ticker
			if a.Source == "" {
				a.Source = src.Name()
			}
			a.Headline = strings.TrimSpace(a.Headline)
			if a.Headline == "" {
				continue
			}
			if a.Published.Before(start) || a.Published.After(now) {
				continue
			}
			if a.ID == "" {
				a.ID = fallbackID(a.URL, a.Headline, a.Published)
			}
			if seen[a.Key()] {
				continue
			}
			seen[a.Key()] = true
			res.Articles = append(res.Articles, a)
			kept++
		}
		c.log.Debug("collected", "ticker", ticker, "source", src.Name(), "fetched", len(articles), "kept", kept)
	}
	return res
}
