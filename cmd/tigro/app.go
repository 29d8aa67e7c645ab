package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/glamour"

	"tigro/internal/config"
	"tigro/internal/mailer"
	"tigro/internal/news"
	"tigro/internal/pipeline"
	"tigro/internal/sentiment"
	"tigro/internal/store"
	"tigro/internal/universe"
	"tigro/internal/util"
)

var configPath = flag.String("config", "", "config file (default $TIGRO_CONFIG or config/tigro.yaml)")

// resolveConfigPath applies the flag, then TIGRO_CONFIG, then the default.
func resolveConfigPath() string {
	if *configPath != "" {
		return *configPath
	}
	if p := os.Getenv("TIGRO_CONFIG"); p != "" {
		return p
	}
	return "config/tigro.yaml"
}

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	universe *universe.Universe
	ledger   *store.SQLiteLedger
	snaps    *store.FileSnapshotStore
}

// openApp loads and validates config, sets up logging and opens the stores.
func openApp() (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	u, err := universe.Load(cfg.Universe.Path, log)
	if err != nil {
		return nil, fmt.Errorf("loading universe: %w", err)
	}

	ledger, err := store.OpenLedger(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		universe: u,
		ledger:   ledger,
		snaps:    store.NewFileSnapshotStore(cfg.SnapshotDir(), log),
	}, nil
}

func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("closing ledger", "error", err)
	}
}

// sources builds the enabled news sources.
func (a *app) sources() []news.Source {
	nc := a.cfg.News
	httpClient := &http.Client{Timeout: nc.Timeout}

	var out []news.Source
	if nc.Finnhub.Enabled {
		opts := []news.FinnhubOption{
			news.WithFinnhubHTTPClient(httpClient),
			news.WithFinnhubRateLimit(nc.Finnhub.RateLimitPerMin),
		}
		if nc.Finnhub.BaseURL != "" {
			opts = append(opts, news.WithFinnhubBaseURL(nc.Finnhub.BaseURL))
		}
		out = append(out, news.NewFinnhubSource(nc.Finnhub.APIKey, opts...))
	}
	if nc.Alpaca.Enabled {
		out = append(out, news.NewAlpacaSource(nc.Alpaca.APIKey, nc.Alpaca.APISecret, nc.Alpaca.DataURL, nc.Alpaca.Limit))
	}
	if nc.Google.Enabled {
		out = append(out, news.NewGoogleRSSSource(nc.Google.BaseURL, nc.Google.RateLimitPerMin, httpClient))
	}
	return out
}

// classifier builds the configured sentiment backend.
func (a *app) classifier(ctx context.Context) (sentiment.Classifier, error) {
	sc := a.cfg.Sentiment
	switch sc.Backend {
	case "huggingface":
		opts := []sentiment.HuggingFaceOption{
			sentiment.WithHuggingFaceRetry(a.cfg.News.MaxAttempts, a.cfg.News.RetryDelay),
		}
		if sc.HuggingFace.Model != "" {
			opts = append(opts, sentiment.WithHuggingFaceModel(sc.HuggingFace.Model))
		}
		if sc.HuggingFace.BaseURL != "" {
			opts = append(opts, sentiment.WithHuggingFaceBaseURL(sc.HuggingFace.BaseURL))
		}
		return sentiment.NewHuggingFaceClassifier(sc.HuggingFace.Token, opts...), nil
	case "gemini":
		return sentiment.NewGeminiClassifier(ctx, sc.Gemini.APIKey, sc.Gemini.Model)
	default:
		return sentiment.NewLexiconClassifier(), nil
	}
}

// pipeline wires a Pipeline from the app's config. Dashboard-only runs
// need neither news sources nor a classifier.
func (a *app) pipeline(ctx context.Context, mode pipeline.Mode) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Config:    a.cfg,
		Universe:  a.universe,
		Ledger:    a.ledger,
		Snapshots: a.snaps,
		Archive:   store.NewArticleArchive(a.cfg.ArticleArchiveDir()),
		Log:       a.log,
	}
	if a.cfg.Email.Enabled {
		deps.Notifier = mailer.NewNotifier(a.cfg.Email, nil, a.log)
	}
	if mode == pipeline.ModeDashboardOnly {
		return pipeline.New(deps), nil
	}

	sources := a.sources()
	if len(sources) == 0 {
		return nil, errors.New("no news sources enabled")
	}
	cls, err := a.classifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	a.log.Info("pipeline configured", "sources", len(sources), "classifier", cls.Name())

	sc := a.cfg.Sentiment
	deps.Collector = news.NewCollector(sources, news.CollectorOptions{
		Window:      dayDuration(a.cfg.News.WindowDays),
		MaxAttempts: a.cfg.News.MaxAttempts,
		RetryDelay:  a.cfg.News.RetryDelay,
	}, a.log)
	deps.Scorer = sentiment.NewScorer(cls, sentiment.Weights{
		Headline: sc.HeadlineWeight,
		Body:     sc.BodyWeight,
	}, sc.MaxChars)
	return pipeline.New(deps), nil
}

// printMarkdown renders md for the terminal, falling back to plain text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(md)
}

func dayDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
