// Package pipeline runs the daily sentiment job: collect and score news per
// ticker, aggregate a snapshot, compute trends, render the dashboard and
// send the decliners digest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tigro/internal/aggregate"
	"tigro/internal/config"
	"tigro/internal/dashboard"
	"tigro/internal/domain"
	"tigro/internal/mailer"
	"tigro/internal/news"
	"tigro/internal/sentiment"
	"tigro/internal/store"
	"tigro/internal/trend"
	"tigro/internal/universe"
)

// Collector gathers raw articles for one ticker.
type Collector interface {
	Collect(ctx context.Context, ticker string, now time.Time) news.Result
	Sources() []string
}

// Scorer scores one article.
type Scorer interface {
	Score(ctx context.Context, headline, body string) (sentiment.ArticleScore, error)
}

// Notifier delivers a digest.
type Notifier interface {
	Notify(ctx context.Context, d mailer.Digest) error
}

// archiver is implemented by snapshot stores that support retention.
type archiver interface {
	Archive(ctx context.Context, keep int) (int, error)
}

// Deps wires the pipeline's collaborators. Archive and Notifier are
// optional.
type Deps struct {
	Config    *config.Config
	Universe  *universe.Universe
	Collector Collector
	Scorer    Scorer
	Ledger    store.ArticleStore
	Snapshots store.SnapshotStore
	Archive   *store.ArticleArchive
	Notifier  Notifier
	Log       *slog.Logger
}

// Pipeline runs the stages in order. Data only flows downstream.
type Pipeline struct {
	Deps
	now func() time.Time
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	return &Pipeline{Deps: d, now: time.Now}
}

// Run executes mode under the configured deadline. The summary is returned
// even on failure. Errors are only returned for failures that make the run
// unusable: snapshot persistence, the ledger, dashboard rendering or the
// deadline.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*Summary, error) {
	cfg := p.Config
	if cfg.Pipeline.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.Deadline)
		defer cancel()
	}

	now := p.now().UTC()
	sum := &Summary{RunID: uuid.NewString(), Mode: mode, Started: now}
	log := p.Log.With("run_id", sum.RunID)
	log.Info("run starting", "mode", mode.String(), "tickers", p.Universe.Len())

	err := p.run(ctx, mode, now, sum, log)
	sum.Duration = time.Since(now)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("run deadline: %w", ctx.Err())
	}
	if err != nil {
		log.Error("run failed", "error", err, "duration", sum.Duration.Round(time.Millisecond))
		return sum, err
	}
	log.Info("run complete", "duration", sum.Duration.Round(time.Millisecond),
		"scored", sum.ArticlesScored, "snapshot", sum.SnapshotID)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, mode Mode, now time.Time, sum *Summary, log *slog.Logger) error {
	var fresh []domain.ArticleRecord

	if mode != ModeDashboardOnly {
		start := time.Now()
		recs, err := p.collect(ctx, now, sum, log)
		sum.stage("collect", start, err)
		if err != nil {
			return err
		}
		fresh = recs
		if mode == ModeCollectOnly {
			return nil
		}
	}

	var snap *domain.Snapshot
	if mode == ModeAll {
		start := time.Now()
		s, err := p.snapshot(ctx, now, fresh, sum, log)
		sum.stage("snapshot", start, err)
		if err != nil {
			return err
		}
		snap = s
	} else {
		s, err := p.Snapshots.Latest(ctx)
		if err != nil {
			return fmt.Errorf("loading latest snapshot: %w", err)
		}
		snap = s
		sum.SnapshotID = s.ID
	}

	start := time.Now()
	windows, err := p.trends(ctx, snap, log)
	sum.stage("trends", start, err)
	if err != nil {
		return err
	}
	primary := trend.Find(windows, p.Config.Trend.PrimaryWindow)
	if primary != nil {
		c := trend.Counts(primary.Records)
		sum.PrimaryWindow = primary.Days
		sum.Up, sum.Down = c[domain.TrendUp], c[domain.TrendDown]
		sum.Stable, sum.New = c[domain.TrendStable], c[domain.TrendNew]
	}

	start = time.Now()
	path, err := p.render(ctx, now, snap, windows, primary, log)
	sum.stage("dashboard", start, err)
	if err != nil {
		return err
	}
	sum.DashboardPath = path

	if mode == ModeAll && p.Notifier != nil && p.Config.Email.Enabled {
		start = time.Now()
		d := mailer.BuildDigest(snap, primary, p.Config.Email.TopN, p.Config.Email.NegativeCutoff)
		d.Dashboard = "file://" + path
		err := p.Notifier.Notify(ctx, d)
		sum.stage("email", start, err)
		if err != nil {
			log.Warn("digest not sent", "error", err)
			sum.EmailFailed = true
		} else {
			sum.EmailSent = true
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// collect runs one worker per ticker slot. Per ticker it collects, drops
// articles already in the ledger, scores the rest and stores them. A ledger
// failure aborts the run; anything else is counted and skipped.
func (p *Pipeline) collect(ctx context.Context, now time.Time, sum *Summary, log *slog.Logger) ([]domain.ArticleRecord, error) {
	tickers := p.Universe.Tickers()
	sum.Tickers = len(tickers)
	nSources := len(p.Collector.Sources())

	tickerCh := make(chan string, len(tickers))
	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	var (
		wg                                    sync.WaitGroup
		mu                                    sync.Mutex
		fresh                                 []domain.ArticleRecord
		ledgerErr                             error
		collected, dupes, scored, scoreErrors atomic.Int64
		tickersFailed, sourcesFailed          atomic.Int64
	)

	workers := min(max(p.Config.Pipeline.MaxWorkers, 1), max(len(tickers), 1))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range tickerCh {
				if ctx.Err() != nil {
					return
				}

				res := p.Collector.Collect(ctx, ticker, now)
				collected.Add(int64(len(res.Articles)))
				sourcesFailed.Add(int64(len(res.Failed)))
				if nSources > 0 && len(res.Failed) == nSources {
					tickersFailed.Add(1)
				}

				var batch []domain.ArticleRecord
				for _, a := range res.Articles {
					seen, err := p.Ledger.Has(ctx, a.Ticker, a.Source, a.ID)
					if err != nil {
						mu.Lock()
						ledgerErr = errors.Join(ledgerErr, fmt.Errorf("ledger lookup %s: %w", ticker, err))
						mu.Unlock()
						break
					}
					if seen {
						dupes.Add(1)
						continue
					}

					score, err := p.Scorer.Score(ctx, a.Headline, a.Body)
					if err != nil {
						scoreErrors.Add(1)
						log.Warn("scoring failed", "ticker", ticker, "source", a.Source, "article", a.ID, "error", err)
						continue
					}
					batch = append(batch, domain.ArticleRecord{
						Ticker:        a.Ticker,
						ArticleID:     a.ID,
						Source:        a.Source,
						Headline:      a.Headline,
						Body:          a.Body,
						URL:           a.URL,
						Published:     a.Published.UTC(),
						HeadlineScore: score.Headline,
						BodyScore:     score.Body,
						HasBody:       score.HasBody,
						Combined:      score.Combined,
						ScoredAt:      time.Now().UTC(),
					})
				}

				if len(batch) == 0 {
					continue
				}
				n, err := p.Ledger.Put(ctx, batch)
				if err != nil {
					mu.Lock()
					ledgerErr = errors.Join(ledgerErr, fmt.Errorf("ledger put %s: %w", ticker, err))
					mu.Unlock()
					continue
				}
				scored.Add(int64(n))
				mu.Lock()
				fresh = append(fresh, batch...)
				mu.Unlock()
				log.Debug("ticker scored", "ticker", ticker, "articles", len(res.Articles), "new", n)
			}
		}()
	}
	wg.Wait()

	sum.ArticlesCollected = int(collected.Load())
	sum.ArticlesDuplicate = int(dupes.Load())
	sum.ArticlesScored = int(scored.Load())
	sum.ScoreErrors = int(scoreErrors.Load())
	sum.TickersFailed = int(tickersFailed.Load())
	sum.SourcesFailed = int(sourcesFailed.Load())

	log.Info("collection complete",
		"tickers", sum.Tickers,
		"collected", sum.ArticlesCollected,
		"scored", sum.ArticlesScored,
		"duplicates", sum.ArticlesDuplicate,
		"score_errors", sum.ScoreErrors,
		"tickers_failed", sum.TickersFailed,
	)
	if ledgerErr != nil {
		return fresh, ledgerErr
	}
	if err := ctx.Err(); err != nil {
		return fresh, fmt.Errorf("collecting: %w", err)
	}
	return fresh, nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

func (p *Pipeline) snapshot(ctx context.Context, now time.Time, fresh []domain.ArticleRecord, sum *Summary, log *slog.Logger) (*domain.Snapshot, error) {
	window := time.Duration(p.Config.News.WindowDays) * 24 * time.Hour
	records, err := p.Ledger.Window(ctx, "", now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("reading ledger window: %w", err)
	}

	snap := &domain.Snapshot{
		AsOf:      now,
		CreatedAt: now,
		Rows:      aggregate.Aggregate(p.Universe, records, now, window),
	}
	entry, err := p.Snapshots.Write(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}
	sum.SnapshotID = entry.ID
	sum.SnapshotWritten = true

	if p.Archive != nil && len(fresh) > 0 {
		path, err := p.Archive.Write(ctx, entry.ID, fresh)
		if err != nil {
			log.Warn("article archive not written", "snapshot", entry.ID, "error", err)
			sum.ArchiveFailed = true
		} else {
			sum.ArchivePath = path
		}
	}

	if a, ok := p.Snapshots.(archiver); ok {
		if _, err := a.Archive(ctx, p.Config.Pipeline.KeepSnapshots); err != nil {
			log.Warn("snapshot retention failed", "error", err)
		}
	}
	return snap, nil
}

// ---------------------------------------------------------------------------
// Trends and dashboard
// ---------------------------------------------------------------------------

func (p *Pipeline) trendConfig() trend.Config {
	return trend.Config{
		Threshold:   p.Config.Trend.Threshold,
		ZeroEpsilon: p.Config.Trend.ZeroEpsilon,
	}
}

func (p *Pipeline) trends(ctx context.Context, snap *domain.Snapshot, log *slog.Logger) ([]trend.Window, error) {
	windows, err := trend.Windows(ctx, p.Snapshots, snap, p.Config.Trend.Lookbacks, p.trendConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("computing trends: %w", err)
	}
	return windows, nil
}

// Trends loads the latest snapshot and computes every configured window.
func (p *Pipeline) Trends(ctx context.Context) (*domain.Snapshot, []trend.Window, error) {
	snap, err := p.Snapshots.Latest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	windows, err := p.trends(ctx, snap, p.Log)
	if err != nil {
		return nil, nil, err
	}
	return snap, windows, nil
}

// historyRows bounds the dashboard's snapshot history table.
const historyRows = 10

func (p *Pipeline) render(ctx context.Context, now time.Time, snap *domain.Snapshot, windows []trend.Window, primary *trend.Window, log *slog.Logger) (string, error) {
	d := dashboard.Data{
		Title:         p.Config.Dashboard.Title,
		GeneratedAt:   now,
		Snapshot:      snap,
		Universe:      p.Universe,
		Windows:       windows,
		PrimaryWindow: p.Config.Trend.PrimaryWindow,
		Articles:      make(map[string][]domain.ArticleRecord),
	}
	if primary != nil && primary.Baseline != nil {
		d.Orphans = trend.Orphans(p.Universe.Tickers(), primary.Baseline.ByTicker())
	}

	if limit := p.Config.Dashboard.Articles; limit > 0 {
		for _, row := range snap.Rows {
			if !row.HasData() {
				continue
			}
			recs, err := p.Ledger.Recent(ctx, row.Ticker, limit)
			if err != nil {
				log.Warn("loading recent articles", "ticker", row.Ticker, "error", err)
				continue
			}
			d.Articles[row.Ticker] = recs
		}
	}

	if entries, err := p.Snapshots.List(ctx); err != nil {
		log.Warn("listing snapshots", "error", err)
	} else {
		for i := len(entries) - 1; i >= 0 && len(d.History) < historyRows; i-- {
			e := entries[i]
			d.History = append(d.History, dashboard.HistoryEntry{ID: e.ID, AsOf: e.AsOf, Rows: e.Rows})
		}
	}

	path, err := dashboard.Render(p.Config.Dashboard.OutputDir, d)
	if err != nil {
		return "", fmt.Errorf("rendering dashboard: %w", err)
	}
	log.Info("dashboard rendered", "path", path)
	return path, nil
}
