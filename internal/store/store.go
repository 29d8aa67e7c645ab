// Package store persists pipeline output: dated sentiment snapshots with an
// index naming the latest one, a SQLite ledger of scored articles and a
// parquet archive of each run's articles.
package store

import (
	"context"
	"errors"
	"time"

	"tigro/internal/domain"
)

// ErrNoSnapshot is returned when no snapshot matches a lookup.
var ErrNoSnapshot = errors.New("store: no snapshot")

// SnapshotStore persists and retrieves daily snapshots.
type SnapshotStore interface {
	// Write persists snap as a new immutable snapshot and makes it the latest.
	Write(ctx context.Context, snap *domain.Snapshot) (IndexEntry, error)

	// Latest returns the most recently written snapshot.
	Latest(ctx context.Context) (*domain.Snapshot, error)

	// AtOrBefore returns the most recent snapshot whose as-of time is <= t.
	AtOrBefore(ctx context.Context, t time.Time) (*domain.Snapshot, error)

	// List returns the index entries ordered by as-of time.
	List(ctx context.Context) ([]IndexEntry, error)

	// Load returns the snapshot with the given ID.
	Load(ctx context.Context, id string) (*domain.Snapshot, error)
}

// ArticleStore persists scored articles and answers window queries.
type ArticleStore interface {
	// Has reports whether the article was already scored for ticker.
	Has(ctx context.Context, ticker, source, articleID string) (bool, error)

	// Put inserts records, ignoring ones already present. It returns the
	// number of rows actually inserted.
	Put(ctx context.Context, records []domain.ArticleRecord) (int, error)

	// Window returns records for ticker published in [start, end]. An empty
	// ticker matches all tickers.
	Window(ctx context.Context, ticker string, start, end time.Time) ([]domain.ArticleRecord, error)

	// Recent returns up to limit of the newest records for ticker.
	Recent(ctx context.Context, ticker string, limit int) ([]domain.ArticleRecord, error)
}
