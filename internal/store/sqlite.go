package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tigro/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ArticleStore = (*SQLiteLedger)(nil)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS articles (
	ticker         TEXT    NOT NULL,
	source         TEXT    NOT NULL,
	article_id     TEXT    NOT NULL,
	headline       TEXT    NOT NULL,
	body           TEXT    NOT NULL,
	url            TEXT    NOT NULL,
	published      INTEGER NOT NULL,
	headline_score REAL    NOT NULL,
	body_score     REAL    NOT NULL,
	has_body       INTEGER NOT NULL,
	combined       REAL    NOT NULL,
	scored_at      INTEGER NOT NULL,
	PRIMARY KEY (ticker, source, article_id)
);
CREATE INDEX IF NOT EXISTS articles_ticker_published ON articles (ticker, published);
`

const articleColumns = `ticker, source, article_id, headline, body, url, published,
	headline_score, body_score, has_body, combined, scored_at`

// SQLiteLedger records every scored article so that re-runs never score or
// count an article twice.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at dbPath.
func OpenLedger(dbPath string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time avoids SQLITE_BUSY from the worker pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// Has reports whether (ticker, source, articleID) is already recorded.
func (s *SQLiteLedger) Has(ctx context.Context, ticker, source, articleID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM articles WHERE ticker = ? AND source = ? AND article_id = ?`,
		ticker, source, articleID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Put inserts records in one transaction with INSERT OR IGNORE.
func (s *SQLiteLedger) Put(ctx context.Context, records []domain.ArticleRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		scoredAt := r.ScoredAt
		if scoredAt.IsZero() {
			scoredAt = time.Now()
		}
		res, err := stmt.ExecContext(ctx,
			r.Ticker, r.Source, r.ArticleID, r.Headline, r.Body, r.URL,
			r.Published.UnixMilli(), r.HeadlineScore, r.BodyScore, boolToInt(r.HasBody),
			r.Combined, scoredAt.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("inserting %s/%s/%s: %w", r.Ticker, r.Source, r.ArticleID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Window returns records published in [start, end], oldest first.
func (s *SQLiteLedger) Window(ctx context.Context, ticker string, start, end time.Time) ([]domain.ArticleRecord, error) {
	q := `SELECT ` + articleColumns + ` FROM articles WHERE published >= ? AND published <= ?`
	args := []any{start.UnixMilli(), end.UnixMilli()}
	if ticker != "" {
		q += ` AND ticker = ?`
		args = append(args, ticker)
	}
	q += ` ORDER BY published, ticker, source, article_id`
	return s.query(ctx, q, args...)
}

// Recent returns up to limit of the newest records for ticker.
func (s *SQLiteLedger) Recent(ctx context.Context, ticker string, limit int) ([]domain.ArticleRecord, error) {
	return s.query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE ticker = ? ORDER BY published DESC LIMIT ?`,
		ticker, limit)
}

func (s *SQLiteLedger) query(ctx context.Context, q string, args ...any) ([]domain.ArticleRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ArticleRecord
	for rows.Next() {
		var (
			r                   domain.ArticleRecord
			published, scoredAt int64
			hasBody             int
		)
		if err := rows.Scan(&r.Ticker, &r.Source, &r.ArticleID, &r.Headline, &r.Body, &r.URL,
			&published, &r.HeadlineScore, &r.BodyScore, &hasBody, &r.Combined, &scoredAt); err != nil {
			return nil, err
		}
		r.Published = time.UnixMilli(published).UTC()
		r.ScoredAt = time.UnixMilli(scoredAt).UTC()
		r.HasBody = hasBody != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
