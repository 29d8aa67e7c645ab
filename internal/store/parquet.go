package store

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tigro/internal/domain"
	"tigro/internal/util"
)

// ArticleArchive writes each run's newly scored articles to a parquet file
// named after the run's snapshot:
//
//	<dir>/<snapshot id>.parquet
type ArticleArchive struct {
	dir string
}

// NewArticleArchive creates an archive rooted at dir.
func NewArticleArchive(dir string) *ArticleArchive {
	return &ArticleArchive{dir: dir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// ArticleRow is the parquet schema for a scored article.
type ArticleRow struct {
	Ticker        string  `parquet:"ticker"`
	Source        string  `parquet:"source"`
	ArticleID     string  `parquet:"article_id"`
	Published     int64   `parquet:"published,timestamp(millisecond)"` // Unix ms
	Headline      string  `parquet:"headline"`
	Body          string  `parquet:"body"`
	URL           string  `parquet:"url"`
	HeadlineScore float64 `parquet:"headline_score"`
	BodyScore     float64 `parquet:"body_score"`
	HasBody       bool    `parquet:"has_body"`
	Combined      float64 `parquet:"combined"`
}

// Path returns the archive file for a snapshot ID.
func (a *ArticleArchive) Path(snapshotID string) string {
	return filepath.Join(a.dir, snapshotID+".parquet")
}

// Write stores records for snapshotID, sorted by (ticker, published). An
// empty batch writes nothing.
func (a *ArticleArchive) Write(ctx context.Context, snapshotID string, records []domain.ArticleRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rows := make([]ArticleRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, ArticleRow{
			Ticker:        r.Ticker,
			Source:        r.Source,
			ArticleID:     r.ArticleID,
			Published:     r.Published.UnixMilli(),
			Headline:      r.Headline,
			Body:          r.Body,
			URL:           r.URL,
			HeadlineScore: r.HeadlineScore,
			BodyScore:     r.BodyScore,
			HasBody:       r.HasBody,
			Combined:      r.Combined,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Published < rows[j].Published
	})

	path := a.Path(snapshotID)
	if err := util.WriteFileAtomic(path, func(w io.Writer) error {
		return parquet.Write(w, rows)
	}); err != nil {
		return "", fmt.Errorf("writing article archive %s: %w", snapshotID, err)
	}
	return path, nil
}

// Read loads the archived articles for snapshotID.
func (a *ArticleArchive) Read(snapshotID string) ([]domain.ArticleRecord, error) {
	path := a.Path(snapshotID)
	rows, err := parquet.ReadFile[ArticleRow](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	out := make([]domain.ArticleRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ArticleRecord{
			Ticker:        r.Ticker,
			Source:        r.Source,
			ArticleID:     r.ArticleID,
			Published:     time.UnixMilli(r.Published).UTC(),
			Headline:      r.Headline,
			Body:          r.Body,
			URL:           r.URL,
			HeadlineScore: r.HeadlineScore,
			BodyScore:     r.BodyScore,
			HasBody:       r.HasBody,
			Combined:      r.Combined,
		})
	}
	return out, nil
}
