package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tigro/internal/domain"
	"tigro/internal/util"
)

// Compile-time interface check.
var _ SnapshotStore = (*FileSnapshotStore)(nil)

const (
	snapshotPrefix = "sentiment_summary_"
	latestAlias    = snapshotPrefix + "latest.csv"
	indexName      = "index.json"
	archiveDir     = "archive"

	// IDLayout formats snapshot IDs from their creation time.
	IDLayout = "20060102T150405Z"

	// NoData marks a score column for a ticker without articles.
	NoData = "NA"
)

var csvHeader = []string{
	"ticker", "company", "date", "mean_score", "article_count", "score_std",
	"score_7d", "score_30d", "positive_ratio", "negative_ratio",
}

// legacyColumns is the column count of snapshots written before the 7d/30d
// and ratio columns existed. They still load, with those fields unset.
const legacyColumns = 6

// IndexEntry describes one snapshot file in the index.
type IndexEntry struct {
	ID        string    `json:"id"`
	File      string    `json:"file"` // relative to the snapshot dir
	AsOf      time.Time `json:"as_of"`
	CreatedAt time.Time `json:"created_at"`
	Rows      int       `json:"rows"`
}

type index struct {
	Latest    string       `json:"latest"`
	Snapshots []IndexEntry `json:"snapshots"`
}

func (ix *index) find(id string) (IndexEntry, bool) {
	for _, e := range ix.Snapshots {
		if e.ID == id {
			return e, true
		}
	}
	return IndexEntry{}, false
}

// FileSnapshotStore keeps snapshots as CSV files under a directory:
//
//	<dir>/sentiment_summary_<ID>.csv   immutable, one per run
//	<dir>/sentiment_summary_latest.csv copy of the latest snapshot
//	<dir>/index.json                   entries plus the latest ID
//
// The index and the alias are only ever replaced by rename, so a failed
// write leaves the previous latest snapshot readable.
type FileSnapshotStore struct {
	dir string
	log *slog.Logger

	mu sync.Mutex

	// wrap lets tests interpose on file writes.
	wrap func(name string, w io.Writer) io.Writer
}

// NewFileSnapshotStore returns a store rooted at dir.
func NewFileSnapshotStore(dir string, log *slog.Logger) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir, log: log}
}

// Dir returns the snapshot directory.
func (s *FileSnapshotStore) Dir() string { return s.dir }

// LatestAliasPath returns the path of the latest alias file.
func (s *FileSnapshotStore) LatestAliasPath() string {
	return filepath.Join(s.dir, latestAlias)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Write persists snap. An empty snap.ID is assigned from snap.CreatedAt (now
// if zero), with a numeric suffix if that ID is taken.
func (s *FileSnapshotStore) Write(ctx context.Context, snap *domain.Snapshot) (IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return IndexEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ix, err := s.readIndex()
	if err != nil {
		return IndexEntry{}, err
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.ID == "" {
		snap.ID = uniqueID(ix, snap.CreatedAt.UTC().Format(IDLayout))
	} else if _, taken := ix.find(snap.ID); taken {
		return IndexEntry{}, fmt.Errorf("snapshot %s: %w", snap.ID, os.ErrExist)
	}

	entry := IndexEntry{
		ID:        snap.ID,
		File:      snapshotPrefix + snap.ID + ".csv",
		AsOf:      snap.AsOf.UTC(),
		CreatedAt: snap.CreatedAt.UTC(),
		Rows:      len(snap.Rows),
	}
	arenaPath := filepath.Join(s.dir, entry.File)
	aliasPath := s.LatestAliasPath()

	if err := util.CreateExclusive(arenaPath, s.writer(entry.File, func(w io.Writer) error {
		return writeSnapshotCSV(w, snap.Rows)
	})); err != nil {
		return IndexEntry{}, fmt.Errorf("writing snapshot file: %w", err)
	}

	prevAlias, aliasErr := os.ReadFile(aliasPath)
	hadAlias := aliasErr == nil

	if err := util.WriteFileAtomic(aliasPath, s.writer(latestAlias, func(w io.Writer) error {
		return writeSnapshotCSV(w, snap.Rows)
	})); err != nil {
		os.Remove(arenaPath)
		return IndexEntry{}, fmt.Errorf("writing latest alias: %w", err)
	}

	ix.Snapshots = append(ix.Snapshots, entry)
	ix.Latest = entry.ID
	if err := s.writeIndex(ix); err != nil {
		// Put the alias back so it still matches the index.
		if hadAlias {
			if rerr := util.WriteFileAtomic(aliasPath, func(w io.Writer) error {
				_, err := w.Write(prevAlias)
				return err
			}); rerr != nil {
				s.log.Error("restoring latest alias", "path", aliasPath, "error", rerr)
			}
		} else {
			os.Remove(aliasPath)
		}
		os.Remove(arenaPath)
		return IndexEntry{}, fmt.Errorf("writing index: %w", err)
	}

	s.log.Info("snapshot written", "id", entry.ID, "path", arenaPath, "rows", entry.Rows)
	return entry, nil
}

func uniqueID(ix *index, base string) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := ix.find(id); !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *FileSnapshotStore) writer(name string, fn func(io.Writer) error) func(io.Writer) error {
	if s.wrap == nil {
		return fn
	}
	return func(w io.Writer) error {
		return fn(s.wrap(name, w))
	}
}

func (s *FileSnapshotStore) writeIndex(ix *index) error {
	return util.WriteFileAtomic(filepath.Join(s.dir, indexName), s.writer(indexName, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ix)
	}))
}

func writeSnapshotCSV(w io.Writer, rows []domain.SnapshotRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		has := r.HasData()
		rec := []string{
			r.Ticker,
			r.Company,
			r.AsOf.UTC().Format(time.RFC3339),
			formatScore(r.MeanScore, has),
			strconv.Itoa(r.ArticleCount),
			formatScore(r.StdDev, has),
			formatScore(r.WeekScore, has && r.HasWeek),
			formatScore(r.MonthScore, has && r.HasMonth),
			formatScore(r.PositiveRatio, has),
			formatScore(r.NegativeRatio, has),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64, ok bool) string {
	if !ok {
		return NoData
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Latest returns the snapshot named by the index.
func (s *FileSnapshotStore) Latest(ctx context.Context) (*domain.Snapshot, error) {
	ix, err := s.lockedIndex()
	if err != nil {
		return nil, err
	}
	e, ok := ix.find(ix.Latest)
	if !ok {
		return nil, ErrNoSnapshot
	}
	return s.load(ctx, e)
}

// AtOrBefore returns the snapshot with the greatest as-of time not after t.
// Ties go to the most recently created one.
func (s *FileSnapshotStore) AtOrBefore(ctx context.Context, t time.Time) (*domain.Snapshot, error) {
	ix, err := s.lockedIndex()
	if err != nil {
		return nil, err
	}

	var best *IndexEntry
	for i := range ix.Snapshots {
		e := &ix.Snapshots[i]
		if e.AsOf.After(t) {
			continue
		}
		if best == nil || e.AsOf.After(best.AsOf) ||
			(e.AsOf.Equal(best.AsOf) && e.CreatedAt.After(best.CreatedAt)) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrNoSnapshot
	}
	return s.load(ctx, *best)
}

// List returns all index entries ordered by as-of, then creation time.
func (s *FileSnapshotStore) List(_ context.Context) ([]IndexEntry, error) {
	ix, err := s.lockedIndex()
	if err != nil {
		return nil, err
	}
	out := append([]IndexEntry(nil), ix.Snapshots...)
	sortEntries(out)
	return out, nil
}

// Load returns the snapshot with the given ID.
func (s *FileSnapshotStore) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	ix, err := s.lockedIndex()
	if err != nil {
		return nil, err
	}
	e, ok := ix.find(id)
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNoSnapshot)
	}
	return s.load(ctx, e)
}

func (s *FileSnapshotStore) load(ctx context.Context, e IndexEntry) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := ReadSnapshotFile(filepath.Join(s.dir, e.File), s.log)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{ID: e.ID, AsOf: e.AsOf, CreatedAt: e.CreatedAt, Rows: rows}, nil
}

func (s *FileSnapshotStore) lockedIndex() (*index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

// readIndex loads index.json. A missing index is an empty store.
func (s *FileSnapshotStore) readIndex() (*index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexName))
	if errors.Is(err, os.ErrNotExist) {
		return &index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	var ix index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return &ix, nil
}

// ReadSnapshotFile parses a snapshot CSV. Malformed rows are logged with
// their line number and skipped; the rest of the file still loads.
func ReadSnapshotFile(path string, log *slog.Logger) ([]domain.SnapshotRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	if (len(header) != len(csvHeader) && len(header) != legacyColumns) || !strings.EqualFold(header[0], "ticker") {
		return nil, fmt.Errorf("%s: unexpected header %v", path, header)
	}

	var rows []domain.SnapshotRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("skipping unreadable snapshot row", "path", path, "error", err)
			continue
		}
		line, _ := reader.FieldPos(0)
		row, err := parseRow(rec, len(header))
		if err != nil {
			log.Warn("skipping malformed snapshot row", "path", path, "line", line, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, columns int) (domain.SnapshotRow, error) {
	if len(rec) != columns {
		return domain.SnapshotRow{}, fmt.Errorf("got %d columns, want %d", len(rec), columns)
	}
	row := domain.SnapshotRow{
		Ticker:  strings.TrimSpace(rec[0]),
		Company: rec[1],
	}
	if row.Ticker == "" {
		return row, errors.New("empty ticker")
	}

	asOf, err := time.Parse(time.RFC3339, rec[2])
	if err != nil {
		return row, fmt.Errorf("date: %w", err)
	}
	row.AsOf = asOf

	count, err := strconv.Atoi(rec[4])
	if err != nil || count < 0 {
		return row, fmt.Errorf("article_count %q", rec[4])
	}
	row.ArticleCount = count
	if count == 0 {
		return row, nil
	}

	if rec[3] == NoData {
		return row, errors.New("mean_score is NA with articles present")
	}
	if row.MeanScore, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return row, fmt.Errorf("mean_score: %w", err)
	}
	if rec[5] != NoData {
		if row.StdDev, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return row, fmt.Errorf("score_std: %w", err)
		}
	}
	if columns == legacyColumns {
		return row, nil
	}

	if row.WeekScore, row.HasWeek, err = parseOptional(rec[6]); err != nil {
		return row, fmt.Errorf("score_7d: %w", err)
	}
	if row.MonthScore, row.HasMonth, err = parseOptional(rec[7]); err != nil {
		return row, fmt.Errorf("score_30d: %w", err)
	}
	if row.PositiveRatio, _, err = parseOptional(rec[8]); err != nil {
		return row, fmt.Errorf("positive_ratio: %w", err)
	}
	if row.NegativeRatio, _, err = parseOptional(rec[9]); err != nil {
		return row, fmt.Errorf("negative_ratio: %w", err)
	}
	return row, nil
}

func parseOptional(s string) (float64, bool, error) {
	if s == NoData {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// ---------------------------------------------------------------------------
// Retention
// ---------------------------------------------------------------------------

// Archive moves all but the newest keep snapshot files into the archive/
// subdirectory and repoints their index entries. The latest snapshot is
// never moved. keep <= 0 disables archiving.
func (s *FileSnapshotStore) Archive(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ix, err := s.readIndex()
	if err != nil {
		return 0, err
	}

	live := make([]int, 0, len(ix.Snapshots))
	for i, e := range ix.Snapshots {
		if !strings.HasPrefix(e.File, archiveDir+"/") {
			live = append(live, i)
		}
	}
	if len(live) <= keep {
		return 0, nil
	}
	sort.Slice(live, func(a, b int) bool {
		return ix.Snapshots[live[a]].CreatedAt.Before(ix.Snapshots[live[b]].CreatedAt)
	})

	if err := os.MkdirAll(filepath.Join(s.dir, archiveDir), 0o755); err != nil {
		return 0, err
	}

	moved := 0
	for _, i := range live[:len(live)-keep] {
		if err := ctx.Err(); err != nil {
			break
		}
		e := &ix.Snapshots[i]
		if e.ID == ix.Latest {
			continue
		}
		dst := archiveDir + "/" + filepath.Base(e.File)
		if err := os.Rename(filepath.Join(s.dir, e.File), filepath.Join(s.dir, dst)); err != nil {
			s.log.Warn("archiving snapshot", "id", e.ID, "error", err)
			continue
		}
		e.File = dst
		moved++
	}

	if moved > 0 {
		if err := s.writeIndex(ix); err != nil {
			return moved, fmt.Errorf("writing index: %w", err)
		}
		s.log.Info("archived old snapshots", "moved", moved, "kept", keep)
	}
	return moved, nil
}

func sortEntries(es []IndexEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].AsOf.Equal(es[j].AsOf) {
			return es[i].AsOf.Before(es[j].AsOf)
		}
		return es[i].CreatedAt.Before(es[j].CreatedAt)
	})
}
