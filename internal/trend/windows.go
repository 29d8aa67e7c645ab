package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tigro/internal/domain"
	"tigro/internal/store"
)

// SnapshotFinder looks up the most recent snapshot at or before a time.
type SnapshotFinder interface {
	AtOrBefore(ctx context.Context, t time.Time) (*domain.Snapshot, error)
}

// Window is the trend result for one lookback.
type Window struct {
	Days     int
	Baseline *domain.Snapshot // nil when no snapshot is old enough
	Records  []domain.TrendRecord
}

// Windows computes trends of current against, for each lookback, the latest
// snapshot taken on or before the UTC calendar day that many days earlier.
// Run start times jitter, so baselines are matched by day, not by instant.
// A missing baseline yields all-NEW records.
func Windows(ctx context.Context, snaps SnapshotFinder, current *domain.Snapshot, lookbacks []int, cfg Config, log *slog.Logger) ([]Window, error) {
	cur := current.ByTicker()
	out := make([]Window, 0, len(lookbacks))

	for _, days := range lookbacks {
		w := Window{Days: days}
		cutoff := BaselineCutoff(current.AsOf, days)

		base, err := snaps.AtOrBefore(ctx, cutoff)
		switch {
		case errors.Is(err, store.ErrNoSnapshot):
			log.Info("no baseline snapshot for window", "window", days, "cutoff", cutoff.Format(time.DateOnly))
		case err != nil:
			return nil, fmt.Errorf("loading %dd baseline: %w", days, err)
		default:
			w.Baseline = base
		}

		var hist map[string]domain.SnapshotRow
		if w.Baseline != nil {
			hist = w.Baseline.ByTicker()
		}
		w.Records = Compute(cur, hist, days, cfg, log)
		out = append(out, w)
	}
	return out, nil
}

// BaselineCutoff returns the last instant of the UTC day that lies days
// calendar days before asOf.
func BaselineCutoff(asOf time.Time, days int) time.Time {
	y, m, d := asOf.UTC().Date()
	return time.Date(y, m, d-days+1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// Find returns the window with the given lookback, or nil.
func Find(windows []Window, days int) *Window {
	for i := range windows {
		if windows[i].Days == days {
			return &windows[i]
		}
	}
	return nil
}
