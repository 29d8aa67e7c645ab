package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which stages a run executes.
type Mode int

const (
	// ModeAll collects, scores, snapshots, renders and notifies.
	ModeAll Mode = iota
	// ModeCollectOnly collects and scores articles into the ledger.
	ModeCollectOnly
	// ModeDashboardOnly re-renders the dashboard from the latest snapshot.
	ModeDashboardOnly
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeCollectOnly:
		return "collect-only"
	case ModeDashboardOnly:
		return "dashboard-only"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Stage records how one stage went.
type Stage struct {
	Name     string
	Duration time.Duration
	Err      string
}

// Summary reports a run. It is returned even when the run fails, with the
// stages completed so far.
type Summary struct {
	RunID   string
	Mode    Mode
	Started time.Time

	Tickers           int
	TickersFailed     int // every source failed
	SourcesFailed     int // per (ticker, source) failures
	ArticlesCollected int
	ArticlesDuplicate int // already in the ledger
	ArticlesScored    int
	ScoreErrors       int

	SnapshotID      string
	SnapshotWritten bool
	ArchivePath     string
	ArchiveFailed   bool

	Up, Down, Stable, New int
	PrimaryWindow         int

	DashboardPath string
	EmailSent     bool
	EmailFailed   bool

	Duration time.Duration
	Stages   []Stage
}

func (s *Summary) stage(name string, start time.Time, err error) {
	st := Stage{Name: name, Duration: time.Since(start).Round(time.Millisecond)}
	if err != nil {
		st.Err = err.Error()
	}
	s.Stages = append(s.Stages, st)
}

// Markdown renders the summary for the terminal.
func (s *Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Mode **%s**, started %s, took %s.\n\n",
		s.Mode, s.Started.UTC().Format("2006-01-02 15:04:05 UTC"), s.Duration.Round(time.Second))

	b.WriteString("| | |\n|---|---:|\n")
	row := func(k string, v any) { fmt.Fprintf(&b, "| %s | %v |\n", k, v) }
	if s.Mode != ModeDashboardOnly {
		row("Tickers", s.Tickers)
		row("Tickers failed", s.TickersFailed)
		row("Source failures", s.SourcesFailed)
		row("Articles collected", s.ArticlesCollected)
		row("Already scored", s.ArticlesDuplicate)
		row("Articles scored", s.ArticlesScored)
		row("Score errors", s.ScoreErrors)
	}
	if s.SnapshotID != "" {
		row("Snapshot", s.SnapshotID)
	}
	if s.PrimaryWindow > 0 {
		row(fmt.Sprintf("Trends (%dd)", s.PrimaryWindow),
			fmt.Sprintf("%d up / %d down / %d stable / %d new", s.Up, s.Down, s.Stable, s.New))
	}
	if s.DashboardPath != "" {
		row("Dashboard", "`"+s.DashboardPath+"`")
	}
	switch {
	case s.EmailSent:
		row("Email", "sent")
	case s.EmailFailed:
		row("Email", "**failed**")
	}

	if len(s.Stages) > 0 {
		b.WriteString("\n## Stages\n\n| Stage | Time | Error |\n|---|---:|---|\n")
		for _, st := range s.Stages {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", st.Name, st.Duration, strings.ReplaceAll(st.Err, "|", `\|`))
		}
	}
	return b.String()
}
