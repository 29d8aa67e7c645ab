// Package dashboard renders the static sentiment dashboard: an index page
// with summary cards, a sortable per-ticker table, sector groups and a
// missing-data section, plus one article page per ticker.
package dashboard

import (
	"math"
	"sort"
	"time"

	"tigro/internal/aggregate"
	"tigro/internal/domain"
	"tigro/internal/trend"
	"tigro/internal/universe"
)

// HistoryEntry describes one stored snapshot for the history table.
type HistoryEntry struct {
	ID   string
	AsOf time.Time
	Rows int
}

// Data is everything the renderer needs. Trend windows arrive already
// labelled; the renderer never applies thresholds itself.
type Data struct {
	Title         string
	GeneratedAt   time.Time
	Snapshot      *domain.Snapshot
	Universe      *universe.Universe // optional, supplies sectors
	Windows       []trend.Window
	PrimaryWindow int
	Orphans       []string
	Articles      map[string][]domain.ArticleRecord
	History       []HistoryEntry
}

// ---------------------------------------------------------------------------
// Template view models
// ---------------------------------------------------------------------------

type trendCell struct {
	Label string
	Pct   string
	Sort  float64
	Class string
}

type tableRow struct {
	Ticker     string
	Company    string
	Sector     string
	Score      string
	ScoreSort  float64
	ScoreClass string
	Articles   int
	StdDev     string
	Week       scoreCell
	Month      scoreCell
	Positive   string
	Negative   string
	PosSort    float64
	NegSort    float64
	HasData    bool
	HasPage    bool
	Trends     []trendCell
}

type scoreCell struct {
	Text  string
	Sort  float64
	Class string
}

type summaryView struct {
	Tickers  int
	WithData int
	Articles string
	Average  string
	AvgClass string
	Window   int
	Up       int
	Down     int
	Stable   int
	New      int
}

type sectorGroup struct {
	Name     string
	Count    int
	WithData int
	Average  string
	AvgClass string
}

type missingView struct {
	NoData  []tableRow
	Orphans []string
}

type indexView struct {
	Title       string
	AsOf        string
	GeneratedAt string
	SnapshotID  string
	Summary     summaryView
	WindowDays  []int
	Rows        []tableRow
	Sectors     []sectorGroup
	Missing     missingView
	History     []HistoryEntry
}

type articleView struct {
	Ticker   string
	Company  string
	Title    string
	AsOf     string
	Row      tableRow
	Articles []articleItem
}

type articleItem struct {
	Published     string
	Source        string
	Headline      string
	URL           string
	Combined      string
	Class         string
	HeadlineScore string
	BodyScore     string
}

// missingSort pushes rows without a value to the end of an ascending sort.
const missingSort = math.MaxFloat64

// buildIndex assembles the index view from d.
func buildIndex(d Data) indexView {
	v := indexView{
		Title:       d.Title,
		AsOf:        d.Snapshot.AsOf.UTC().Format(time.DateOnly),
		GeneratedAt: d.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"),
		SnapshotID:  d.Snapshot.ID,
		History:     d.History,
	}
	for _, w := range d.Windows {
		v.WindowDays = append(v.WindowDays, w.Days)
	}

	sectors := sectorMap(d.Universe)
	trends := trendIndex(d.Windows)

	rows := append([]domain.SnapshotRow(nil), d.Snapshot.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })

	var scores []float64
	articles := 0
	for _, r := range rows {
		tr := buildRow(r, sectors[r.Ticker], d.Articles)
		for _, w := range d.Windows {
			tr.Trends = append(tr.Trends, buildCell(trends[w.Days][r.Ticker]))
		}
		v.Rows = append(v.Rows, tr)

		if r.HasData() {
			scores = append(scores, r.MeanScore)
			articles += r.ArticleCount
		} else {
			v.Missing.NoData = append(v.Missing.NoData, tr)
		}
	}
	v.Missing.Orphans = d.Orphans

	avg, _ := aggregate.MeanStd(scores)
	v.Summary = summaryView{
		Tickers:  len(rows),
		WithData: len(scores),
		Articles: FormatInt(articles),
		Average:  FormatScore(avg, len(scores) > 0),
		AvgClass: scoreClass(avg, len(scores) > 0),
		Window:   d.PrimaryWindow,
	}
	if w := trend.Find(d.Windows, d.PrimaryWindow); w != nil {
		c := trend.Counts(w.Records)
		v.Summary.Up = c[domain.TrendUp]
		v.Summary.Down = c[domain.TrendDown]
		v.Summary.Stable = c[domain.TrendStable]
		v.Summary.New = c[domain.TrendNew]
	}

	v.Sectors = groupSectors(rows, sectors)
	return v
}

func buildRow(r domain.SnapshotRow, sector string, articles map[string][]domain.ArticleRecord) tableRow {
	tr := tableRow{
		Ticker:     r.Ticker,
		Company:    r.Company,
		Sector:     sector,
		Score:      FormatScore(r.MeanScore, r.HasData()),
		ScoreSort:  missingSort,
		ScoreClass: scoreClass(r.MeanScore, r.HasData()),
		Articles:   r.ArticleCount,
		StdDev:     FormatStdDev(r.StdDev, r.HasData()),
		Week:       buildScoreCell(r.WeekScore, r.HasData() && r.HasWeek),
		Month:      buildScoreCell(r.MonthScore, r.HasData() && r.HasMonth),
		Positive:   FormatRatio(r.PositiveRatio, r.HasData()),
		Negative:   FormatRatio(r.NegativeRatio, r.HasData()),
		PosSort:    missingSort,
		NegSort:    missingSort,
		HasData:    r.HasData(),
		HasPage:    len(articles[r.Ticker]) > 0,
	}
	if r.HasData() {
		tr.ScoreSort = r.MeanScore
		tr.PosSort = r.PositiveRatio
		tr.NegSort = r.NegativeRatio
	}
	return tr
}

func buildScoreCell(score float64, ok bool) scoreCell {
	c := scoreCell{Text: FormatScore(score, ok), Sort: missingSort, Class: scoreClass(score, ok)}
	if ok {
		c.Sort = score
	}
	return c
}

func buildCell(rec domain.TrendRecord) trendCell {
	c := trendCell{
		Label: string(rec.Label),
		Pct:   FormatPct(rec.PctChange, rec.HasPct),
		Sort:  missingSort,
		Class: "flat",
	}
	if rec.Label == "" {
		c.Label = "-"
	}
	if rec.HasPct {
		c.Sort = rec.PctChange
	}
	switch rec.Label {
	case domain.TrendUp:
		c.Class = "pos"
	case domain.TrendDown:
		c.Class = "neg"
	case domain.TrendNew:
		c.Class = "new"
	}
	return c
}

// trendIndex maps window days to ticker to record.
func trendIndex(windows []trend.Window) map[int]map[string]domain.TrendRecord {
	out := make(map[int]map[string]domain.TrendRecord, len(windows))
	for _, w := range windows {
		m := make(map[string]domain.TrendRecord, len(w.Records))
		for _, r := range w.Records {
			m[r.Ticker] = r
		}
		out[w.Days] = m
	}
	return out
}

func sectorMap(u *universe.Universe) map[string]string {
	m := make(map[string]string)
	if u == nil {
		return m
	}
	for _, e := range u.Entries() {
		m[e.Symbol] = e.Sector
	}
	return m
}

// groupSectors summarises rows per sector, largest groups first. Tickers
// without a sector are grouped as "Other".
func groupSectors(rows []domain.SnapshotRow, sectors map[string]string) []sectorGroup {
	type acc struct {
		count  int
		scores []float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		name := sectors[r.Ticker]
		if name == "" {
			name = "Other"
		}
		g, ok := groups[name]
		if !ok {
			g = &acc{}
			groups[name] = g
		}
		g.count++
		if r.HasData() {
			g.scores = append(g.scores, r.MeanScore)
		}
	}

	out := make([]sectorGroup, 0, len(groups))
	for name, g := range groups {
		avg, _ := aggregate.MeanStd(g.scores)
		out = append(out, sectorGroup{
			Name:     name,
			Count:    g.count,
			WithData: len(g.scores),
			Average:  FormatScore(avg, len(g.scores) > 0),
			AvgClass: scoreClass(avg, len(g.scores) > 0),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// buildArticlePage assembles one ticker's article page, newest first.
func buildArticlePage(title string, asOf time.Time, row tableRow, records []domain.ArticleRecord) articleView {
	sorted := append([]domain.ArticleRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Published.After(sorted[j].Published) })

	v := articleView{
		Ticker:  row.Ticker,
		Company: row.Company,
		Title:   title,
		AsOf:    asOf.UTC().Format(time.DateOnly),
		Row:     row,
	}
	for _, a := range sorted {
		item := articleItem{
			Published: a.Published.UTC().Format("2006-01-02 15:04"),
			Source:    a.Source,
			Headline:  a.Headline,
			URL:       a.URL,
			Combined:      FormatScore(a.Combined, true),
			Class:         scoreClass(a.Combined, true),
			HeadlineScore: FormatScore(a.HeadlineScore, true),
			BodyScore:     FormatScore(a.BodyScore, a.HasBody),
		}
		v.Articles = append(v.Articles, item)
	}
	return v
}
