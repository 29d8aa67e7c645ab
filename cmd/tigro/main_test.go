package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"log/slog"
	"time"

	"tigro/internal/domain"
	"tigro/internal/store"
	"tigro/internal/trend"
)

func TestResolveConfigPath(t *testing.T) {
	old := *configPath
	defer func() { *configPath = old }()

	*configPath = ""
	t.Setenv("TIGRO_CONFIG", "")
	if got := resolveConfigPath(); got != "config/tigro.yaml" {
		t.Errorf("default = %q, want config/tigro.yaml", got)
	}

	t.Setenv("TIGRO_CONFIG", "/etc/tigro.yaml")
	if got := resolveConfigPath(); got != "/etc/tigro.yaml" {
		t.Errorf("env = %q, want /etc/tigro.yaml", got)
	}

	*configPath = "flag.yaml"
	if got := resolveConfigPath(); got != "flag.yaml" {
		t.Errorf("flag = %q, want flag.yaml", got)
	}
}

func TestRouterServesDashboard(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dash</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newRouter(dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard/" {
		t.Errorf("GET / = %d %q, want redirect to index", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dash") {
		t.Errorf("GET index = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestLatestScores(t *testing.T) {
	ctx := context.Background()
	snaps := store.NewFileSnapshotStore(t.TempDir(), slog.Default())

	scores, err := latestScores(ctx, snaps)
	if err != nil || scores != nil {
		t.Fatalf("empty store = %v, %v; want nil, nil", scores, err)
	}

	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = snaps.Write(ctx, &domain.Snapshot{
		AsOf: asOf,
		Rows: []domain.SnapshotRow{
			{Ticker: "AAPL", AsOf: asOf, MeanScore: 0.4, ArticleCount: 3},
			{Ticker: "QUIET", AsOf: asOf},
		},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	scores, err = latestScores(ctx, snaps)
	if err != nil {
		t.Fatalf("latestScores: %v", err)
	}
	if len(scores) != 1 || scores["AAPL"] != 0.4 {
		t.Errorf("scores = %v, want only AAPL=0.4", scores)
	}
}

func TestTrendMarkdown(t *testing.T) {
	w := &trend.Window{
		Days:     7,
		Baseline: &domain.Snapshot{ID: "2026-03-03"},
		Records: []domain.TrendRecord{
			{Ticker: "TSLA", Current: -0.2, HasCurrent: true, Historical: 0.1, HasHistorical: true, PctChange: -3, HasPct: true, Label: domain.TrendDown, Window: 7},
			{Ticker: "AAPL", Current: 0.3, HasCurrent: true, Historical: 0.2, HasHistorical: true, PctChange: 0.5, HasPct: true, Label: domain.TrendUp, Window: 7},
		},
	}
	md := trendMarkdown("2026-03-10", w, 10)

	for _, want := range []string{
		"# 7d trends for 2026-03-10",
		"Baseline: 2026-03-03",
		"| UP | 1 |",
		"| DOWN | 1 |",
		"## Decliners",
		"| TSLA | -0.200 | +0.100 | -300% | DOWN |",
		"| AAPL | +0.300 | +0.200 | +50.0% | UP |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "| AAPL") > strings.LastIndex(md, "| TSLA") {
		t.Error("all-tickers table should be sorted by ticker")
	}
}
