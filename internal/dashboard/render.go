package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tigro/internal/util"
)

//go:embed templates/*.html templates/*.js templates/*.css
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"articlePage": ArticlePage,
	"asset":       asset,
}).ParseFS(templateFS, "templates/*.html"))

// asset inlines an embedded script or stylesheet.
func asset(name string) (any, error) {
	b, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(name) {
	case ".js":
		return template.JS(b), nil
	case ".css":
		return template.CSS(b), nil
	}
	return nil, fmt.Errorf("unknown asset type %q", name)
}

// IndexFile is the dashboard's entry page.
const IndexFile = "index.html"

// ArticleDir holds the per-ticker article pages.
const ArticleDir = "articles"

// ArticlePage returns the article page path for ticker, relative to the
// dashboard root.
func ArticlePage(ticker string) string {
	return ArticleDir + "/" + ticker + ".html"
}

// Render regenerates the whole dashboard under outDir and returns the path
// of the index page. Every file is written atomically; article pages for
// tickers no longer shown are removed.
func Render(outDir string, d Data) (string, error) {
	if d.Snapshot == nil {
		return "", fmt.Errorf("rendering dashboard: no snapshot")
	}
	if d.Title == "" {
		d.Title = "Sentiment Dashboard"
	}

	view := buildIndex(d)

	articleDir := filepath.Join(outDir, ArticleDir)
	if err := os.MkdirAll(articleDir, 0o755); err != nil {
		return "", fmt.Errorf("creating dashboard dir: %w", err)
	}

	keep := make(map[string]bool)
	for _, row := range view.Rows {
		if !row.HasPage {
			continue
		}
		name := row.Ticker + ".html"
		page := buildArticlePage(d.Title, d.Snapshot.AsOf, row, d.Articles[row.Ticker])
		if err := writePage(filepath.Join(articleDir, name), "article.html", page); err != nil {
			return "", err
		}
		keep[name] = true
	}

	indexPath := filepath.Join(outDir, IndexFile)
	if err := writePage(indexPath, "index.html", view); err != nil {
		return "", err
	}

	if err := pruneArticles(articleDir, keep); err != nil {
		return "", err
	}
	return indexPath, nil
}

func writePage(path, tmpl string, data any) error {
	if err := util.WriteFileAtomic(path, func(w io.Writer) error {
		return pages.ExecuteTemplate(w, tmpl, data)
	}); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// pruneArticles removes article pages not in keep.
func pruneArticles(dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") || keep[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("removing stale page %s: %w", e.Name(), err)
		}
	}
	return nil
}
