// Package universe loads the list of tracked tickers and their company names.
package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrBadHeader is returned when the universe file does not start with a
// symbol,company[,sector] header row.
var ErrBadHeader = errors.New("universe: header must be symbol,company[,sector]")

// Entry is one tracked ticker.
type Entry struct {
	Symbol  string
	Company string
	Sector  string
}

// Universe is the read-only, ordered set of tracked tickers.
type Universe struct {
	entries []Entry
	index   map[string]int
}

// Load reads the universe CSV at path.
func Load(path string, log *slog.Logger) (*Universe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening universe: %w", err)
	}
	defer f.Close()

	u, err := Parse(f, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("loaded universe", "path", path, "tickers", u.Len())
	return u, nil
}

// Parse reads a universe CSV from r. Blank lines are ignored; rows with an
// empty symbol or company are skipped; the first occurrence of a duplicate
// symbol wins.
func Parse(r io.Reader, log *slog.Logger) (*Universe, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrBadHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if !validHeader(header) {
		return nil, ErrBadHeader
	}

	u := &Universe{index: make(map[string]int)}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("skipping unreadable universe row", "error", err)
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(rec) < 2 {
			log.Warn("skipping short universe row", "line", line)
			continue
		}

		e := Entry{
			Symbol:  strings.ToUpper(strings.TrimSpace(rec[0])),
			Company: strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			e.Sector = strings.TrimSpace(rec[2])
		}
		if e.Symbol == "" || e.Company == "" {
			log.Warn("skipping incomplete universe row", "line", line, "ticker", e.Symbol)
			continue
		}
		if _, dup := u.index[e.Symbol]; dup {
			log.Warn("duplicate ticker in universe, keeping first", "line", line, "ticker", e.Symbol)
			continue
		}
		u.index[e.Symbol] = len(u.entries)
		u.entries = append(u.entries, e)
	}
	return u, nil
}

func validHeader(h []string) bool {
	if len(h) < 2 || len(h) > 3 {
		return false
	}
	// Excel likes to prepend a byte-order mark.
	first := strings.TrimPrefix(h[0], "\ufeff")
	if !strings.EqualFold(strings.TrimSpace(first), "symbol") ||
		!strings.EqualFold(strings.TrimSpace(h[1]), "company") {
		return false
	}
	return len(h) == 2 || strings.EqualFold(strings.TrimSpace(h[2]), "sector")
}

// New builds a universe from entries, mainly for tests and tools.
func New(entries []Entry) *Universe {
	u := &Universe{index: make(map[string]int)}
	for _, e := range entries {
		e.Symbol = strings.ToUpper(e.Symbol)
		if _, dup := u.index[e.Symbol]; dup {
			continue
		}
		u.index[e.Symbol] = len(u.entries)
		u.entries = append(u.entries, e)
	}
	return u
}

// Tickers returns the symbols in file order.
func (u *Universe) Tickers() []string {
	out := make([]string, len(u.entries))
	for i, e := range u.entries {
		out[i] = e.Symbol
	}
	return out
}

// Entries returns a copy of the entries in file order.
func (u *Universe) Entries() []Entry {
	return append([]Entry(nil), u.entries...)
}

// Company returns the company name for symbol, or "" if unknown.
func (u *Universe) Company(symbol string) string {
	if i, ok := u.index[strings.ToUpper(symbol)]; ok {
		return u.entries[i].Company
	}
	return ""
}

// Contains reports whether symbol is tracked.
func (u *Universe) Contains(symbol string) bool {
	_, ok := u.index[strings.ToUpper(symbol)]
	return ok
}

// Len returns the number of tickers.
func (u *Universe) Len() int {
	return len(u.entries)
}
