package universe

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParse(t *testing.T) {
	in := `Symbol,Company,Sector
aapl,Apple Inc.,Technology

MSFT, Microsoft Corp ,Technology
,Nameless,
TSLA,,Autos
AAPL,Apple Duplicate,Technology
NVDA,NVIDIA
`
	u, err := Parse(strings.NewReader(in), discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{"AAPL", "MSFT", "NVDA"}
	got := u.Tickers()
	if len(got) != len(want) {
		t.Fatalf("Tickers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tickers[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if c := u.Company("aapl"); c != "Apple Inc." {
		t.Errorf("Company(aapl) = %q, want first occurrence", c)
	}
	if c := u.Company("MSFT"); c != "Microsoft Corp" {
		t.Errorf("Company(MSFT) = %q, want trimmed name", c)
	}
	if u.Contains("TSLA") {
		t.Error("TSLA has no company and should be skipped")
	}
	if u.Entries()[0].Sector != "Technology" {
		t.Errorf("Sector = %q, want Technology", u.Entries()[0].Sector)
	}
}

func TestParseBadHeader(t *testing.T) {
	tests := []string{
		"",
		"AAPL,Apple Inc.\nMSFT,Microsoft\n",
		"ticker,name\nAAPL,Apple\n",
		"symbol\nAAPL\n",
		"symbol,company,sector,extra\nAAPL,Apple,Tech,x\n",
	}
	for _, in := range tests {
		if _, err := Parse(strings.NewReader(in), discard); !errors.Is(err, ErrBadHeader) {
			t.Errorf("Parse(%q) error = %v, want ErrBadHeader", in, err)
		}
	}
}

func TestParseByteOrderMark(t *testing.T) {
	u, err := Parse(strings.NewReader("\ufeffsymbol,company\nAMD,Advanced Micro Devices\n"), discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.Len() != 1 || !u.Contains("AMD") {
		t.Errorf("Tickers = %v, want [AMD]", u.Tickers())
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.csv")
	if err := os.WriteFile(path, []byte("symbol,company\nGOOGL,Alphabet\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := Load(path, discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if u.Len() != 1 {
		t.Errorf("Len = %d, want 1", u.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv"), discard); err == nil {
		t.Error("Load should fail for missing file")
	}
}
