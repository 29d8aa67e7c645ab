package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Keyword weights for the offline classifier (lowercase).
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "rallies": 0.6, "surge": 0.7, "surges": 0.7,
	"soar": 0.7, "soars": 0.7, "upbeat": 0.5, "positive": 0.4, "growth": 0.4,
	"upgrade": 0.6, "upgraded": 0.6, "outperform": 0.6, "buy": 0.5,
	"strong": 0.4, "recovery": 0.5, "breakout": 0.6, "record high": 0.7,
	"all-time high": 0.7, "beat": 0.5, "beats": 0.5, "exceeds": 0.5,
	"expansion": 0.4, "profit": 0.3, "dividend": 0.4, "gain": 0.4, "gains": 0.4,
	"raises guidance": 0.7, "tops estimates": 0.6,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "plunges": 0.7, "slump": 0.6,
	"negative": 0.4, "downgrade": 0.6, "downgraded": 0.6, "underperform": 0.6,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "declines": 0.5, "loss": 0.4,
	"losses": 0.4, "selloff": 0.7, "fall": 0.4, "falls": 0.4, "correction": 0.5,
	"default": 0.7, "fraud": 0.8, "lawsuit": 0.6, "investigation": 0.5,
	"cut": 0.3, "cuts": 0.3, "miss": 0.5, "misses": 0.5, "warning": 0.5,
	"recall": 0.5, "layoffs": 0.5, "concern": 0.3, "lowers guidance": 0.7,
}

// LexiconClassifier is a deterministic keyword classifier that needs no
// network access.
type LexiconClassifier struct{}

// NewLexiconClassifier returns the offline classifier.
func NewLexiconClassifier() *LexiconClassifier { return &LexiconClassifier{} }

// Name implements Classifier.
func (*LexiconClassifier) Name() string { return "lexicon" }

// Classify implements Classifier. The net score (bull - bear) / (bull + bear)
// is scaled by a confidence that grows with the number of matched terms.
func (*LexiconClassifier) Classify(_ context.Context, text string) (Classification, error) {
	norm := " " + normalize(text) + " "

	var bull, bear float64
	matches := 0
	for w, weight := range bullishWords {
		if strings.Contains(norm, " "+w+" ") {
			bull += weight
			matches++
		}
	}
	for w, weight := range bearishWords {
		if strings.Contains(norm, " "+w+" ") {
			bear += weight
			matches++
		}
	}

	total := bull + bear
	if matches == 0 || total == 0 {
		return Classification{Label: Neutral, Confidence: 0.1}, nil
	}

	net := (bull - bear) / total
	conf := math.Min(float64(matches)*0.15+0.2, 0.85)

	switch {
	case net > 0:
		return Classification{Label: Positive, Confidence: net * conf}, nil
	case net < 0:
		return Classification{Label: Negative, Confidence: -net * conf}, nil
	default:
		return Classification{Label: Neutral, Confidence: conf}, nil
	}
}

// normalize lowercases text and turns everything except letters, digits and
// hyphens into single spaces.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
