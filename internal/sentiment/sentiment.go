// Package sentiment turns article text into signed scores in [-1, 1] using a
// pluggable classifier and combines headline and body scores.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Label is a classifier's verdict.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// ParseLabel normalises a backend label such as "Positive".
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case Positive:
		return Positive, nil
	case Negative:
		return Negative, nil
	case Neutral:
		return Neutral, nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", s)
}

// Classification is a label with the classifier's confidence in [0, 1].
type Classification struct {
	Label      Label
	Confidence float64
}

// Signed maps the classification onto [-1, 1]: positive is +confidence,
// negative is -confidence, neutral is 0.
func (c Classification) Signed() float64 {
	conf := math.Max(0, math.Min(1, c.Confidence))
	switch c.Label {
	case Positive:
		return conf
	case Negative:
		return -conf
	default:
		return 0
	}
}

// Classifier labels a piece of financial text.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (Classification, error)
}

// Weights combine headline and body scores.
type Weights struct {
	Headline float64
	Body     float64
}

// DefaultWeights favour the body, which carries more context.
func DefaultWeights() Weights {
	return Weights{Headline: 0.4, Body: 0.6}
}

// ArticleScore is the result of scoring one article.
type ArticleScore struct {
	Headline float64
	Body     float64
	HasBody  bool
	Combined float64
}

// Scorer scores articles with a classifier.
type Scorer struct {
	classifier Classifier
	weights    Weights
	maxChars   int
}

// NewScorer creates a Scorer. maxChars bounds the text sent to the
// classifier; <= 0 means no limit.
func NewScorer(c Classifier, w Weights, maxChars int) *Scorer {
	return &Scorer{classifier: c, weights: w, maxChars: maxChars}
}

// Classifier returns the underlying classifier.
func (s *Scorer) Classifier() Classifier { return s.classifier }

// Score classifies headline and body. With a blank body the combined score
// is the headline score alone. The result is clamped to [-1, 1].
func (s *Scorer) Score(ctx context.Context, headline, body string) (ArticleScore, error) {
	var out ArticleScore

	h, err := s.classifier.Classify(ctx, Truncate(headline, s.maxChars))
	if err != nil {
		return out, fmt.Errorf("classifying headline: %w", err)
	}
	out.Headline = h.Signed()

	if strings.TrimSpace(body) == "" {
		out.Combined = clamp(out.Headline)
		return out, nil
	}

	b, err := s.classifier.Classify(ctx, Truncate(body, s.maxChars))
	if err != nil {
		return out, fmt.Errorf("classifying body: %w", err)
	}
	out.Body = b.Signed()
	out.HasBody = true
	out.Combined = clamp(s.weights.Headline*out.Headline + s.weights.Body*out.Body)
	return out, nil
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// Truncate cuts s to at most max bytes on a rune boundary, preferring the
// last word break. max <= 0 returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexByte(s[:cut], ' '); i > max/2 {
		cut = i
	}
	return s[:cut]
}
