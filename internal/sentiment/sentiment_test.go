package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClassifier returns a canned verdict per exact text.
type fixedClassifier struct {
	verdicts map[string]Classification
	err      error
	seen     []string
}

func (f *fixedClassifier) Name() string { return "fixed" }

func (f *fixedClassifier) Classify(_ context.Context, text string) (Classification, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return Classification{}, f.err
	}
	return f.verdicts[text], nil
}

func TestSigned(t *testing.T) {
	assert.Equal(t, 0.8, Classification{Label: Positive, Confidence: 0.8}.Signed())
	assert.Equal(t, -0.6, Classification{Label: Negative, Confidence: 0.6}.Signed())
	assert.Equal(t, 0.0, Classification{Label: Neutral, Confidence: 0.9}.Signed())
	assert.Equal(t, 1.0, Classification{Label: Positive, Confidence: 1.7}.Signed())
}

func TestScorerCombinesWeights(t *testing.T) {
	c := &fixedClassifier{verdicts: map[string]Classification{
		"Apple beats":  {Label: Positive, Confidence: 0.9},
		"Margins fell": {Label: Negative, Confidence: 0.5},
	}}
	s := NewScorer(c, DefaultWeights(), 0)

	got, err := s.Score(context.Background(), "Apple beats", "Margins fell")
	require.NoError(t, err)
	assert.True(t, got.HasBody)
	assert.InDelta(t, 0.9, got.Headline, 1e-9)
	assert.InDelta(t, -0.5, got.Body, 1e-9)
	assert.InDelta(t, 0.4*0.9+0.6*-0.5, got.Combined, 1e-9)
}

func TestScorerHeadlineOnly(t *testing.T) {
	c := &fixedClassifier{verdicts: map[string]Classification{
		"Tesla recall": {Label: Negative, Confidence: 0.7},
	}}
	s := NewScorer(c, DefaultWeights(), 0)

	got, err := s.Score(context.Background(), "Tesla recall", "  \n ")
	require.NoError(t, err)
	assert.False(t, got.HasBody)
	assert.InDelta(t, -0.7, got.Combined, 1e-9)
	assert.Len(t, c.seen, 1, "blank body must not be classified")
}

func TestScorerClamps(t *testing.T) {
	c := &fixedClassifier{verdicts: map[string]Classification{
		"h": {Label: Positive, Confidence: 1},
		"b": {Label: Positive, Confidence: 1},
	}}
	s := NewScorer(c, Weights{Headline: 1, Body: 1}, 0)

	got, err := s.Score(context.Background(), "h", "b")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Combined)
}

func TestScorerError(t *testing.T) {
	s := NewScorer(&fixedClassifier{err: errors.New("boom")}, DefaultWeights(), 0)
	_, err := s.Score(context.Background(), "h", "b")
	assert.ErrorContains(t, err, "boom")
}

func TestScorerTruncates(t *testing.T) {
	c := &fixedClassifier{verdicts: map[string]Classification{}}
	s := NewScorer(c, DefaultWeights(), 20)

	_, err := s.Score(context.Background(), "short", strings.Repeat("word ", 100))
	require.NoError(t, err)
	require.Len(t, c.seen, 2)
	assert.LessOrEqual(t, len(c.seen[1]), 20)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 0))
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello", Truncate("hello world", 8))
	// Never split a multi-byte rune.
	got := Truncate("ééééé", 3)
	assert.Equal(t, "é", got)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel(" Positive ")
	require.NoError(t, err)
	assert.Equal(t, Positive, l)

	_, err = ParseLabel("LABEL_2")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Lexicon
// ---------------------------------------------------------------------------

func TestLexiconClassifier(t *testing.T) {
	lex := NewLexiconClassifier()
	ctx := context.Background()

	tests := []struct {
		text string
		want Label
	}{
		{"Apple shares surge to record high after earnings beat", Positive},
		{"Tesla stock plunges on recall and fraud investigation", Negative},
		{"Company schedules annual meeting", Neutral},
		{"Executive summary", Neutral}, // "cut" inside a word does not count
	}
	for _, tt := range tests {
		got, err := lex.Classify(ctx, tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Label, tt.text)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
	}

	a, _ := lex.Classify(ctx, "Strong rally")
	b, _ := lex.Classify(ctx, "Strong rally")
	assert.Equal(t, a, b, "lexicon must be deterministic")
}

// ---------------------------------------------------------------------------
// Hugging Face
// ---------------------------------------------------------------------------

func TestHuggingFaceClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ProsusAI/finbert", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var req hfRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Profits collapse", req.Inputs)

		io.WriteString(w, `[[{"label":"positive","score":0.05},{"label":"negative","score":0.9},{"label":"neutral","score":0.05}]]`)
	}))
	defer srv.Close()

	c := NewHuggingFaceClassifier("hf_test", WithHuggingFaceBaseURL(srv.URL), WithHuggingFaceRetry(1, 0))
	got, err := c.Classify(context.Background(), "Profits collapse")
	require.NoError(t, err)
	assert.Equal(t, Negative, got.Label)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "huggingface:ProsusAI/finbert", c.Name())
}

func TestHuggingFaceFlatResponseAndRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":"Model is currently loading"}`, http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `[{"label":"Positive","score":0.7},{"label":"neutral","score":0.3}]`)
	}))
	defer srv.Close()

	c := NewHuggingFaceClassifier("t", WithHuggingFaceBaseURL(srv.URL), WithHuggingFaceRetry(3, 0))
	got, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, Positive, got.Label)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHuggingFaceAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHuggingFaceClassifier("bad", WithHuggingFaceBaseURL(srv.URL), WithHuggingFaceRetry(3, 0))
	_, err := c.Classify(context.Background(), "x")

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

// ---------------------------------------------------------------------------
// Gemini
// ---------------------------------------------------------------------------

func TestGeminiClassify(t *testing.T) {
	var prompt string
	c := &GeminiClassifier{model: "gemini-test", generate: func(_ context.Context, p string) (string, error) {
		prompt = p
		return "```json\n{\"label\": \"negative\", \"confidence\": 0.75}\n```", nil
	}}

	got, err := c.Classify(context.Background(), "Guidance cut")
	require.NoError(t, err)
	assert.Equal(t, Negative, got.Label)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.Contains(t, prompt, "Guidance cut")

	bad := &GeminiClassifier{generate: func(context.Context, string) (string, error) {
		return `{"label": "bullish", "confidence": 1}`, nil
	}}
	_, err = bad.Classify(context.Background(), "x")
	assert.Error(t, err)
}
