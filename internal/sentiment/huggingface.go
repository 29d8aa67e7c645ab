package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tigro/internal/util"
)

const (
	// HuggingFaceBaseURL is the hosted inference endpoint.
	HuggingFaceBaseURL = "https://api-inference.huggingface.co/models"

	// FinBERT is the default financial sentiment model.
	FinBERT = "ProsusAI/finbert"
)

// HTTPError is a non-2xx response from a classifier backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("classifier API error: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed later. The inference
// API answers 503 while a model is loading.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HuggingFaceClassifier calls a hosted text-classification model.
type HuggingFaceClassifier struct {
	baseURL     string
	model       string
	token       string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
}

// HuggingFaceOption configures a HuggingFaceClassifier.
type HuggingFaceOption func(*HuggingFaceClassifier)

// WithHuggingFaceBaseURL sets a custom inference endpoint.
func WithHuggingFaceBaseURL(u string) HuggingFaceOption {
	return func(c *HuggingFaceClassifier) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHuggingFaceModel selects the model.
func WithHuggingFaceModel(model string) HuggingFaceOption {
	return func(c *HuggingFaceClassifier) { c.model = model }
}

// WithHuggingFaceHTTPClient sets a custom HTTP client.
func WithHuggingFaceHTTPClient(h *http.Client) HuggingFaceOption {
	return func(c *HuggingFaceClassifier) { c.httpClient = h }
}

// WithHuggingFaceRetry sets the retry budget for transient failures.
func WithHuggingFaceRetry(attempts int, delay time.Duration) HuggingFaceOption {
	return func(c *HuggingFaceClassifier) {
		c.maxAttempts = attempts
		c.retryDelay = delay
	}
}

// NewHuggingFaceClassifier creates a classifier for FinBERT unless another
// model is configured.
func NewHuggingFaceClassifier(token string, opts ...HuggingFaceOption) *HuggingFaceClassifier {
	c := &HuggingFaceClassifier{
		baseURL:     HuggingFaceBaseURL,
		model:       FinBERT,
		token:       token,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Classifier.
func (c *HuggingFaceClassifier) Name() string { return "huggingface:" + c.model }

type hfRequest struct {
	Inputs  string    `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements Classifier by picking the highest scoring label.
func (c *HuggingFaceClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	var labels []hfLabel
	err := util.Retry(ctx, c.maxAttempts, c.retryDelay, func() error {
		var err error
		labels, err = c.infer(ctx, text)
		if herr, ok := err.(*HTTPError); ok && !herr.Temporary() {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		return Classification{}, err
	}

	var best *hfLabel
	for i := range labels {
		if best == nil || labels[i].Score > best.Score {
			best = &labels[i]
		}
	}
	if best == nil {
		return Classification{}, fmt.Errorf("empty classification for %s", c.model)
	}
	label, err := ParseLabel(best.Label)
	if err != nil {
		return Classification{}, err
	}
	return Classification{Label: label, Confidence: best.Score}, nil
}

func (c *HuggingFaceClassifier) infer(ctx context.Context, text string) ([]hfLabel, error) {
	payload, err := json.Marshal(hfRequest{Inputs: text, Options: hfOptions{WaitForModel: true}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	// The API returns [[{label, score}...]] for a single input, though some
	// deployments flatten it to [{label, score}...].
	var nested [][]hfLabel
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []hfLabel
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, util.Permanent(fmt.Errorf("decoding inference response: %w", err))
	}
	return flat, nil
}
