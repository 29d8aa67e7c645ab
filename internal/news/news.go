// Package news collects recent articles about a ticker from several news
// sources, retrying transient failures and de-duplicating the results.
package news

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RawArticle is a single unscored article from any source.
type RawArticle struct {
	Ticker    string
	ID        string
	Source    string
	Headline  string
	Body      string
	URL       string
	Published time.Time
}

// Key identifies an article within its source.
func (a RawArticle) Key() string {
	return a.Source + "\x00" + a.ID
}

// Source fetches articles about one ticker published in [start, end].
type Source interface {
	Name() string
	Fetch(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error)
}

// --- HTTP client ---

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

const userAgent = "Mozilla/5.0 (compatible; tigro/1.0)"

// APIError is a non-2xx response from a news API.
type APIError struct {
	Source     string
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d, endpoint %s: %s", e.Source, e.StatusCode, e.Endpoint, e.Message)
}

// Temporary reports whether retrying may succeed (rate limited or server
// side failure).
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth retrying. Context errors and
// non-temporary API errors are not; network failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var decErr *DecodeError
	return !errors.As(err, &decErr)
}

// DecodeError wraps a response body that could not be parsed.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string { return e.Source + ": decoding response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// checkResponse turns a non-2xx response into an *APIError.
func checkResponse(source, endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		Source:     source,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// fallbackID derives a stable ID for articles whose source has none.
func fallbackID(url, headline string, published time.Time) string {
	if url != "" {
		return url
	}
	sum := sha1.Sum([]byte(headline + "|" + published.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}
