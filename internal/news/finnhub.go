package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tigro/internal/util"
)

const (
	// FinnhubBaseURL is the public Finnhub REST endpoint.
	FinnhubBaseURL = "https://finnhub.io/api/v1"

	// finnhubSlice is the widest date range requested at once; Finnhub
	// silently truncates longer company-news ranges.
	finnhubSlice = 7 * 24 * time.Hour
)

// FinnhubSource fetches company news from Finnhub.
type FinnhubSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// FinnhubOption configures a FinnhubSource.
type FinnhubOption func(*FinnhubSource)

// WithFinnhubBaseURL sets a custom base URL.
func WithFinnhubBaseURL(baseURL string) FinnhubOption {
	return func(s *FinnhubSource) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithFinnhubHTTPClient sets a custom HTTP client.
func WithFinnhubHTTPClient(c *http.Client) FinnhubOption {
	return func(s *FinnhubSource) {
		s.httpClient = c
	}
}

// WithFinnhubRateLimit sets the allowed requests per minute.
func WithFinnhubRateLimit(perMinute int) FinnhubOption {
	return func(s *FinnhubSource) {
		s.limiter = util.NewRateLimiter(perMinute)
	}
}

// NewFinnhubSource creates a Finnhub source. The free tier allows 60
// requests per minute, which is the default limit.
func NewFinnhubSource(apiKey string, opts ...FinnhubOption) *FinnhubSource {
	s := &FinnhubSource{
		baseURL:    FinnhubBaseURL,
		apiKey:     apiKey,
		httpClient: defaultHTTPClient,
		limiter:    util.NewRateLimiter(60),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *FinnhubSource) Name() string { return "finnhub" }

type finnhubArticle struct {
	ID       int64  `json:"id"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Related  string `json:"related"`
}

// Fetch requests [start, end] in week-long slices.
func (s *FinnhubSource) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error) {
	var all []RawArticle
	for from := start; from.Before(end); from = from.Add(finnhubSlice) {
		to := from.Add(finnhubSlice)
		if to.After(end) {
			to = end
		}
		page, err := s.fetchRange(ctx, ticker, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}

func (s *FinnhubSource) fetchRange(ctx context.Context, ticker string, from, to time.Time) ([]RawArticle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("from", from.UTC().Format(time.DateOnly))
	params.Set("to", to.UTC().Format(time.DateOnly))
	params.Set("token", s.apiKey)
	endpoint := s.baseURL + "/company-news"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating finnhub request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(s.Name(), endpoint, resp); err != nil {
		return nil, err
	}

	var items []finnhubArticle
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &DecodeError{Source: s.Name(), Err: err}
	}

	articles := make([]RawArticle, 0, len(items))
	for _, it := range items {
		a := RawArticle{
			Source:    s.Name(),
			Headline:  it.Headline,
			Body:      StripHTML(it.Summary),
			URL:       it.URL,
			Published: time.Unix(it.Datetime, 0).UTC(),
		}
		if it.ID != 0 {
			a.ID = strconv.FormatInt(it.ID, 10)
		}
		articles = append(articles, a)
	}
	return articles, nil
}
