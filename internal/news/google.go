package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tigro/internal/util"
)

// GoogleNewsBaseURL is the Google News RSS search endpoint.
const GoogleNewsBaseURL = "https://news.google.com/rss/search"

// GoogleRSSSource searches Google News RSS for "<ticker> stock".
type GoogleRSSSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleRSSSource creates the source. An empty baseURL uses the public
// endpoint; perMinute bounds request rate.
func NewGoogleRSSSource(baseURL string, perMinute int, httpClient *http.Client) *GoogleRSSSource {
	if baseURL == "" {
		baseURL = GoogleNewsBaseURL
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	return &GoogleRSSSource{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    util.NewRateLimiter(perMinute),
	}
}

// Name implements Source.
func (s *GoogleRSSSource) Name() string { return "google" }

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
}

// Fetch implements Source. The feed has no date filter, so items outside
// [start, end] are dropped here.
func (s *GoogleRSSSource) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.QueryEscape(ticker + " stock")
	u := s.baseURL + "?q=" + q + "&hl=en-US&gl=US&ceid=US:en"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google news request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(s.Name(), s.baseURL, resp); err != nil {
		return nil, err
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, &DecodeError{Source: s.Name(), Err: err}
	}

	var articles []RawArticle
	for _, item := range rss.Channel.Items {
		t, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			t, err = time.Parse(time.RFC1123, item.PubDate)
			if err != nil {
				continue
			}
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		// Titles end with " - Publisher".
		headline := item.Title
		if idx := strings.LastIndex(headline, " - "); idx > 0 {
			headline = headline[:idx]
		}
		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = strings.TrimSpace(item.Link)
		}
		articles = append(articles, RawArticle{
			ID:        id,
			Source:    s.Name(),
			Headline:  headline,
			Body:      StripHTML(item.Desc),
			URL:       strings.TrimSpace(item.Link),
			Published: t.UTC(),
		})
	}
	return articles, nil
}
