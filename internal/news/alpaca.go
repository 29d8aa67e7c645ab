package news

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpacaNewsClient is the subset of *marketdata.Client used here.
type alpacaNewsClient interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// AlpacaSource fetches news from the Alpaca market data API.
type AlpacaSource struct {
	client alpacaNewsClient
	limit  int
}

// NewAlpacaSource creates a source backed by the Alpaca news endpoint.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, limit int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if limit <= 0 {
		limit = 50
	}
	return &AlpacaSource{client: marketdata.NewClient(opts), limit: limit}
}

// Name implements Source.
func (s *AlpacaSource) Name() string { return "alpaca" }

// Fetch returns up to the configured limit of articles. The body is the
// paragraphs of the content that mention the ticker, else the summary.
func (s *AlpacaSource) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alpacaNews, err := s.client.GetNews(marketdata.GetNewsRequest{
		Symbols:            []string{ticker},
		Start:              start,
		End:                end,
		TotalLimit:         s.limit,
		IncludeContent:     true,
		Sort:               marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetNews: %w", err)
	}

	articles := make([]RawArticle, 0, len(alpacaNews))
	for _, a := range alpacaNews {
		body := ""
		if a.Content != "" {
			body = ExtractSymbolContent(a.Content, ticker)
		} else if a.Summary != "" {
			body = StripHTML(a.Summary)
		}
		articles = append(articles, RawArticle{
			ID:        fmt.Sprint(a.ID),
			Source:    s.Name(),
			Headline:  a.Headline,
			Body:      body,
			URL:       a.URL,
			Published: a.CreatedAt,
		})
	}
	return articles, nil
}
