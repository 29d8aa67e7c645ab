package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Close is one daily closing price.
type Close struct {
	Date  time.Time
	Price float64
}

// PriceSource supplies daily closes per symbol, oldest first.
type PriceSource interface {
	DailyCloses(ctx context.Context, symbols []string, start, end time.Time) (map[string][]Close, error)
}

// alpacaBarsClient is the subset of *marketdata.Client used here.
type alpacaBarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Compile-time interface check.
var _ PriceSource = (*AlpacaPrices)(nil)

// AlpacaPrices fetches daily bars from the Alpaca market-data API.
type AlpacaPrices struct {
	client    alpacaBarsClient
	batchSize int
	feed      string
	log       *slog.Logger
}

// NewAlpacaPrices creates a price source with the given credentials.
func NewAlpacaPrices(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaPrices {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaPrices{
		client:    marketdata.NewClient(opts),
		batchSize: 100,
		feed:      "sip",
		log:       log,
	}
}

// DailyCloses fetches bars in batches of symbols.
func (p *AlpacaPrices) DailyCloses(ctx context.Context, symbols []string, start, end time.Time) (map[string][]Close, error) {
	out := make(map[string][]Close, len(symbols))
	for i := 0; i < len(symbols); i += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := symbols[i:min(i+p.batchSize, len(symbols))]

		multiBars, err := p.client.GetMultiBars(batch, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      p.feed,
		})
		if err != nil {
			return nil, fmt.Errorf("GetMultiBars: %w", err)
		}
		for symbol, bars := range multiBars {
			sym := strings.ToUpper(symbol)
			for _, b := range bars {
				out[sym] = append(out[sym], Close{Date: b.Timestamp.UTC(), Price: b.Close})
			}
		}
		p.log.Debug("fetched daily bars", "symbols", len(batch), "returned", len(multiBars))
	}

	for sym := range out {
		closes := out[sym]
		sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })
	}
	return out, nil
}
