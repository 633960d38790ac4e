package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"rotation/internal/config"
	"rotation/internal/domain"
)

type alpacaSource struct {
	client *marketdata.Client
}

// NewAlpacaSource builds a daily bar source backed by the Alpaca
// market data API. Bars are requested with full adjustment so closes
// line up with the adjusted closes the rest of the system expects.
func NewAlpacaSource(cfg config.Alpaca) Source {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	return alpacaSource{client: marketdata.NewClient(opts)}
}

func (alpacaSource) Name() string {
	return "alpaca"
}

func (s alpacaSource) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alpaca bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, bar := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   bar.Timestamp.UTC().Truncate(24 * time.Hour),
			Close:  bar.Close,
		})
	}
	return bars, nil
}

// DailyMultiBars fetches several symbols in one request; the fetch
// service uses it to warm the cache for a whole universe.
func (s alpacaSource) DailyMultiBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := s.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alpaca multi bars: %w", err)
	}

	out := make(map[string][]domain.Bar, len(multiBars))
	for symbol, alpacaBars := range multiBars {
		bars := make([]domain.Bar, 0, len(alpacaBars))
		for _, bar := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol: symbol,
				Date:   bar.Timestamp.UTC().Truncate(24 * time.Hour),
				Close:  bar.Close,
			})
		}
		out[symbol] = bars
	}
	return out, nil
}
