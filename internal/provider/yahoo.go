package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"rotation/internal/domain"
)

type yahooSource struct{}

// NewYahooSource builds the default, keyless daily bar source backed
// by the Yahoo Finance chart API.
func NewYahooSource() Source {
	return yahooSource{}
}

func (yahooSource) Name() string {
	return "yahoo"
}

func (yahooSource) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []domain.Bar{}
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()
		if bar.AdjClose.IsZero() {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC().Truncate(24 * time.Hour),
			Close:  bar.AdjClose.InexactFloat64(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return bars, nil
}
