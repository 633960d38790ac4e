package provider

import (
	"context"
	"time"

	"rotation/internal/domain"
)

//go:generate mockgen -source=source.go -destination=mocks/source_mock.go -package=mocks

// Source supplies daily adjusted-close bars for one symbol over a
// date range, ascending by date.
type Source interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
	Name() string
}
