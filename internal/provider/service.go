package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rotation/internal/domain"
	"rotation/internal/logger"
)

const (
	breakerConsecutiveFailures = 5
	breakerTimeout             = 30 * time.Second
)

// MultiSource is implemented by sources that can batch several
// symbols into one request.
type MultiSource interface {
	DailyMultiBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error)
}

// Fetcher wraps the remote sources with a rate limiter and one
// circuit breaker per source. Sources are tried in order; a tripped
// breaker fails fast to the next source.
type Fetcher struct {
	sources  []Source
	breakers map[string]*gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

func NewFetcher(requestsPerMinute int, sources ...Source) *Fetcher {
	if requestsPerMinute < 1 {
		requestsPerMinute = 60
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(sources))
	for _, source := range sources {
		breakers[source.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    source.Name(),
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerConsecutiveFailures
			},
		})
	}

	return &Fetcher{
		sources:  sources,
		breakers: breakers,
		limiter:  rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute),
	}
}

// DailyBars fetches one symbol's bars from the first source that
// answers. Every source failing is the caller's recoverable error to
// handle; only the benchmark symbol is fatal at a higher layer.
func (f *Fetcher) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for _, source := range f.sources {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := f.breakers[source.Name()].Execute(func() (interface{}, error) {
			return source.DailyBars(ctx, symbol, start, end)
		})
		if err != nil {
			log.Warnw("source fetch failed",
				"source", source.Name(),
				"symbol", symbol,
				"error", err,
			)
			lastErr = fmt.Errorf("%s: %w", source.Name(), err)
			continue
		}
		return result.([]domain.Bar), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no sources configured")
	}
	return nil, fmt.Errorf("all sources failed for %s: %w", symbol, lastErr)
}

// DailyMultiBars batches symbols through the primary source when it
// supports batching, and falls back to per-symbol fetches otherwise.
// Per-symbol failures leave that symbol out of the result.
func (f *Fetcher) DailyMultiBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error) {
	log := logger.FromContext(ctx)

	if len(f.sources) > 0 {
		if multi, ok := f.sources[0].(MultiSource); ok {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			result, err := f.breakers[f.sources[0].Name()].Execute(func() (interface{}, error) {
				return multi.DailyMultiBars(ctx, symbols, start, end)
			})
			if err == nil {
				return result.(map[string][]domain.Bar), nil
			}
			log.Warnw("batch fetch failed, falling back to per-symbol",
				"source", f.sources[0].Name(),
				"error", err,
			)
		}
	}

	out := make(map[string][]domain.Bar, len(symbols))
	for _, symbol := range symbols {
		bars, err := f.DailyBars(ctx, symbol, start, end)
		if err != nil {
			log.Warnw("skipping symbol, all sources failed", "symbol", symbol, "error", err)
			continue
		}
		out[symbol] = bars
	}
	return out, nil
}
