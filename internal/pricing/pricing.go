package pricing

import (
	"context"
	"fmt"
	"time"

	"rotation/internal/domain"
	"rotation/internal/logger"
	"rotation/internal/provider"
	"rotation/internal/repository"
	"rotation/internal/util"
)

// historyYears is how far before the backtest start the store loads
// prices, so indicators have a full year of observations (plus
// cushion) at the first rebalance date.
const historyYears = 2

// Service assembles the in-memory PriceStore for one run from the
// local cache, fetching only spans the cache does not already hold.
type Service struct {
	Repo    repository.PriceRepository
	Fetcher *provider.Fetcher
}

func NewService(repo repository.PriceRepository, fetcher *provider.Fetcher) Service {
	return Service{Repo: repo, Fetcher: fetcher}
}

// AssembleStore loads a series for every universe symbol plus the
// benchmark, covering historyYears before start through end. Symbols
// with no data anywhere are dropped with a warning; a missing
// benchmark is fatal. The benchmark's dates become the run's
// trading-day index.
func (s Service) AssembleStore(
	ctx context.Context,
	symbols []string,
	benchmark string,
	start, end time.Time,
	refresh bool,
) (domain.PriceStore, error) {
	log := logger.FromContext(ctx)
	historyStart := start.AddDate(-historyYears, 0, 0)

	store := domain.PriceStore{
		Benchmark: benchmark,
		Series:    map[string]domain.PriceSeries{},
	}

	all := append([]string{benchmark}, symbols...)
	hits, misses := 0, 0
	for _, symbol := range all {
		if _, ok := store.Series[symbol]; ok {
			continue
		}

		series, fromCache, err := s.loadSeries(ctx, symbol, historyStart, end, refresh)
		if err != nil {
			if symbol == benchmark {
				return domain.PriceStore{}, fmt.Errorf("failed to load benchmark %s: %w", benchmark, err)
			}
			log.Warnw("failed to load symbol, excluding from run", "symbol", symbol, "error", err)
			continue
		}
		if series.Len() == 0 {
			if symbol == benchmark {
				return domain.PriceStore{}, fmt.Errorf("no price history for benchmark %s", benchmark)
			}
			log.Warnw("no price history, excluding from run", "symbol", symbol)
			continue
		}

		if fromCache {
			hits++
		} else {
			misses++
		}
		store.Series[symbol] = series
	}

	benchmarkSeries, ok := store.BenchmarkSeries()
	if !ok {
		return domain.PriceStore{}, fmt.Errorf("no price history for benchmark %s", benchmark)
	}
	store.TradingDays = benchmarkSeries.Dates

	log.Infow("price store assembled",
		"symbols", len(store.Series),
		"cacheHits", hits,
		"cacheMisses", misses,
		"tradingDays", len(store.TradingDays),
	)
	return store, nil
}

// WarmCache batch-fetches every symbol that is stale or missing and
// writes the bars to the cache. It returns the number of symbols
// fetched. Used by the fetch command so a later backtest or screen
// can run entirely off the cache.
func (s Service) WarmCache(
	ctx context.Context,
	symbols []string,
	benchmark string,
	start, end time.Time,
	refresh bool,
) (int, error) {
	log := logger.FromContext(ctx)
	historyStart := start.AddDate(-historyYears, 0, 0)

	all := append([]string{benchmark}, symbols...)
	var stale []string
	for _, symbol := range all {
		if refresh {
			stale = append(stale, symbol)
			continue
		}
		fresh, err := s.Repo.IsFresh(ctx, symbol, end)
		if err != nil {
			return 0, err
		}
		if !fresh {
			stale = append(stale, symbol)
		}
	}
	if len(stale) == 0 {
		log.Infow("cache already warm", "symbols", len(all))
		return 0, nil
	}

	barsBySymbol, err := s.Fetcher.DailyMultiBars(ctx, stale, historyStart, end)
	if err != nil {
		return 0, err
	}
	for _, bars := range barsBySymbol {
		if err := s.Repo.UpsertBars(ctx, bars); err != nil {
			return 0, err
		}
	}

	log.Infow("cache warmed", "requested", len(stale), "fetched", len(barsBySymbol))
	return len(barsBySymbol), nil
}

// loadSeries serves one symbol from the cache when it is fresh, and
// otherwise fetches only the span the cache is missing before
// reloading. The bool reports whether the network was avoided.
func (s Service) loadSeries(ctx context.Context, symbol string, start, end time.Time, refresh bool) (domain.PriceSeries, bool, error) {
	if !refresh {
		fresh, err := s.Repo.IsFresh(ctx, symbol, end)
		if err != nil {
			return domain.PriceSeries{}, false, err
		}
		if fresh {
			covered, err := s.coversStart(ctx, symbol, start)
			if err != nil {
				return domain.PriceSeries{}, false, err
			}
			if covered {
				series, err := s.Repo.GetSeries(ctx, symbol, start, end)
				return series, true, err
			}
		}
	}

	fetchStart, err := s.missingSpanStart(ctx, symbol, start, refresh)
	if err != nil {
		return domain.PriceSeries{}, false, err
	}

	bars, err := s.Fetcher.DailyBars(ctx, symbol, fetchStart, end)
	if err != nil {
		return domain.PriceSeries{}, false, err
	}
	if err := s.Repo.UpsertBars(ctx, bars); err != nil {
		return domain.PriceSeries{}, false, err
	}

	series, err := s.Repo.GetSeries(ctx, symbol, start, end)
	return series, false, err
}

func (s Service) coversStart(ctx context.Context, symbol string, start time.Time) (bool, error) {
	meta, err := s.Repo.Meta(ctx, symbol)
	if err != nil {
		return false, err
	}
	if meta == nil || meta.FirstDate == "" {
		return false, nil
	}
	firstDate, err := util.ParseDate(meta.FirstDate)
	if err != nil {
		return false, err
	}
	// A cached range starting later than requested may simply mean
	// the symbol listed after start; a week of slack separates that
	// from a partially-filled cache.
	return !firstDate.After(start.AddDate(0, 0, 7)), nil
}

// missingSpanStart picks where the incremental fetch begins: the day
// after the cached range ends, or the full history when the cache is
// empty, forced, or does not reach back to start.
func (s Service) missingSpanStart(ctx context.Context, symbol string, start time.Time, refresh bool) (time.Time, error) {
	if refresh {
		return start, nil
	}
	meta, err := s.Repo.Meta(ctx, symbol)
	if err != nil {
		return time.Time{}, err
	}
	if meta == nil || meta.LastDate == "" {
		return start, nil
	}
	covered, err := s.coversStart(ctx, symbol, start)
	if err != nil || !covered {
		return start, err
	}
	lastDate, err := util.ParseDate(meta.LastDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last_date for %s: %w", symbol, err)
	}
	return lastDate.AddDate(0, 0, 1), nil
}
