package ranking

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"rotation/internal/config"
	"rotation/internal/domain"
	"rotation/internal/util"
)

func defaultWeights() config.Weights {
	return config.Weights{
		Momentum6M:  0.40,
		Momentum12M: 0.30,
		Trend:       0.20,
		LowVol:      0.10,
	}
}

// seriesWithDailyGain builds a long series whose closes compound at
// the given daily rate, so momentum and trend rank by rate.
func seriesWithDailyGain(symbol string, days int, dailyGain float64) domain.PriceSeries {
	start := util.NewDate(2022, 1, 1)
	bars := make([]domain.Bar, 0, days)
	close := 100.0
	for i := 0; i < days; i++ {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  close,
		})
		close *= 1 + dailyGain
	}
	return domain.NewPriceSeries(symbol, bars)
}

func TestNormalize(t *testing.T) {
	t.Run("scales into unit interval", func(t *testing.T) {
		out := Normalize([]float64{10, 20, 15})
		require.Equal(t, "", cmp.Diff([]float64{0, 1, 0.5}, out))
	})

	t.Run("equal values map to a half", func(t *testing.T) {
		out := Normalize([]float64{3, 3, 3})
		require.Equal(t, "", cmp.Diff([]float64{0.5, 0.5, 0.5}, out))
	})

	t.Run("empty input", func(t *testing.T) {
		require.Nil(t, Normalize(nil))
	})
}

func TestService_Rank(t *testing.T) {
	ctx := context.Background()
	asOf := util.NewDate(2022, 12, 31)

	t.Run("orders by composite desc", func(t *testing.T) {
		store := domain.PriceStore{
			Benchmark: "SPY",
			Series: map[string]domain.PriceSeries{
				"FAST": seriesWithDailyGain("FAST", 300, 0.004),
				"SLOW": seriesWithDailyGain("SLOW", 300, 0.001),
				"FLAT": seriesWithDailyGain("FLAT", 300, 0),
			},
		}

		scores, err := NewService(defaultWeights()).Rank(ctx, store, []string{"FAST", "SLOW", "FLAT"}, asOf)
		require.NoError(t, err)
		require.Len(t, scores, 3)
		require.Equal(t, "FAST", scores[0].Symbol)
		require.Equal(t, "SLOW", scores[1].Symbol)
		require.Equal(t, "FLAT", scores[2].Symbol)
	})

	t.Run("short history excluded, composite ties break by symbol", func(t *testing.T) {
		store := domain.PriceStore{
			Series: map[string]domain.PriceSeries{
				"BBB": seriesWithDailyGain("BBB", 300, 0.002),
				"AAA": seriesWithDailyGain("AAA", 300, 0.002),
				"NEW": seriesWithDailyGain("NEW", 100, 0.01),
			},
		}

		scores, err := NewService(defaultWeights()).Rank(ctx, store, []string{"BBB", "AAA", "NEW"}, asOf)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		require.Equal(t, "AAA", scores[0].Symbol)
		require.Equal(t, "BBB", scores[1].Symbol)
		require.Equal(t, scores[0].Composite, scores[1].Composite)
	})

	t.Run("unknown symbols are skipped", func(t *testing.T) {
		store := domain.PriceStore{
			Series: map[string]domain.PriceSeries{
				"AAA": seriesWithDailyGain("AAA", 300, 0.002),
			},
		}

		scores, err := NewService(defaultWeights()).Rank(ctx, store, []string{"AAA", "GONE"}, asOf)
		require.NoError(t, err)
		require.Len(t, scores, 1)
	})

	t.Run("cancelled context returns the context error", func(t *testing.T) {
		store := domain.PriceStore{
			Series: map[string]domain.PriceSeries{
				"AAA": seriesWithDailyGain("AAA", 300, 0.002),
				"BBB": seriesWithDailyGain("BBB", 300, 0.001),
			},
		}
		before := runtime.NumGoroutine()

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewService(defaultWeights()).Rank(cancelled, store, []string{"AAA", "BBB"}, asOf)
		require.ErrorIs(t, err, context.Canceled)

		// Workers and the closer must all drain and exit.
		require.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("corrupt series is demoted to ineligible, not fatal", func(t *testing.T) {
		corrupt := seriesWithDailyGain("BAD", 300, 0.001)
		corrupt.Closes = append([]float64{}, corrupt.Closes[:100]...)

		store := domain.PriceStore{
			Series: map[string]domain.PriceSeries{
				"AAA": seriesWithDailyGain("AAA", 300, 0.002),
				"BAD": corrupt,
			},
		}

		scores, err := NewService(defaultWeights()).Rank(ctx, store, []string{"AAA", "BAD"}, asOf)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		require.Equal(t, "AAA", scores[0].Symbol)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		store := domain.PriceStore{
			Series: map[string]domain.PriceSeries{
				"AAA": seriesWithDailyGain("AAA", 300, 0.003),
				"BBB": seriesWithDailyGain("BBB", 300, 0.002),
				"CCC": seriesWithDailyGain("CCC", 300, 0.001),
				"DDD": seriesWithDailyGain("DDD", 300, 0.0005),
			},
		}
		universe := []string{"AAA", "BBB", "CCC", "DDD"}

		service := NewService(defaultWeights())
		first, err := service.Rank(ctx, store, universe, asOf)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := service.Rank(ctx, store, universe, asOf)
			require.NoError(t, err)
			require.Equal(t, "", cmp.Diff(first, again))
		}
	})
}

func TestSelectTopN(t *testing.T) {
	scores := []domain.CandidateScore{
		{Symbol: "AAA", Composite: 0.9},
		{Symbol: "BBB", Composite: 0.8},
		{Symbol: "CCC", Composite: 0.7},
	}

	t.Run("takes the first n with equal weights", func(t *testing.T) {
		holdings := SelectTopN(scores, 2)
		require.Equal(t, "", cmp.Diff([]string{"AAA", "BBB"}, holdings.Symbols))
		require.InDelta(t, 0.5, holdings.Weight("AAA"), 1e-9)
	})

	t.Run("fewer eligible than n selects all", func(t *testing.T) {
		holdings := SelectTopN(scores, 10)
		require.Len(t, holdings.Symbols, 3)
	})

	t.Run("empty scores select nothing", func(t *testing.T) {
		require.True(t, SelectTopN(nil, 5).IsEmpty())
	})
}
