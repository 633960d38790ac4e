package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rotation/internal/domain"
	"rotation/internal/util"
)

func seriesFromCloses(symbol string, start time.Time, closes []float64) domain.PriceSeries {
	bars := make([]domain.Bar, 0, len(closes))
	for i, close := range closes {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  close,
		})
	}
	return domain.NewPriceSeries(symbol, bars)
}

func TestTurnover(t *testing.T) {
	ab := domain.NewHoldingSet([]string{"A", "B"})
	bc := domain.NewHoldingSet([]string{"B", "C"})
	cd := domain.NewHoldingSet([]string{"C", "D"})
	cash := domain.HoldingSet{}

	tests := []struct {
		name string
		prev domain.HoldingSet
		next domain.HoldingSet
		want float64
	}{
		{"initial buy-in from cash", cash, ab, 1},
		{"full wind-down to cash", ab, cash, 1},
		{"cash to cash trades nothing", cash, cash, 0},
		{"unchanged set", ab, ab, 0},
		{"half replaced", ab, bc, 0.5},
		{"fully replaced", ab, cd, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, Turnover(tc.prev, tc.next), 1e-12)
		})
	}
}

func TestSimulatePeriod(t *testing.T) {
	ctx := context.Background()
	start := util.NewDate(2023, 1, 31)
	end := util.NewDate(2023, 2, 28)

	store := domain.PriceStore{
		Benchmark: "SPY",
		Series: map[string]domain.PriceSeries{
			"SPY": seriesFromCloses("SPY", start, repeat(400, 29)),
			"UP":  seriesFromCloses("UP", start, ramp(100, 110, 29)),
			"DN":  seriesFromCloses("DN", start, ramp(100, 90, 29)),
		},
	}

	t.Run("equal weighted forward return", func(t *testing.T) {
		holdings := domain.NewHoldingSet([]string{"UP", "DN"})
		next, record := SimulatePeriod(ctx, store, NewState(), holdings, false, start, end, 0)

		require.InDelta(t, (0.10-0.10)/2, record.PortfolioReturn, 1e-9)
		require.InDelta(t, 0.0, record.BenchmarkReturn, 1e-12)
		require.Equal(t, 2, record.NSelected)
		require.False(t, record.InCash)
		require.InDelta(t, 100, next.PortfolioValue.InexactFloat64(), 1e-6)
	})

	t.Run("cash period earns exactly zero before costs", func(t *testing.T) {
		_, record := SimulatePeriod(ctx, store, NewState(), domain.HoldingSet{}, true, start, end, 0)
		require.Equal(t, 0.0, record.PortfolioReturn)
		require.True(t, record.InCash)
		require.Empty(t, record.Holdings.Symbols)
	})

	t.Run("transaction cost on initial buy-in", func(t *testing.T) {
		holdings := domain.NewHoldingSet([]string{"UP"})
		_, record := SimulatePeriod(ctx, store, NewState(), holdings, false, start, end, 100)

		require.InDelta(t, 1.0, record.Turnover, 1e-12)
		require.InDelta(t, 0.01, record.TxCost, 1e-12)
		require.InDelta(t, 0.10-0.01, record.PortfolioReturn, 1e-9)
	})

	t.Run("no cost when holdings unchanged", func(t *testing.T) {
		holdings := domain.NewHoldingSet([]string{"UP"})
		prior := NewState()
		prior.Holdings = holdings

		_, record := SimulatePeriod(ctx, store, prior, holdings, false, start, end, 100)
		require.Equal(t, 0.0, record.Turnover)
		require.Equal(t, 0.0, record.TxCost)
	})

	t.Run("unwinding to cash still costs", func(t *testing.T) {
		prior := NewState()
		prior.Holdings = domain.NewHoldingSet([]string{"UP"})

		_, record := SimulatePeriod(ctx, store, prior, domain.HoldingSet{}, true, start, end, 100)
		require.True(t, record.InCash)
		require.InDelta(t, 1.0, record.Turnover, 1e-12)
		require.InDelta(t, -0.01, record.PortfolioReturn, 1e-12)
	})

	t.Run("missing price contributes zero return", func(t *testing.T) {
		holdings := domain.NewHoldingSet([]string{"UP", "GONE"})
		_, record := SimulatePeriod(ctx, store, NewState(), holdings, false, start, end, 0)

		// UP returns 10% at half weight, GONE counts as flat.
		require.InDelta(t, 0.05, record.PortfolioReturn, 1e-9)
		require.Equal(t, 2, record.NSelected)
	})

	t.Run("value compounds across periods", func(t *testing.T) {
		holdings := domain.NewHoldingSet([]string{"UP"})
		state := NewState()
		state, _ = SimulatePeriod(ctx, store, state, holdings, false, start, end, 0)
		require.InDelta(t, 110, state.PortfolioValue.InexactFloat64(), 1e-6)
	})
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// ramp interpolates linearly from first to last over n observations.
func ramp(first, last float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = first + (last-first)*float64(i)/float64(n-1)
	}
	return out
}
