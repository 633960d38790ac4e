package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rotation/internal/domain"
)

func TestTotalReturn(t *testing.T) {
	t.Run("compounds in order", func(t *testing.T) {
		total := TotalReturn([]float64{0.10, -0.05, 0.02})
		require.InDelta(t, 1.10*0.95*1.02-1, total, 1e-12)
	})

	t.Run("order matters through the value path", func(t *testing.T) {
		// Total return commutes, but the drawdown of the value path
		// does not: consecutive losses compound into a deeper trough
		// than the same losses separated by a gain. Equal drawdowns
		// here would mean the aggregator is not walking chronologically.
		ordered := Compute([]float64{-0.20, 0.50, -0.20})
		reordered := Compute([]float64{-0.20, -0.20, 0.50})
		require.InDelta(t, ordered.TotalReturn, reordered.TotalReturn, 1e-12)
		require.InDelta(t, -0.20, ordered.MaxDrawdown, 1e-12)
		require.InDelta(t, -0.36, reordered.MaxDrawdown, 1e-12)
	})

	t.Run("empty series", func(t *testing.T) {
		require.Equal(t, 0.0, TotalReturn(nil))
	})
}

func TestCompute(t *testing.T) {
	t.Run("flat series has zero everything", func(t *testing.T) {
		stats := Compute(make([]float64, 24))
		require.Equal(t, 0.0, stats.TotalReturn)
		require.Equal(t, 0.0, stats.CAGR)
		require.Equal(t, 0.0, stats.AnnualizedVol)
		require.Equal(t, 0.0, stats.Sharpe)
		require.Equal(t, 0.0, stats.MaxDrawdown)
		require.Equal(t, 0.0, stats.WinRate)
	})

	t.Run("zero volatility yields zero sharpe, not NaN", func(t *testing.T) {
		stats := Compute([]float64{0.01, 0.01, 0.01})
		require.False(t, math.IsNaN(stats.Sharpe))
		require.Equal(t, 0.0, stats.Sharpe)
		require.Equal(t, 0.0, stats.AnnualizedVol)
	})

	t.Run("cagr annualizes a 12 period series", func(t *testing.T) {
		returns := make([]float64, 12)
		for i := range returns {
			returns[i] = 0.01
		}
		stats := Compute(returns)
		require.InDelta(t, math.Pow(1.01, 12)-1, stats.CAGR, 1e-12)
	})

	t.Run("strictly increasing path has zero drawdown", func(t *testing.T) {
		stats := Compute([]float64{0.02, 0.01, 0.03, 0.005})
		require.Equal(t, 0.0, stats.MaxDrawdown)
	})

	t.Run("single loss drawdown", func(t *testing.T) {
		stats := Compute([]float64{0.10, -0.20, 0.05})
		require.InDelta(t, -0.20, stats.MaxDrawdown, 1e-12)
	})

	t.Run("win rate and extremes", func(t *testing.T) {
		stats := Compute([]float64{0.05, -0.02, 0.03, 0})
		require.InDelta(t, 0.5, stats.WinRate, 1e-12)
		require.Equal(t, 0.05, stats.BestPeriod)
		require.Equal(t, -0.02, stats.WorstPeriod)
	})

	t.Run("annualized vol uses sample stdev", func(t *testing.T) {
		returns := []float64{0.01, 0.03}
		stats := Compute(returns)
		// sample stdev of {0.01, 0.03} is sqrt(2)*0.01
		require.InDelta(t, math.Sqrt2*0.01*math.Sqrt(12), stats.AnnualizedVol, 1e-12)
	})
}

func TestPctInCash(t *testing.T) {
	records := []domain.PeriodRecord{
		{InCash: true},
		{InCash: false},
		{InCash: true},
		{InCash: true},
	}
	require.InDelta(t, 0.75, PctInCash(records), 1e-12)
	require.Equal(t, 0.0, PctInCash(nil))
}
