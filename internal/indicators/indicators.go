package indicators

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"rotation/internal/domain"
)

const (
	TradingDaysPerYear = 252
	Momentum6MDays     = 126
	Momentum12MDays    = 252
	ShortMAWindow      = 50
	LongMAWindow       = 200

	// MinHistoryDays is the observation count a symbol needs before it
	// can be scored on a rebalance date.
	MinHistoryDays = 252

	minVolObservations = 20
)

// Momentum is the total return over the trailing lookback window:
// last / closes[len-lookback] - 1. NaN when the series is too short.
func Momentum(closes []float64, lookback int) float64 {
	if lookback < 1 || len(closes) < lookback {
		return math.NaN()
	}
	current := closes[len(closes)-1]
	past := closes[len(closes)-lookback]
	if past == 0 || math.IsNaN(past) {
		return math.NaN()
	}
	return (current - past) / past
}

// SMA is the simple moving average of the trailing window.
func SMA(closes []float64, window int) float64 {
	if window < 1 || len(closes) < window {
		return math.NaN()
	}
	mean, err := stats.Mean(closes[len(closes)-window:])
	if err != nil {
		return math.NaN()
	}
	return mean
}

// AnnualizedVolatility is the sample standard deviation of daily
// returns scaled by sqrt(252). NaN with fewer than 20 returns.
func AnnualizedVolatility(closes []float64) float64 {
	returns := dailyReturns(closes)
	if len(returns) < minVolObservations {
		return math.NaN()
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return math.NaN()
	}
	return stdev * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown is the deepest peak-to-trough decline of the series,
// reported as a positive magnitude (0.20 means a 20% drawdown).
func MaxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return math.NaN()
	}
	runningMax := closes[0]
	worst := 0.0
	for _, close := range closes {
		if close > runningMax {
			runningMax = close
		}
		if runningMax > 0 {
			drawdown := (close - runningMax) / runningMax
			if drawdown < worst {
				worst = drawdown
			}
		}
	}
	return math.Abs(worst)
}

// RelativeStrength is the symbol's trailing return minus the
// benchmark's over the same window, computed on their common dates.
func RelativeStrength(series, benchmark domain.PriceSeries, lookback int) float64 {
	benchmarkByDate := make(map[string]float64, benchmark.Len())
	for i, date := range benchmark.Dates {
		benchmarkByDate[date.Format(time.DateOnly)] = benchmark.Closes[i]
	}

	var symbolCloses, benchmarkCloses []float64
	for i, date := range series.Dates {
		if close, ok := benchmarkByDate[date.Format(time.DateOnly)]; ok {
			symbolCloses = append(symbolCloses, series.Closes[i])
			benchmarkCloses = append(benchmarkCloses, close)
		}
	}
	if len(symbolCloses) < lookback {
		return math.NaN()
	}

	symbolReturn := Momentum(symbolCloses, lookback)
	benchmarkReturn := Momentum(benchmarkCloses, lookback)
	if math.IsNaN(symbolReturn) || math.IsNaN(benchmarkReturn) {
		return math.NaN()
	}
	return symbolReturn - benchmarkReturn
}

// Snapshot computes all factor values for one symbol as of one date.
// The series is truncated first, so nothing after asOf can leak in.
// Symbols with fewer than MinHistoryDays observations get a NaN
// snapshot and are skipped by the ranker.
func Snapshot(series domain.PriceSeries, asOf time.Time) domain.FactorSnapshot {
	truncated := series.Truncate(asOf)
	snapshot := domain.FactorSnapshot{
		Symbol:      series.Symbol,
		Date:        asOf,
		Price:       math.NaN(),
		Momentum6M:  math.NaN(),
		Momentum12M: math.NaN(),
		MA50:        math.NaN(),
		MA200:       math.NaN(),
		Volatility:  math.NaN(),
		MaxDrawdown: math.NaN(),
	}
	if truncated.Len() < MinHistoryDays {
		return snapshot
	}

	closes := truncated.Closes
	snapshot.Price = closes[len(closes)-1]
	snapshot.Momentum6M = Momentum(closes, Momentum6MDays)
	snapshot.Momentum12M = Momentum(closes, Momentum12MDays)
	snapshot.MA50 = SMA(closes, ShortMAWindow)
	snapshot.MA200 = SMA(closes, LongMAWindow)
	snapshot.AboveLongMA = snapshot.Price > snapshot.MA200
	snapshot.Volatility = AnnualizedVolatility(closes)
	snapshot.MaxDrawdown = MaxDrawdown(closes)

	return snapshot
}

func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}
