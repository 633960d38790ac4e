package metrics

import (
	"math"

	"github.com/montanaflynn/stats"

	"rotation/internal/domain"
)

const periodsPerYear = 12

// Stats are the summary statistics of one return series. Every value
// is recomputed from the full period history; nothing is accumulated
// during simulation, so the records stay the single source of truth.
type Stats struct {
	TotalReturn   float64
	CAGR          float64
	AnnualizedVol float64
	Sharpe        float64
	MaxDrawdown   float64
	WinRate       float64
	BestPeriod    float64
	WorstPeriod   float64
}

// Compute derives summary statistics from a chronologically ordered
// series of monthly returns.
func Compute(returns []float64) Stats {
	if len(returns) == 0 {
		return Stats{}
	}

	out := Stats{
		TotalReturn: TotalReturn(returns),
		MaxDrawdown: maxDrawdown(returns),
		BestPeriod:  returns[0],
		WorstPeriod: returns[0],
	}
	out.CAGR = math.Pow(1+out.TotalReturn, periodsPerYear/float64(len(returns))) - 1

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
		if r > out.BestPeriod {
			out.BestPeriod = r
		}
		if r < out.WorstPeriod {
			out.WorstPeriod = r
		}
	}
	out.WinRate = float64(wins) / float64(len(returns))

	if len(returns) >= 2 {
		stdev, err := stats.StandardDeviationSample(returns)
		if err == nil {
			out.AnnualizedVol = stdev * math.Sqrt(periodsPerYear)
		}
	}
	if out.AnnualizedVol != 0 {
		out.Sharpe = out.CAGR / out.AnnualizedVol
	}

	return out
}

// TotalReturn compounds the return series in chronological order.
func TotalReturn(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	return total - 1
}

// maxDrawdown walks the cumulative value path implied by the returns
// and reports the deepest decline from a running peak, as a value
// less than or equal to zero.
func maxDrawdown(returns []float64) float64 {
	value := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if drawdown := value/peak - 1; drawdown < worst {
			worst = drawdown
		}
	}
	return worst
}

// PctInCash is the fraction of periods the regime filter kept the
// portfolio out of the market.
func PctInCash(records []domain.PeriodRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, record := range records {
		if record.InCash {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

// PortfolioReturns extracts the portfolio return series from records,
// preserving chronological order.
func PortfolioReturns(records []domain.PeriodRecord) []float64 {
	out := make([]float64, len(records))
	for i, record := range records {
		out[i] = record.PortfolioReturn
	}
	return out
}

// BenchmarkReturns extracts the benchmark return series from records.
func BenchmarkReturns(records []domain.PeriodRecord) []float64 {
	out := make([]float64, len(records))
	for i, record := range records {
		out[i] = record.BenchmarkReturn
	}
	return out
}
