package regime

import (
	"time"

	"rotation/internal/domain"
	"rotation/internal/indicators"
)

// State is the market regime at one rebalance date.
type State struct {
	RiskOn         bool
	BenchmarkClose float64
	LongMA         float64
	Reason         string
}

// Evaluate decides risk-on vs risk-off from the benchmark's position
// against its long moving average, using only observations at or
// before asOf. With too little history the moving average is
// undefined and the filter stays risk-on rather than forcing cash.
func Evaluate(benchmark domain.PriceSeries, asOf time.Time) State {
	truncated := benchmark.Truncate(asOf)

	if truncated.Len() < indicators.LongMAWindow {
		return State{
			RiskOn: true,
			Reason: "benchmark history shorter than long moving average window",
		}
	}

	close, _ := truncated.Last()
	longMA := indicators.SMA(truncated.Closes, indicators.LongMAWindow)
	if close < longMA {
		return State{
			RiskOn:         false,
			BenchmarkClose: close,
			LongMA:         longMA,
			Reason:         "benchmark below long moving average",
		}
	}
	return State{
		RiskOn:         true,
		BenchmarkClose: close,
		LongMA:         longMA,
		Reason:         "benchmark at or above long moving average",
	}
}
