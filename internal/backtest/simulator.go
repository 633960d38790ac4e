package backtest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"rotation/internal/domain"
	"rotation/internal/logger"
)

// StartingValue is the initial portfolio level, so the equity curve
// reads as growth of $100.
const StartingValue = 100

// State is the accumulator carried between periods: the holdings
// taken at the last rebalance and the compounded portfolio and
// benchmark levels. The zero holdings set is all-cash, which is also
// the implicit state before the first period.
type State struct {
	Holdings       domain.HoldingSet
	PortfolioValue decimal.Decimal
	BenchmarkValue decimal.Decimal
}

func NewState() State {
	return State{
		PortfolioValue: decimal.NewFromInt(StartingValue),
		BenchmarkValue: decimal.NewFromInt(StartingValue),
	}
}

// SimulatePeriod realizes one holding period: the set decided at
// start earns each symbol's forward return from start to end, minus
// transaction costs on turnover against the prior holdings. It
// returns the next accumulator state and the period's record.
//
// A symbol with no price on either boundary contributes a zero
// return rather than failing the run.
func SimulatePeriod(
	ctx context.Context,
	store domain.PriceStore,
	prior State,
	holdings domain.HoldingSet,
	inCash bool,
	start, end time.Time,
	txCostBps float64,
) (State, domain.PeriodRecord) {
	log := logger.FromContext(ctx)

	grossReturn := 0.0
	for _, symbol := range holdings.Symbols {
		forward, ok := forwardReturn(store, symbol, start, end)
		if !ok {
			log.Warnw("missing price at period boundary, counting zero return",
				"symbol", symbol,
				"start", start.Format(time.DateOnly),
				"end", end.Format(time.DateOnly),
			)
			forward = 0
		}
		grossReturn += holdings.Weight(symbol) * forward
	}

	turnover := Turnover(prior.Holdings, holdings)
	txCost := turnover * txCostBps / 10000
	netReturn := grossReturn - txCost

	benchmarkReturn, ok := forwardReturn(store, store.Benchmark, start, end)
	if !ok {
		log.Warnw("missing benchmark price at period boundary",
			"benchmark", store.Benchmark,
			"start", start.Format(time.DateOnly),
			"end", end.Format(time.DateOnly),
		)
		benchmarkReturn = 0
	}

	next := State{
		Holdings:       holdings,
		PortfolioValue: prior.PortfolioValue.Mul(decimal.NewFromFloat(1 + netReturn)),
		BenchmarkValue: prior.BenchmarkValue.Mul(decimal.NewFromFloat(1 + benchmarkReturn)),
	}

	record := domain.PeriodRecord{
		Start:           start,
		End:             end,
		Holdings:        holdings,
		InCash:          inCash,
		NSelected:       len(holdings.Symbols),
		PortfolioReturn: netReturn,
		BenchmarkReturn: benchmarkReturn,
		Turnover:        turnover,
		TxCost:          txCost,
		PortfolioValue:  next.PortfolioValue.InexactFloat64(),
		BenchmarkValue:  next.BenchmarkValue.InexactFloat64(),
	}

	return next, record
}

func forwardReturn(store domain.PriceStore, symbol string, start, end time.Time) (float64, bool) {
	series, ok := store.SeriesFor(symbol)
	if !ok {
		return 0, false
	}
	startPrice, ok := series.PriceAt(start)
	if !ok || startPrice == 0 {
		return 0, false
	}
	endPrice, ok := series.PriceAt(end)
	if !ok {
		return 0, false
	}
	return endPrice/startPrice - 1, true
}

// Turnover is the fraction of the portfolio traded when moving from
// prev to next: the larger of the weight sold and the weight bought.
// A full replacement, the initial buy-in from cash, and a wind-down
// to cash all count as 1; keeping the same set counts as 0.
func Turnover(prev, next domain.HoldingSet) float64 {
	sold := 0.0
	for _, symbol := range prev.Symbols {
		if !next.Contains(symbol) {
			sold += prev.Weight(symbol)
		}
	}
	bought := 0.0
	for _, symbol := range next.Symbols {
		if !prev.Contains(symbol) {
			bought += next.Weight(symbol)
		}
	}
	if sold > bought {
		return sold
	}
	return bought
}
