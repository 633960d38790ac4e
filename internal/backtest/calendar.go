package backtest

import (
	"time"

	"rotation/internal/domain"
	"rotation/internal/util"
)

// MonthEnds reduces a trading-day index to the last trading day of each
// calendar month, keeping only dates on or after start. A backtest
// needs at least two such dates to realize a forward return; anything
// less is an InsufficientRangeError.
func MonthEnds(tradingDays []time.Time, start time.Time) ([]time.Time, error) {
	var ends []time.Time
	for i, day := range tradingDays {
		if i < len(tradingDays)-1 && util.SameMonth(day, tradingDays[i+1]) {
			continue
		}
		if !util.DateGte(day, start) {
			continue
		}
		ends = append(ends, day)
	}

	if len(ends) < 2 {
		end := start
		if len(tradingDays) > 0 {
			end = tradingDays[len(tradingDays)-1]
		}
		return nil, domain.InsufficientRangeError{
			Start: start,
			End:   end,
			Have:  len(ends),
			Need:  2,
		}
	}
	return ends, nil
}
