package domain

import (
	"sort"
	"time"
)

type Bar struct {
	Symbol string
	Date   time.Time
	Close  float64
}

// PriceSeries holds a symbol's daily adjusted closes in ascending
// date order. Dates and Closes are always the same length.
type PriceSeries struct {
	Symbol string
	Dates  []time.Time
	Closes []float64
}

func NewPriceSeries(symbol string, bars []Bar) PriceSeries {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	series := PriceSeries{Symbol: symbol}
	for _, bar := range sorted {
		n := len(series.Dates)
		if n > 0 && sameDay(series.Dates[n-1], bar.Date) {
			series.Closes[n-1] = bar.Close
			continue
		}
		series.Dates = append(series.Dates, bar.Date)
		series.Closes = append(series.Closes, bar.Close)
	}
	return series
}

func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (p PriceSeries) Len() int {
	return len(p.Dates)
}

// Truncate returns the series restricted to observations at or before
// asOf. The result shares backing arrays and must not be mutated.
func (p PriceSeries) Truncate(asOf time.Time) PriceSeries {
	idx := sort.Search(len(p.Dates), func(i int) bool {
		return p.Dates[i].After(asOf)
	})
	return PriceSeries{
		Symbol: p.Symbol,
		Dates:  p.Dates[:idx],
		Closes: p.Closes[:idx],
	}
}

func (p PriceSeries) Last() (float64, bool) {
	if len(p.Closes) == 0 {
		return 0, false
	}
	return p.Closes[len(p.Closes)-1], true
}

func (p PriceSeries) LastDate() (time.Time, bool) {
	if len(p.Dates) == 0 {
		return time.Time{}, false
	}
	return p.Dates[len(p.Dates)-1], true
}

// PriceAt returns the most recent close at or before date. Lookups on
// holidays or weekends resolve to the prior trading day's close.
func (p PriceSeries) PriceAt(date time.Time) (float64, bool) {
	truncated := p.Truncate(date)
	return truncated.Last()
}

// Returns computes day-over-day percent changes.
func (p PriceSeries) Returns() []float64 {
	if len(p.Closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(p.Closes)-1)
	for i := 1; i < len(p.Closes); i++ {
		out = append(out, p.Closes[i]/p.Closes[i-1]-1)
	}
	return out
}

// PriceStore is the assembled input of one run: a series per symbol
// plus the benchmark's dates, which act as the trading-day index.
type PriceStore struct {
	Benchmark   string
	Series      map[string]PriceSeries
	TradingDays []time.Time
}

func (s PriceStore) SeriesFor(symbol string) (PriceSeries, bool) {
	series, ok := s.Series[symbol]
	return series, ok
}

func (s PriceStore) BenchmarkSeries() (PriceSeries, bool) {
	return s.SeriesFor(s.Benchmark)
}

func (s PriceStore) Symbols() []string {
	symbols := make([]string, 0, len(s.Series))
	for symbol := range s.Series {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
