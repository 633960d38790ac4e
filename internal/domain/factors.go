package domain

import "time"

// FactorSnapshot holds the raw indicator values for one symbol as of
// one date. Undefined values (short history) are NaN.
type FactorSnapshot struct {
	Symbol      string
	Date        time.Time
	Price       float64
	Momentum6M  float64
	Momentum12M float64
	MA50        float64
	MA200       float64
	AboveLongMA bool
	Volatility  float64
	MaxDrawdown float64
}

// CandidateScore is a symbol's normalized factor components and the
// weighted composite used for ranking.
type CandidateScore struct {
	Symbol      string
	Composite   float64
	Momentum6M  float64
	Momentum12M float64
	TrendScore  float64
	VolScore    float64
	Snapshot    FactorSnapshot
}
