package domain

import (
	"time"

	"github.com/google/uuid"
)

// PeriodRecord is one simulated period between consecutive rebalance
// dates. Values are the portfolio/benchmark levels after applying the
// period's returns.
type PeriodRecord struct {
	Start           time.Time
	End             time.Time
	Holdings        HoldingSet
	InCash          bool
	NSelected       int
	PortfolioReturn float64
	BenchmarkReturn float64
	Turnover        float64
	TxCost          float64
	PortfolioValue  float64
	BenchmarkValue  float64
}

type RunSummary struct {
	RunID     uuid.UUID
	Universe  string
	Benchmark string
	TopN      int
	TxCostBps float64

	StartDate time.Time
	EndDate   time.Time
	NPeriods  int

	TotalReturn   float64
	CAGR          float64
	AnnualizedVol float64
	Sharpe        float64
	MaxDrawdown   float64
	WinRate       float64
	PctInCash     float64
	BestPeriod    float64
	WorstPeriod   float64

	BenchmarkTotalReturn float64
	BenchmarkCAGR        float64
	BenchmarkMaxDrawdown float64

	// Outperformance is the difference of total returns, not a ratio.
	Outperformance float64
}

// RunResult bundles everything a backtest produces.
type RunResult struct {
	Summary RunSummary
	Periods []PeriodRecord
}
