package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rotation/internal/config"
	"rotation/internal/domain"
	"rotation/internal/logger"
	"rotation/internal/metrics"
	"rotation/internal/ranking"
	"rotation/internal/regime"
	"rotation/internal/util"
)

// Engine runs the monthly rotation simulation over an assembled
// price store. Periods are strictly sequential: each period's
// turnover depends on the holdings realized by the previous one.
type Engine struct {
	Ranker ranking.Service
}

func NewEngine(weights config.Weights) Engine {
	return Engine{Ranker: ranking.NewService(weights)}
}

// Run simulates every holding period between the configured start
// date and the end of the price store's trading-day index. N
// rebalance dates produce N-1 realized periods.
func (e Engine) Run(ctx context.Context, cfg *config.Config, store domain.PriceStore, universe domain.Universe) (*domain.RunResult, error) {
	log := logger.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	benchmark, ok := store.BenchmarkSeries()
	if !ok || benchmark.Len() == 0 {
		return nil, fmt.Errorf("no price history for benchmark %s", store.Benchmark)
	}

	startDate, err := util.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", cfg.StartDate, err)
	}

	rebalanceDates, err := MonthEnds(store.TradingDays, startDate)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	runStart := time.Now()
	log.Infow("starting backtest",
		"runID", runID,
		"universe", universe.Name,
		"symbols", universe.Size(),
		"rebalanceDates", len(rebalanceDates),
		"from", rebalanceDates[0].Format(time.DateOnly),
		"to", rebalanceDates[len(rebalanceDates)-1].Format(time.DateOnly),
	)

	state := NewState()
	records := make([]domain.PeriodRecord, 0, len(rebalanceDates)-1)

	for i := 0; i < len(rebalanceDates)-1; i++ {
		asOf := rebalanceDates[i]
		next := rebalanceDates[i+1]

		holdings, inCash, err := e.decideHoldings(ctx, cfg, store, benchmark, universe, asOf)
		if err != nil {
			return nil, err
		}

		state, records = appendPeriod(ctx, store, state, holdings, inCash, asOf, next, cfg.TxCostBps, records)
	}

	summary := e.summarize(runID, cfg, universe, rebalanceDates, records)

	log.Infow("backtest complete",
		"runID", runID,
		"periods", len(records),
		"totalReturn", summary.TotalReturn,
		"duration", time.Since(runStart).Round(time.Millisecond),
	)

	return &domain.RunResult{Summary: summary, Periods: records}, nil
}

// decideHoldings picks the holding set for the period starting at
// asOf. The regime filter runs first: a risk-off verdict spends the
// period in cash and skips scoring entirely, which produces the same
// records as scoring and discarding the selection.
func (e Engine) decideHoldings(
	ctx context.Context,
	cfg *config.Config,
	store domain.PriceStore,
	benchmark domain.PriceSeries,
	universe domain.Universe,
	asOf time.Time,
) (domain.HoldingSet, bool, error) {
	log := logger.FromContext(ctx)

	regimeState := regime.Evaluate(benchmark, asOf)
	if !regimeState.RiskOn {
		log.Debugw("risk-off, period in cash",
			"date", asOf.Format(time.DateOnly),
			"benchmarkClose", regimeState.BenchmarkClose,
			"longMA", regimeState.LongMA,
		)
		return domain.HoldingSet{}, true, nil
	}

	scores, err := e.Ranker.Rank(ctx, store, universe.Symbols, asOf)
	if err != nil {
		return domain.HoldingSet{}, false, fmt.Errorf("failed to rank universe on %s: %w", asOf.Format(time.DateOnly), err)
	}
	if len(scores) == 0 {
		log.Warnw("no eligible symbols, period in cash", "date", asOf.Format(time.DateOnly))
		return domain.HoldingSet{}, false, nil
	}

	return ranking.SelectTopN(scores, cfg.TopN), false, nil
}

func appendPeriod(
	ctx context.Context,
	store domain.PriceStore,
	state State,
	holdings domain.HoldingSet,
	inCash bool,
	start, end time.Time,
	txCostBps float64,
	records []domain.PeriodRecord,
) (State, []domain.PeriodRecord) {
	next, record := SimulatePeriod(ctx, store, state, holdings, inCash, start, end, txCostBps)
	return next, append(records, record)
}

// summarize recomputes every statistic from the finished record
// sequence rather than from any running totals kept during the loop.
func (e Engine) summarize(
	runID uuid.UUID,
	cfg *config.Config,
	universe domain.Universe,
	rebalanceDates []time.Time,
	records []domain.PeriodRecord,
) domain.RunSummary {
	portfolio := metrics.Compute(metrics.PortfolioReturns(records))
	benchmark := metrics.Compute(metrics.BenchmarkReturns(records))

	return domain.RunSummary{
		RunID:     runID,
		Universe:  universe.Name,
		Benchmark: cfg.Benchmark,
		TopN:      cfg.TopN,
		TxCostBps: cfg.TxCostBps,

		StartDate: rebalanceDates[0],
		EndDate:   rebalanceDates[len(rebalanceDates)-1],
		NPeriods:  len(records),

		TotalReturn:   portfolio.TotalReturn,
		CAGR:          portfolio.CAGR,
		AnnualizedVol: portfolio.AnnualizedVol,
		Sharpe:        portfolio.Sharpe,
		MaxDrawdown:   portfolio.MaxDrawdown,
		WinRate:       portfolio.WinRate,
		PctInCash:     metrics.PctInCash(records),
		BestPeriod:    portfolio.BestPeriod,
		WorstPeriod:   portfolio.WorstPeriod,

		BenchmarkTotalReturn: benchmark.TotalReturn,
		BenchmarkCAGR:        benchmark.CAGR,
		BenchmarkMaxDrawdown: benchmark.MaxDrawdown,

		Outperformance: portfolio.TotalReturn - benchmark.TotalReturn,
	}
}
