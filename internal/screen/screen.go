package screen

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maja42/goval"
	"github.com/montanaflynn/stats"

	"rotation/internal/domain"
	"rotation/internal/indicators"
	"rotation/internal/logger"
	"rotation/internal/ranking"
	"rotation/internal/regime"
)

// Row is one symbol in the screen output: its ranking plus the
// relative strength against the benchmark, which only matters for
// reporting and is not part of the composite.
type Row struct {
	Rank             int
	Score            domain.CandidateScore
	RelativeStrength float64
}

// Summary holds the cross-sectional stats printed above the table.
type Summary struct {
	MedianMomentum6M float64
	PctAboveLongMA   float64
	Regime           regime.State
}

// Result is everything screen mode produces for reporting.
type Result struct {
	AsOf    time.Time
	Rows    []Row
	BuyList domain.HoldingSet
	Summary Summary
}

type Service struct {
	Ranker ranking.Service
}

func NewService(ranker ranking.Service) Service {
	return Service{Ranker: ranker}
}

// Run ranks the universe as of the latest trading date in the store.
// A non-empty expression replaces the composite: it is evaluated per
// symbol over the snapshot fields and ranked descending. Expression
// failures are configuration errors and abort.
func (s Service) Run(ctx context.Context, store domain.PriceStore, universe domain.Universe, topN int, expression string) (*Result, error) {
	log := logger.FromContext(ctx)

	if len(store.TradingDays) == 0 {
		return nil, fmt.Errorf("price store has no trading days")
	}
	asOf := store.TradingDays[len(store.TradingDays)-1]

	benchmark, ok := store.BenchmarkSeries()
	if !ok {
		return nil, fmt.Errorf("no price history for benchmark %s", store.Benchmark)
	}

	scores, err := s.Ranker.Rank(ctx, store, universe.Symbols, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to rank universe: %w", err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("no eligible symbols in universe %s as of %s", universe.Name, asOf.Format(time.DateOnly))
	}

	if expression != "" {
		scores, err = rankByExpression(scores, expression)
		if err != nil {
			return nil, err
		}
		log.Infow("ranking by custom expression", "expr", expression)
	}

	rows := make([]Row, len(scores))
	momentum := make([]float64, len(scores))
	aboveMA := 0
	for i, score := range scores {
		series, _ := store.SeriesFor(score.Symbol)
		rows[i] = Row{
			Rank:  i + 1,
			Score: score,
			RelativeStrength: indicators.RelativeStrength(
				series.Truncate(asOf), benchmark.Truncate(asOf), indicators.Momentum6MDays),
		}
		momentum[i] = score.Snapshot.Momentum6M
		if score.Snapshot.AboveLongMA {
			aboveMA++
		}
	}

	median, err := stats.Median(momentum)
	if err != nil {
		median = 0
	}

	return &Result{
		AsOf:    asOf,
		Rows:    rows,
		BuyList: ranking.SelectTopN(scores, topN),
		Summary: Summary{
			MedianMomentum6M: median,
			PctAboveLongMA:   float64(aboveMA) / float64(len(scores)),
			Regime:           regime.Evaluate(benchmark, asOf),
		},
	}, nil
}

// rankByExpression re-scores candidates with a user expression over
// the raw snapshot fields and re-sorts. The expression must evaluate
// to a number for every symbol.
func rankByExpression(scores []domain.CandidateScore, expression string) ([]domain.CandidateScore, error) {
	eval := goval.NewEvaluator()

	out := make([]domain.CandidateScore, len(scores))
	for i, score := range scores {
		aboveMA := 0.0
		if score.Snapshot.AboveLongMA {
			aboveMA = 1.0
		}
		variables := map[string]interface{}{
			"momentum_6m":  score.Snapshot.Momentum6M,
			"momentum_12m": score.Snapshot.Momentum12M,
			"above_ma200":  aboveMA,
			"volatility":   score.Snapshot.Volatility,
			"ma50":         score.Snapshot.MA50,
			"ma200":        score.Snapshot.MA200,
			"price":        score.Snapshot.Price,
		}

		result, err := eval.Evaluate(expression, variables, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid ranking expression %q: %w", expression, err)
		}

		value, ok := toFloat(result)
		if !ok {
			return nil, fmt.Errorf("ranking expression %q returned non-numeric %T for %s", expression, result, score.Symbol)
		}

		rescored := score
		rescored.Composite = value
		out[i] = rescored
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite > out[j].Composite
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
