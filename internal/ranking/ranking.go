package ranking

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"rotation/internal/config"
	"rotation/internal/domain"
	"rotation/internal/indicators"
	"rotation/internal/logger"
)

const numGoroutines = 10

type Service struct {
	Weights config.Weights
}

func NewService(weights config.Weights) Service {
	return Service{Weights: weights}
}

type workInput struct {
	Series domain.PriceSeries
	Date   time.Time
}

type workResult struct {
	Snapshot domain.FactorSnapshot
}

// Rank scores every eligible universe symbol as of one rebalance date
// and returns the full ranking, composite descending with ties broken
// by symbol ascending. Snapshots are computed concurrently; the
// cross-sectional normalization below is the sequential join point.
func (s Service) Rank(ctx context.Context, store domain.PriceStore, universe []string, asOf time.Time) ([]domain.CandidateScore, error) {
	log := logger.FromContext(ctx)

	inputs := []workInput{}
	for _, symbol := range universe {
		series, ok := store.SeriesFor(symbol)
		if !ok {
			log.Debugw("symbol missing from price store", "symbol", symbol)
			continue
		}
		inputs = append(inputs, workInput{Series: series, Date: asOf})
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	inputCh := make(chan workInput, len(inputs))
	resultCh := make(chan workResult, len(inputs))
	var wg sync.WaitGroup
	for _, input := range inputs {
		wg.Add(1)
		inputCh <- input
	}
	close(inputCh)

	// Workers drain the input channel unconditionally so every queued
	// input is matched by exactly one wg.Done, even after cancellation;
	// resultCh is buffered for the full input set so sends never block.
	for i := 0; i < numGoroutines; i++ {
		go func() {
			for input := range inputCh {
				if ctx.Err() == nil {
					if snapshot, ok := computeSnapshot(ctx, input); ok {
						resultCh <- workResult{Snapshot: snapshot}
					}
				}
				wg.Done()
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	snapshots := []domain.FactorSnapshot{}
	for res := range resultCh {
		if !eligible(res.Snapshot) {
			log.Debugw("symbol ineligible on date",
				"symbol", res.Snapshot.Symbol,
				"date", asOf.Format(time.DateOnly),
			)
			continue
		}
		snapshots = append(snapshots, res.Snapshot)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.score(snapshots), nil
}

// computeSnapshot guards the indicator computation: a panic on a
// malformed series demotes that symbol to ineligible with a warning
// instead of taking down the whole rebalance date.
func computeSnapshot(ctx context.Context, input workInput) (snapshot domain.FactorSnapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Warnw("snapshot computation failed, symbol ineligible",
				"symbol", input.Series.Symbol,
				"date", input.Date.Format(time.DateOnly),
				"panic", r,
			)
			ok = false
		}
	}()
	return indicators.Snapshot(input.Series, input.Date), true
}

// eligible requires every factor the composite consumes. Snapshots
// from short histories carry NaNs and drop out here; the symbol can
// re-enter on a later rebalance date once it has enough history.
func eligible(snapshot domain.FactorSnapshot) bool {
	return !math.IsNaN(snapshot.Momentum6M) &&
		!math.IsNaN(snapshot.Momentum12M) &&
		!math.IsNaN(snapshot.Volatility)
}

// score runs the cross-sectional min-max normalization and composite
// weighting over the eligible snapshots. Volatility is inverted so
// that low volatility scores high.
func (s Service) score(snapshots []domain.FactorSnapshot) []domain.CandidateScore {
	if len(snapshots) == 0 {
		return nil
	}

	momentum6 := make([]float64, len(snapshots))
	momentum12 := make([]float64, len(snapshots))
	volatility := make([]float64, len(snapshots))
	for i, snapshot := range snapshots {
		momentum6[i] = snapshot.Momentum6M
		momentum12[i] = snapshot.Momentum12M
		volatility[i] = snapshot.Volatility
	}

	norm6 := Normalize(momentum6)
	norm12 := Normalize(momentum12)
	normVol := Normalize(volatility)

	scores := make([]domain.CandidateScore, len(snapshots))
	for i, snapshot := range snapshots {
		trend := 0.0
		if snapshot.AboveLongMA {
			trend = 1.0
		}
		invVol := 1 - normVol[i]
		scores[i] = domain.CandidateScore{
			Symbol:      snapshot.Symbol,
			Momentum6M:  norm6[i],
			Momentum12M: norm12[i],
			TrendScore:  trend,
			VolScore:    invVol,
			Snapshot:    snapshot,
			Composite: s.Weights.Momentum6M*norm6[i] +
				s.Weights.Momentum12M*norm12[i] +
				s.Weights.Trend*trend +
				s.Weights.LowVol*invVol,
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		return scores[i].Symbol < scores[j].Symbol
	})

	return scores
}

// Normalize min-max scales values into [0, 1]. A degenerate column
// where every value is equal maps to 0.5.
func Normalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if min == max {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// SelectTopN takes the ranked scores and builds the equal-weighted
// holding set. Fewer eligible symbols than n selects them all.
func SelectTopN(scores []domain.CandidateScore, n int) domain.HoldingSet {
	if n > len(scores) {
		n = len(scores)
	}
	symbols := make([]string, 0, n)
	for _, score := range scores[:n] {
		symbols = append(symbols, score.Symbol)
	}
	return domain.NewHoldingSet(symbols)
}
