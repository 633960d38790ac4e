package domain

// HoldingSet is an equal-weighted portfolio for one period. Symbols
// keep their ranked order; Weights always sum to 1 for a non-empty
// set. The zero value is the all-cash state.
type HoldingSet struct {
	Symbols []string
	Weights map[string]float64
}

func NewHoldingSet(rankedSymbols []string) HoldingSet {
	if len(rankedSymbols) == 0 {
		return HoldingSet{}
	}
	weights := make(map[string]float64, len(rankedSymbols))
	for _, symbol := range rankedSymbols {
		weights[symbol] = 1.0 / float64(len(rankedSymbols))
	}
	symbols := make([]string, len(rankedSymbols))
	copy(symbols, rankedSymbols)
	return HoldingSet{
		Symbols: symbols,
		Weights: weights,
	}
}

func (h HoldingSet) IsEmpty() bool {
	return len(h.Symbols) == 0
}

func (h HoldingSet) Contains(symbol string) bool {
	_, ok := h.Weights[symbol]
	return ok
}

func (h HoldingSet) Weight(symbol string) float64 {
	return h.Weights[symbol]
}
