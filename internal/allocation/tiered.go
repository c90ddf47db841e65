package allocation

import "fincast/internal/core"

// TieredStrategy splits capacity 50/30/20 across priority tiers 1, 2 and
// 3+, equally within a tier. Shares of absent tiers are spread over the
// present ones in proportion.
type TieredStrategy struct {
	shares [3]float64
}

func NewTieredStrategy(cfg Config) TieredStrategy {
	var shares [3]float64
	for i, s := range cfg.TierShares {
		shares[i] = nonNegative(s)
	}
	return TieredStrategy{shares: shares}
}

func (TieredStrategy) Name() string { return StrategyTiered }

func (s TieredStrategy) Weights(goals []core.Goal) []float64 {
	var counts [3]int
	for _, g := range goals {
		counts[tierOf(g)]++
	}

	var present float64
	for t, c := range counts {
		if c > 0 {
			present += s.shares[t]
		}
	}

	out := make([]float64, len(goals))
	if present <= 0 {
		return out
	}
	for i, g := range goals {
		t := tierOf(g)
		out[i] = s.shares[t] / present / float64(counts[t])
	}
	return out
}

func tierOf(g core.Goal) int {
	return min(g.ClampedPriority(), 3) - 1
}
