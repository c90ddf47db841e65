package allocation

import (
	"math"

	"fincast/internal/core"
)

// WeightedStrategy weighs goals by priority rank, boosting emergency funds
// that are not yet funded past the threshold.
type WeightedStrategy struct {
	priority  map[int]float64
	fallback  float64
	emergency emergencyRule
}

func NewWeightedStrategy(cfg Config) WeightedStrategy {
	priority := make(map[int]float64, len(cfg.PriorityWeights))
	for rank, w := range cfg.PriorityWeights {
		priority[rank] = nonNegative(w)
	}
	return WeightedStrategy{
		priority:  priority,
		fallback:  nonNegative(cfg.DefaultPriorityWeight),
		emergency: newEmergencyRule(cfg),
	}
}

func (WeightedStrategy) Name() string { return StrategyWeighted }

func (s WeightedStrategy) Weights(goals []core.Goal) []float64 {
	out := make([]float64, len(goals))
	for i, g := range goals {
		if s.emergency.underfunded(g) {
			out[i] = s.emergency.weight
			continue
		}
		out[i] = s.priorityWeight(g.ClampedPriority())
	}
	return out
}

func (s WeightedStrategy) priorityWeight(rank int) float64 {
	if w, ok := s.priority[rank]; ok {
		return w
	}
	return s.fallback
}

// emergencyRule detects emergency-fund goals below the funded threshold.
type emergencyRule struct {
	matcher   core.Matcher
	threshold float64
	weight    float64
}

func newEmergencyRule(cfg Config) emergencyRule {
	synonyms := cfg.EmergencySynonyms
	if len(synonyms) == 0 {
		synonyms = core.DefaultEmergencySynonyms
	}
	return emergencyRule{
		matcher:   core.NewMatcher(synonyms),
		threshold: cfg.EmergencyFundThreshold,
		weight:    nonNegative(cfg.EmergencyWeight),
	}
}

func (r emergencyRule) underfunded(g core.Goal) bool {
	return r.matcher.Match(g.Type) && g.FundedRatio() < r.threshold
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
