package allocation

import (
	"math"

	"fincast/internal/core"
)

// EmergencyFirstStrategy gives a fixed share to underfunded emergency goals
// and splits the rest equally among the other goals. Without an underfunded
// emergency goal it defers to its fallback.
type EmergencyFirstStrategy struct {
	share     float64
	emergency emergencyRule
	fallback  Strategy
}

func NewEmergencyFirstStrategy(cfg Config, fallback Strategy) EmergencyFirstStrategy {
	share := cfg.EmergencyShare
	switch {
	case share < 0 || math.IsNaN(share):
		share = 0
	case share > 1:
		share = 1
	}
	return EmergencyFirstStrategy{
		share:     share,
		emergency: newEmergencyRule(cfg),
		fallback:  fallback,
	}
}

func (EmergencyFirstStrategy) Name() string { return StrategyEmergencyFirst }

func (s EmergencyFirstStrategy) Weights(goals []core.Goal) []float64 {
	isEmergency := make([]bool, len(goals))
	var nEmergency int
	for i, g := range goals {
		if s.emergency.underfunded(g) {
			isEmergency[i] = true
			nEmergency++
		}
	}
	if nEmergency == 0 {
		return s.fallback.Weights(goals)
	}

	nRest := len(goals) - nEmergency
	out := make([]float64, len(goals))
	for i := range goals {
		switch {
		case isEmergency[i]:
			out[i] = s.share / float64(nEmergency)
		case nRest > 0:
			out[i] = (1 - s.share) / float64(nRest)
		}
	}
	return out
}
