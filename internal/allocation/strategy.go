// Package allocation distributes monthly saving capacity across goals.
//
// This file implements the Strategy Pattern for allocation policies. Each
// strategy only decides the relative weight of every goal; the optimizer
// turns weights into capped amounts, redistributes what the caps leave over
// and converts amounts into fractions of capacity.
package allocation

import (
	"fmt"
	"math"
	"sort"

	"fincast/internal/core"
)

// Strategy names.
const (
	StrategyWeighted       = "weighted"
	StrategyTiered         = "tiered"
	StrategyEmergencyFirst = "emergency_first"
)

// Strategy assigns a non-negative weight to every goal.
type Strategy interface {
	// Name is the registry key of the strategy.
	Name() string
	// Weights returns one weight per goal, in input order.
	Weights(goals []core.Goal) []float64
}

// Config tunes the optimizer and its built-in strategies.
type Config struct {
	// PriorityWeights maps a priority rank to its weight (default: 1:1.0, 2:0.7, 3:0.4, 4:0.25)
	PriorityWeights map[int]float64

	// DefaultPriorityWeight applies to ranks missing from PriorityWeights (default: 0.15)
	DefaultPriorityWeight float64

	// EmergencyWeight replaces the priority weight of an underfunded emergency goal (default: 1.5)
	EmergencyWeight float64

	// EmergencyFundThreshold is the funded ratio at which the override stops (default: 0.80)
	EmergencyFundThreshold float64

	// EmergencySynonyms identify emergency goals by type (default: core.DefaultEmergencySynonyms)
	EmergencySynonyms []string

	// RedistributionThreshold is the smallest remainder worth redistributing (default: 1.0)
	RedistributionThreshold float64

	// TierShares are the tiered strategy's shares for ranks 1, 2 and 3+ (default: 0.5, 0.3, 0.2)
	TierShares [3]float64

	// EmergencyShare is the emergency-first share of underfunded emergency goals (default: 0.7)
	EmergencyShare float64

	// DefaultStrategy is used by Allocate (default: weighted)
	DefaultStrategy string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PriorityWeights:         map[int]float64{1: 1.0, 2: 0.7, 3: 0.4, 4: 0.25},
		DefaultPriorityWeight:   0.15,
		EmergencyWeight:         1.5,
		EmergencyFundThreshold:  0.80,
		EmergencySynonyms:       core.DefaultEmergencySynonyms,
		RedistributionThreshold: 1.0,
		TierShares:              [3]float64{0.5, 0.3, 0.2},
		EmergencyShare:          0.7,
		DefaultStrategy:         StrategyWeighted,
	}
}

// Optimizer owns a strategy registry and runs allocations.
type Optimizer struct {
	cfg        Config
	strategies map[string]Strategy
}

// NewOptimizer builds an optimizer with the weighted, tiered and
// emergency-first strategies registered.
func NewOptimizer(cfg Config) *Optimizer {
	if len(cfg.EmergencySynonyms) == 0 {
		cfg.EmergencySynonyms = core.DefaultEmergencySynonyms
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = StrategyWeighted
	}
	if cfg.RedistributionThreshold < 0 {
		cfg.RedistributionThreshold = 0
	}

	o := &Optimizer{cfg: cfg, strategies: make(map[string]Strategy)}
	weighted := NewWeightedStrategy(cfg)
	o.Register(weighted)
	o.Register(NewTieredStrategy(cfg))
	o.Register(NewEmergencyFirstStrategy(cfg, weighted))
	return o
}

// Register adds or replaces a strategy.
func (o *Optimizer) Register(s Strategy) {
	o.strategies[s.Name()] = s
}

// Strategy returns the strategy registered under name.
// Returns an error wrapping core.ErrUnknownStrategy if there is none.
func (o *Optimizer) Strategy(name string) (Strategy, error) {
	s, ok := o.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, name)
	}
	return s, nil
}

// Strategies lists the registered strategy names in sorted order.
func (o *Optimizer) Strategies() []string {
	names := make([]string, 0, len(o.strategies))
	for n := range o.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultStrategy is the name Allocate uses.
func (o *Optimizer) DefaultStrategy() string {
	return o.cfg.DefaultStrategy
}

// Allocate runs the default strategy.
func (o *Optimizer) Allocate(goals []core.Goal, maxFeasible float64) (core.AllocationPlan, error) {
	return o.AllocateWith(o.cfg.DefaultStrategy, goals, maxFeasible)
}

// AllocateWith runs the named strategy over goals with maxFeasible capacity.
// An empty goal list or non-positive capacity yields an empty plan.
func (o *Optimizer) AllocateWith(name string, goals []core.Goal, maxFeasible float64) (core.AllocationPlan, error) {
	s, err := o.Strategy(name)
	if err != nil {
		return core.AllocationPlan{}, err
	}

	if math.IsNaN(maxFeasible) || math.IsInf(maxFeasible, 0) {
		maxFeasible = 0
	}
	plan := core.AllocationPlan{
		Strategy:  name,
		Capacity:  math.Max(maxFeasible, 0),
		Fractions: map[string]float64{},
		Amounts:   map[string]float64{},
	}
	if len(goals) == 0 || maxFeasible <= 0 {
		plan.Unallocated = plan.Capacity
		return plan, nil
	}

	weights := s.Weights(goals)
	amounts := o.distribute(goals, weights, maxFeasible)

	denom := math.Max(maxFeasible, 1)
	var allocated float64
	for i, g := range goals {
		plan.Amounts[g.ID] += amounts[i]
		plan.Fractions[g.ID] += amounts[i] / denom
		allocated += amounts[i]
	}
	plan.Unallocated = math.Max(maxFeasible-allocated, 0)
	return plan, nil
}

// distribute turns weights into amounts. Shares are capped at each goal's
// RequiredMonthly, and the remainder is handed again by weight to goals that
// can still absorb it until it drops to the redistribution threshold. A zero
// total weight splits capacity equally without caps.
func (o *Optimizer) distribute(goals []core.Goal, weights []float64, capacity float64) []float64 {
	n := len(goals)
	amounts := make([]float64, n)

	w := make([]float64, n)
	var total float64
	for i := range goals {
		if i < len(weights) && weights[i] > 0 && !math.IsInf(weights[i], 0) {
			w[i] = weights[i]
		}
		total += w[i]
	}
	if total <= 0 {
		for i := range amounts {
			amounts[i] = capacity / float64(n)
		}
		return amounts
	}

	for i, g := range goals {
		amounts[i] = capAt(g, w[i]/total*capacity)
	}

	for round := 0; round <= n; round++ {
		var allocated float64
		for _, a := range amounts {
			allocated += a
		}
		remainder := capacity - allocated
		if remainder <= o.cfg.RedistributionThreshold {
			break
		}

		var openWeight float64
		for i, g := range goals {
			if w[i] > 0 && canAbsorb(g, amounts[i]) {
				openWeight += w[i]
			}
		}
		if openWeight <= 0 {
			break
		}

		var added float64
		for i, g := range goals {
			if w[i] <= 0 || !canAbsorb(g, amounts[i]) {
				continue
			}
			next := capAt(g, amounts[i]+w[i]/openWeight*remainder)
			added += next - amounts[i]
			amounts[i] = next
		}
		if added <= 0 {
			break
		}
	}
	return amounts
}

func capAt(g core.Goal, amount float64) float64 {
	if g.RequiredMonthly > 0 && amount > g.RequiredMonthly {
		return g.RequiredMonthly
	}
	return amount
}

func canAbsorb(g core.Goal, amount float64) bool {
	return g.RequiredMonthly <= 0 || amount < g.RequiredMonthly
}
