package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"fincast/internal/allocation"
	"fincast/internal/core"
	"fincast/internal/forecast"
	"fincast/internal/simulation"
)

// Allocation capacity sources.
const (
	CapacityStable    = "stable"
	CapacityPredicted = "predicted"
)

// EngineConfig holds every tunable of the forecasting engine. It is read
// from a TOML file; keys missing from the file keep their defaults.
type EngineConfig struct {
	// Outlier filter
	IQRMultiplier     float64 `toml:"iqr_multiplier" validate:"gt=0"`
	OutlierWeight     float64 `toml:"outlier_weight" validate:"gte=0,lte=1"`
	OutlierMinSamples int     `toml:"outlier_min_samples" validate:"gte=1"`

	// Surplus forecaster
	CIZScore float64 `toml:"ci_z_score" validate:"gt=0"`

	// Adaptive budgets
	EMAAlpha              float64   `toml:"ema_alpha" validate:"gt=0,lte=1"`
	AdaptiveBudgetWeights []float64 `toml:"adaptive_budget_weights" validate:"len=3,dive,gte=0"`
	MaxReductionPct       float64   `toml:"max_reduction_pct" validate:"gte=0,lte=100"`
	FixedCategories       []string  `toml:"fixed_categories"`

	// Shock simulator
	SimulationCount           int       `toml:"simulation_count" validate:"gte=1,lte=1000000"`
	SimulationWorkers         int       `toml:"simulation_workers" validate:"gte=1,lte=64"`
	SimulationSeed            uint64    `toml:"simulation_seed"`
	ConfidencePercentiles     []float64 `toml:"confidence_percentiles" validate:"min=1,dive,gte=0,lte=100"`
	DepletionBalanceThreshold float64   `toml:"depletion_balance_threshold"`
	DepletionDaysAhead        int       `toml:"depletion_days_ahead" validate:"gte=0"`
	SafetyBufferRatio         float64   `toml:"safety_buffer_ratio" validate:"gte=0,lte=1"`

	// Goal allocation
	AllocationStrategy     string             `toml:"allocation_strategy" validate:"required"`
	AllocationCapacity     string             `toml:"allocation_capacity" validate:"oneof=stable predicted"`
	PriorityWeights        map[string]float64 `toml:"priority_weights"`
	EmergencyWeight        float64            `toml:"emergency_weight" validate:"gte=0"`
	EmergencyFundThreshold float64            `toml:"emergency_fund_threshold" validate:"gte=0,lte=1"`
	EmergencySynonyms      []string           `toml:"emergency_synonyms"`

	// Forecast cache
	CacheTTLMinutes int `toml:"cache_ttl_minutes" validate:"gte=1"`
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IQRMultiplier:     2.0,
		OutlierWeight:     0.25,
		OutlierMinSamples: 4,

		CIZScore: 1.64,

		EMAAlpha:              0.3,
		AdaptiveBudgetWeights: []float64{0.5, 0.3, 0.2},
		MaxReductionPct:       25,

		SimulationCount:           1000,
		SimulationWorkers:         4,
		ConfidencePercentiles:     []float64{25, 50, 90},
		DepletionBalanceThreshold: 2000,
		DepletionDaysAhead:        10,
		SafetyBufferRatio:         0.10,

		AllocationStrategy: allocation.StrategyWeighted,
		AllocationCapacity: CapacityStable,
		PriorityWeights: map[string]float64{
			"1": 1.0, "2": 0.7, "3": 0.4, "4": 0.25, "default": 0.15,
		},
		EmergencyWeight:        1.5,
		EmergencyFundThreshold: 0.80,
		EmergencySynonyms:      append([]string(nil), core.DefaultEmergencySynonyms...),

		CacheTTLMinutes: 60,
	}
}

// LoadEngineFile decodes path over the defaults. An empty path returns the
// defaults.
func LoadEngineFile(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}

	// Tables merge into an existing map, so a priority_weights table in the
	// file replaces the defaults as a whole.
	cfg.PriorityWeights = nil
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode engine config %s: %w", path, err)
	}
	if cfg.PriorityWeights == nil {
		cfg.PriorityWeights = DefaultEngineConfig().PriorityWeights
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("engine config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var engineValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every option and returns all problems at once.
func (e EngineConfig) Validate() error {
	var problems []string

	if err := engineValidate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("engine configuration validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("invalid %s %v: must satisfy %s", fe.Namespace(), fe.Value(), constraint(fe)))
		}
	}

	for key, w := range e.PriorityWeights {
		if _, err := priorityRank(key); err != nil {
			problems = append(problems, err.Error())
		}
		if w < 0 {
			problems = append(problems, fmt.Sprintf("invalid priority weight %q = %v: must be non-negative", key, w))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("engine configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// priorityRank parses a priority_weights key. "default" yields 0.
func priorityRank(key string) (int, error) {
	if key == "default" {
		return 0, nil
	}
	rank, err := strconv.Atoi(key)
	if err != nil || rank < 1 || rank > 5 {
		return 0, fmt.Errorf("invalid priority weight key %q: must be 1-5 or default", key)
	}
	return rank, nil
}

// Outlier returns the outlier filter configuration.
func (e EngineConfig) Outlier() forecast.OutlierConfig {
	return forecast.OutlierConfig{
		IQRMultiplier: e.IQRMultiplier,
		OutlierWeight: e.OutlierWeight,
		MinSamples:    e.OutlierMinSamples,
	}
}

// Surplus returns the surplus forecaster configuration.
func (e EngineConfig) Surplus() forecast.SurplusConfig {
	cfg := forecast.DefaultSurplusConfig()
	cfg.CIZScore = e.CIZScore
	return cfg
}

// Budget returns the adaptive budget configuration.
func (e EngineConfig) Budget() forecast.BudgetConfig {
	cfg := forecast.DefaultBudgetConfig()
	cfg.EMAAlpha = e.EMAAlpha
	copy(cfg.Weights[:], e.AdaptiveBudgetWeights)
	cfg.MaxReductionPct = e.MaxReductionPct
	cfg.FixedCategories = append([]string(nil), e.FixedCategories...)
	return cfg
}

// Simulation returns the shock simulator configuration.
func (e EngineConfig) Simulation() simulation.Config {
	return simulation.Config{
		SimulationCount:           e.SimulationCount,
		ConfidencePercentiles:     append([]float64(nil), e.ConfidencePercentiles...),
		DepletionBalanceThreshold: e.DepletionBalanceThreshold,
		DepletionDaysAhead:        e.DepletionDaysAhead,
		SafetyBufferRatio:         e.SafetyBufferRatio,
		Seed:                      e.SimulationSeed,
		Workers:                   e.SimulationWorkers,
	}
}

// Allocation returns the goal allocation configuration.
func (e EngineConfig) Allocation() allocation.Config {
	cfg := allocation.DefaultConfig()
	if e.PriorityWeights != nil {
		cfg.PriorityWeights = make(map[int]float64, len(e.PriorityWeights))
		cfg.DefaultPriorityWeight = 0
		for key, w := range e.PriorityWeights {
			rank, err := priorityRank(key)
			switch {
			case err != nil:
				continue
			case rank == 0:
				cfg.DefaultPriorityWeight = w
			default:
				cfg.PriorityWeights[rank] = w
			}
		}
	}
	cfg.EmergencyWeight = e.EmergencyWeight
	cfg.EmergencyFundThreshold = e.EmergencyFundThreshold
	if len(e.EmergencySynonyms) > 0 {
		cfg.EmergencySynonyms = append([]string(nil), e.EmergencySynonyms...)
	}
	cfg.DefaultStrategy = e.AllocationStrategy
	return cfg
}

// CacheTTL is the forecast cache time-to-live.
func (e EngineConfig) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLMinutes) * time.Minute
}

// UsePredictedCapacity reports whether allocation draws on predicted rather
// than stable surplus.
func (e EngineConfig) UsePredictedCapacity() bool {
	return e.AllocationCapacity == CapacityPredicted
}
