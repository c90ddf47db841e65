package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/allocation"
)

func writeEngineFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultEngineConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultEngineConfig().Validate())
}

func TestLoadEngineFile(t *testing.T) {
	t.Run("empty path keeps defaults", func(t *testing.T) {
		cfg, err := LoadEngineFile("")
		require.NoError(t, err)
		assert.Equal(t, DefaultEngineConfig(), cfg)
	})

	t.Run("partial file overrides named keys", func(t *testing.T) {
		path := writeEngineFile(t, `
iqr_multiplier = 1.5
simulation_count = 5000
simulation_seed = 42
adaptive_budget_weights = [0.6, 0.3, 0.1]
allocation_strategy = "tiered"
allocation_capacity = "predicted"
cache_ttl_minutes = 15
`)
		cfg, err := LoadEngineFile(path)
		require.NoError(t, err)

		assert.Equal(t, 1.5, cfg.IQRMultiplier)
		assert.Equal(t, 0.25, cfg.OutlierWeight)
		assert.Equal(t, 5000, cfg.SimulationCount)
		assert.Equal(t, uint64(42), cfg.Simulation().Seed)
		assert.Equal(t, [3]float64{0.6, 0.3, 0.1}, cfg.Budget().Weights)
		assert.Equal(t, allocation.StrategyTiered, cfg.Allocation().DefaultStrategy)
		assert.True(t, cfg.UsePredictedCapacity())
		assert.Equal(t, 15*time.Minute, cfg.CacheTTL())
		assert.Equal(t, DefaultEngineConfig().PriorityWeights, cfg.PriorityWeights)
	})

	t.Run("priority table replaces defaults", func(t *testing.T) {
		path := writeEngineFile(t, `
[priority_weights]
1 = 2.0
default = 0.5
`)
		cfg, err := LoadEngineFile(path)
		require.NoError(t, err)

		alloc := cfg.Allocation()
		assert.Equal(t, map[int]float64{1: 2.0}, alloc.PriorityWeights)
		assert.Equal(t, 0.5, alloc.DefaultPriorityWeight)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeEngineFile(t, `simulation_cnt = 10`)
		_, err := LoadEngineFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown keys simulation_cnt")
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := writeEngineFile(t, `iqr_multiplier = = 2`)
		_, err := LoadEngineFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode engine config")
	})

	t.Run("out of range values", func(t *testing.T) {
		path := writeEngineFile(t, `
outlier_weight = 1.5
adaptive_budget_weights = [0.5, 0.5]
allocation_capacity = "everything"

[priority_weights]
9 = 1.0
`)
		_, err := LoadEngineFile(path)
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "engine configuration validation failed")
		assert.Contains(t, msg, "OutlierWeight")
		assert.Contains(t, msg, "AdaptiveBudgetWeights")
		assert.Contains(t, msg, "AllocationCapacity")
		assert.Contains(t, msg, `invalid priority weight key "9"`)
	})
}

func TestEngineConfig_Converters(t *testing.T) {
	cfg := DefaultEngineConfig()

	out := cfg.Outlier()
	assert.Equal(t, 2.0, out.IQRMultiplier)
	assert.Equal(t, 4, out.MinSamples)

	assert.Equal(t, 1.64, cfg.Surplus().CIZScore)

	sim := cfg.Simulation()
	assert.Equal(t, 1000, sim.SimulationCount)
	assert.Equal(t, []float64{25, 50, 90}, sim.ConfidencePercentiles)
	assert.Equal(t, uint64(0), sim.Seed)

	alloc := cfg.Allocation()
	assert.Equal(t, allocation.DefaultConfig().PriorityWeights, alloc.PriorityWeights)
	assert.Equal(t, 0.15, alloc.DefaultPriorityWeight)
	assert.Equal(t, 1.5, alloc.EmergencyWeight)

	assert.False(t, cfg.UsePredictedCapacity())
}
