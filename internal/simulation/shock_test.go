package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/core"
	"fincast/internal/forecast"
)

func newContext(t *testing.T, mut func(*core.ContextParams)) core.FinancialContext {
	t.Helper()
	p := core.ContextParams{
		UserID:            "u-1",
		AsOf:              time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		MonthlyIncome:     50000,
		MonthlyExpenses:   []float64{30000, 32000, 29000, 31000, 95000, 30000},
		IncomeStability:   0.9,
		LiquidBalance:     20000,
		CurrentMonthSpend: 12000,
		DayOfMonthElapsed: 15,
	}
	if mut != nil {
		mut(&p)
	}
	fc, err := core.NewFinancialContext(p)
	require.NoError(t, err)
	return fc
}

func simulate(t *testing.T, cfg Config, fc core.FinancialContext) core.ShockSimulationResult {
	t.Helper()
	res := forecast.NewSurplusForecaster(forecast.DefaultSurplusConfig()).Forecast(fc)
	sim := NewShockSimulator(cfg, forecast.NewOutlierFilter(forecast.DefaultOutlierConfig()))
	out, err := sim.Simulate(context.Background(), fc, res)
	require.NoError(t, err)
	return out
}

func seeded(seed uint64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return cfg
}

func TestShockSimulator_Deterministic(t *testing.T) {
	fc := newContext(t, nil)

	a := simulate(t, seeded(42), fc)
	b := simulate(t, seeded(42), fc)
	assert.Equal(t, a, b)
	assert.Equal(t, uint64(42), a.Seed)

	c := simulate(t, seeded(43), fc)
	assert.NotEqual(t, a.ProjectedEndBalance, c.ProjectedEndBalance)
}

func TestShockSimulator_Invariants(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*core.ContextParams)
	}{
		{name: "history", mut: nil},
		{name: "thin buffer", mut: func(p *core.ContextParams) { p.LiquidBalance = 500 }},
		{name: "overdrawn", mut: func(p *core.ContextParams) { p.LiquidBalance = -80000 }},
		{name: "wealthy", mut: func(p *core.ContextParams) { p.LiquidBalance = 1e6 }},
		{name: "single month", mut: func(p *core.ContextParams) { p.MonthlyExpenses = []float64{0, 40000} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := simulate(t, seeded(7), newContext(t, tt.mut))

			assert.Equal(t, 1000, res.SimulationCount)
			assert.LessOrEqual(t, res.SafeShockLimit, res.RiskThreshold)
			assert.LessOrEqual(t, res.RiskThreshold, res.FailureThreshold)
			assert.Equal(t, res.SafeShockLimit, res.ShockCapacity)
			assert.GreaterOrEqual(t, res.SafeShockLimit, 0.0)
			assert.LessOrEqual(t, res.FailureThreshold, 3*50000.0)

			assert.LessOrEqual(t, res.ConfidenceBandLow, res.ProjectedEndBalance)
			assert.LessOrEqual(t, res.ProjectedEndBalance, res.ConfidenceBandHigh)
			assert.LessOrEqual(t, res.ExpensePercentiles["p25"], res.ExpensePercentiles["p50"])
			assert.LessOrEqual(t, res.ExpensePercentiles["p50"], res.ExpensePercentiles["p90"])

			assert.GreaterOrEqual(t, res.ResilienceScore, 0)
			assert.LessOrEqual(t, res.ResilienceScore, 100)
			assert.Equal(t, core.LabelForScore(res.ResilienceScore), res.ResilienceLabel)
		})
	}
}

func TestShockSimulator_Scenarios(t *testing.T) {
	t.Run("wealthy user is safe", func(t *testing.T) {
		res := simulate(t, seeded(1), newContext(t, func(p *core.ContextParams) { p.LiquidBalance = 1e6 }))
		assert.Equal(t, 150000.0, res.SafeShockLimit)
		assert.Equal(t, 100, res.ResilienceScore)
		assert.Equal(t, core.LabelSafe, res.ResilienceLabel)
		assert.False(t, res.DepletionRiskFlag)
		assert.Equal(t, string(DistributionHistory), res.Distribution)
	})

	t.Run("overdrawn user is critical", func(t *testing.T) {
		res := simulate(t, seeded(1), newContext(t, func(p *core.ContextParams) { p.LiquidBalance = -80000 }))
		assert.Equal(t, 0.0, res.SafeShockLimit)
		assert.Equal(t, 0.0, res.FailureThreshold)
		assert.Equal(t, 0, res.ResilienceScore)
		assert.Equal(t, core.LabelCritical, res.ResilienceLabel)
		assert.True(t, res.DepletionRiskFlag)
	})

	t.Run("burn rate trips depletion", func(t *testing.T) {
		// 12000 over 15 days is 800/day; 10 days ahead leaves 8000 - 8000 = 0
		res := simulate(t, seeded(1), newContext(t, func(p *core.ContextParams) {
			p.LiquidBalance = 8000
			p.MonthlyIncome = 200000
		}))
		assert.InDelta(t, 0, res.LookaheadBalance, 1e-9)
		assert.Greater(t, res.ProjectedEndBalance, 2000.0)
		assert.True(t, res.DepletionRiskFlag)
	})

	t.Run("heuristic without history", func(t *testing.T) {
		res := simulate(t, seeded(1), newContext(t, func(p *core.ContextParams) { p.MonthlyExpenses = nil }))
		assert.Equal(t, string(DistributionHeuristic), res.Distribution)
	})

	t.Run("degenerate without income or history", func(t *testing.T) {
		res := simulate(t, seeded(1), newContext(t, func(p *core.ContextParams) {
			p.MonthlyExpenses = nil
			p.MonthlyIncome = 0
		}))
		assert.Equal(t, string(DistributionDegenerate), res.Distribution)
		assert.Equal(t, 20000.0, res.ProjectedEndBalance)
		assert.Equal(t, 0.0, res.SafeShockLimit)
		assert.Equal(t, 0.0, res.ExpensePercentiles["p90"])
	})
}

func TestShockSimulator_ReseedsWithoutSeed(t *testing.T) {
	fc := newContext(t, nil)
	res := forecast.NewSurplusForecaster(forecast.DefaultSurplusConfig()).Forecast(fc)
	sim := NewShockSimulator(DefaultConfig(), forecast.NewOutlierFilter(forecast.DefaultOutlierConfig()))
	sim.now = func() time.Time { return time.Unix(0, 99) }

	out, err := sim.Simulate(context.Background(), fc, res)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), out.Seed)
}

func TestShockSimulator_Cancelled(t *testing.T) {
	fc := newContext(t, nil)
	res := forecast.NewSurplusForecaster(forecast.DefaultSurplusConfig()).Forecast(fc)
	sim := NewShockSimulator(seeded(1), forecast.NewOutlierFilter(forecast.DefaultOutlierConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Simulate(ctx, fc, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolvencyCurve_LargestShock(t *testing.T) {
	curve := solvencyCurve{
		balances: []float64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000},
		limit:    2000,
	}

	tests := []struct {
		level float64
		want  float64
	}{
		{SafeSolvency, 100},
		{RiskSolvency, 600},
		{FailureSolvency, 1000},
	}
	for _, tt := range tests {
		got := curve.largestShock(tt.level)
		assert.InDelta(t, tt.want, got, shockSearchTol, "level=%v", tt.level)
		assert.GreaterOrEqual(t, curve.fraction(got), tt.level)
		assert.Less(t, curve.fraction(got+1), tt.level)
	}

	t.Run("insolvent at zero shock", func(t *testing.T) {
		c := solvencyCurve{balances: []float64{-50, -10}, limit: 100}
		assert.Equal(t, 0.0, c.largestShock(SafeSolvency))
	})

	t.Run("solvent at the search limit", func(t *testing.T) {
		c := solvencyCurve{balances: []float64{5000, 6000}, limit: 100}
		assert.Equal(t, 100.0, c.largestShock(SafeSolvency))
	})

	t.Run("buffer shifts thresholds", func(t *testing.T) {
		c := curve
		c.buffer = 50
		assert.InDelta(t, 550, c.largestShock(RiskSolvency), shockSearchTol)
	})
}

func TestFitGamma(t *testing.T) {
	g := FitGamma(100, 400, DistributionHistory)
	assert.True(t, g.Available())
	assert.InDelta(t, 25, g.Shape, 1e-9)
	assert.InDelta(t, 4, g.Scale, 1e-9)

	floored := FitGamma(100, 0, DistributionHistory)
	assert.InDelta(t, 1, floored.Variance, 1e-12)
	assert.InDelta(t, 1e4, floored.Shape, 1e-6)

	assert.False(t, FitGamma(0, 10, DistributionHeuristic).Available())
	assert.False(t, FitGamma(-5, 10, DistributionHistory).Available())
}
