// Package services composes the engine components into the analysis
// pipeline and owns the orchestration boundary around it: the forecast
// cache, stage-tagged error handling and the batch recompute job.
package services

import (
	"context"
	"fmt"

	"fincast/internal/allocation"
	"fincast/internal/config"
	"fincast/internal/core"
	"fincast/internal/forecast"
	"fincast/internal/simulation"
)

// Pipeline is the pure composition of the engine components. It holds no
// mutable state and may be shared between goroutines.
type Pipeline struct {
	filter       forecast.OutlierFilter
	forecaster   forecast.SurplusForecaster
	budgets      forecast.AdaptiveBudgetProjector
	simulator    *simulation.ShockSimulator
	optimizer    *allocation.Optimizer
	usePredicted bool
}

// NewPipeline builds every component from its section of the engine config.
func NewPipeline(cfg config.EngineConfig) (*Pipeline, error) {
	filter := forecast.NewOutlierFilter(cfg.Outlier())
	optimizer := allocation.NewOptimizer(cfg.Allocation())
	if _, err := optimizer.Strategy(optimizer.DefaultStrategy()); err != nil {
		return nil, fmt.Errorf("default allocation strategy: %w", err)
	}

	return &Pipeline{
		filter:       filter,
		forecaster:   forecast.NewSurplusForecaster(cfg.Surplus()),
		budgets:      forecast.NewAdaptiveBudgetProjector(cfg.Budget()),
		simulator:    simulation.NewShockSimulator(cfg.Simulation(), filter),
		optimizer:    optimizer,
		usePredicted: cfg.UsePredictedCapacity(),
	}, nil
}

// Optimizer exposes the allocation registry, e.g. to list strategies.
func (p *Pipeline) Optimizer() *allocation.Optimizer {
	return p.optimizer
}

func (p *Pipeline) Forecast(fc core.FinancialContext) core.ForecastResult {
	return p.forecaster.Forecast(fc)
}

func (p *Pipeline) Simulate(ctx context.Context, fc core.FinancialContext, fr core.ForecastResult) (core.ShockSimulationResult, error) {
	return p.simulator.Simulate(ctx, fc, fr)
}

// Budgets weighs the category histories and projects discretionary budgets
// and the savings opportunities they imply.
func (p *Pipeline) Budgets(fc core.FinancialContext) ([]core.BudgetProjection, []core.SavingsOpportunity) {
	weighted := p.filter.Apply(fc)
	budgets := p.budgets.Project(fc, weighted)
	return budgets, p.budgets.SavingsOpportunities(budgets)
}

// Capacity is the monthly amount available to goals.
func (p *Pipeline) Capacity(fr core.ForecastResult) float64 {
	if p.usePredicted {
		return fr.PredictedSurplus
	}
	return fr.StableSurplus
}

// Allocate distributes the forecast capacity across goals. An empty
// strategy selects the configured default.
func (p *Pipeline) Allocate(strategy string, goals []core.Goal, fr core.ForecastResult) (core.AllocationPlan, error) {
	if strategy == "" {
		strategy = p.optimizer.DefaultStrategy()
	}
	return p.optimizer.AllocateWith(strategy, goals, p.Capacity(fr))
}
