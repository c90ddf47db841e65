package services

import (
	"context"
	"errors"
	"time"

	"fincast/internal/cache"
	"fincast/internal/core"
	"fincast/internal/log"
)

// ContextReader builds the immutable per-computation snapshot of a user.
type ContextReader interface {
	LoadFinancialContext(ctx context.Context, userID string, asOf time.Time) (core.FinancialContext, error)
}

// GoalReader lists a user's active goals.
type GoalReader interface {
	ListActiveGoals(ctx context.Context, userID string) ([]core.Goal, error)
}

// Repository is the read side of the persistence collaborator.
type Repository interface {
	ContextReader
	GoalReader
}

// AnalysisService is the orchestration boundary of the engine. Every
// request fetches its data once, runs the pipeline stages in order and
// caches the forecast and shock pair per user period.
type AnalysisService struct {
	repo     Repository
	pipeline *Pipeline
	cache    *cache.ForecastCache
	logger   *log.Logger
}

func NewAnalysisService(repo Repository, pipeline *Pipeline, forecasts *cache.ForecastCache, logger *log.Logger) *AnalysisService {
	if logger == nil {
		logger = log.Discard()
	}
	if forecasts == nil {
		forecasts = cache.NewForecastCache(0, cache.DefaultForecastTTL)
	}
	return &AnalysisService{
		repo:     repo,
		pipeline: pipeline,
		cache:    forecasts,
		logger:   logger.WithComponent(log.ComponentEngine),
	}
}

// Pipeline returns the composed engine.
func (s *AnalysisService) Pipeline() *Pipeline {
	return s.pipeline
}

// Snapshot returns the forecast and shock assessment of userID for the
// period of asOf, from the cache when it is live. The boolean reports a
// cache hit.
func (s *AnalysisService) Snapshot(ctx context.Context, userID string, asOf time.Time) (core.Snapshot, bool, error) {
	start := time.Now()
	snap, hit, err := s.cache.GetOrCompute(userID, core.PeriodKey(asOf), func() (core.Snapshot, error) {
		fc, err := s.fetchContext(ctx, userID, asOf)
		if err != nil {
			return core.Snapshot{}, err
		}
		return s.computeSnapshot(ctx, fc)
	})
	if err != nil {
		return core.Snapshot{}, false, s.fail(ctx, userID, log.StageFetch, err)
	}

	s.logger.DebugContext(ctx, "Snapshot ready",
		log.FieldUserID, userID,
		log.FieldPeriod, snap.Period,
		log.FieldCacheHit, hit,
		log.FieldDuration, time.Since(start).Milliseconds())
	return snap, hit, nil
}

// Forecast returns the expense and surplus forecast.
func (s *AnalysisService) Forecast(ctx context.Context, userID string, asOf time.Time) (core.ForecastResult, error) {
	snap, _, err := s.Snapshot(ctx, userID, asOf)
	if err != nil {
		return core.ForecastResult{}, err
	}
	return snap.Forecast, nil
}

// Simulate returns the shock assessment.
func (s *AnalysisService) Simulate(ctx context.Context, userID string, asOf time.Time) (core.ShockSimulationResult, error) {
	snap, _, err := s.Snapshot(ctx, userID, asOf)
	if err != nil {
		return core.ShockSimulationResult{}, err
	}
	return snap.Shock, nil
}

// Budgets returns the adaptive budgets and savings opportunities. Budgets
// follow the current month's pace so they are never cached.
func (s *AnalysisService) Budgets(ctx context.Context, userID string, asOf time.Time) ([]core.BudgetProjection, []core.SavingsOpportunity, error) {
	fc, err := s.fetchContext(ctx, userID, asOf)
	if err != nil {
		return nil, nil, s.fail(ctx, userID, log.StageFetch, err)
	}

	var budgets []core.BudgetProjection
	var opps []core.SavingsOpportunity
	err = runStage(userID, log.StageBudget, func() error {
		budgets, opps = s.pipeline.Budgets(fc)
		return nil
	})
	if err != nil {
		return nil, nil, s.fail(ctx, userID, log.StageBudget, err)
	}
	return budgets, opps, nil
}

// Allocate distributes the forecast capacity over the user's active goals
// with the named strategy, or the default one when strategy is empty.
func (s *AnalysisService) Allocate(ctx context.Context, userID string, asOf time.Time, strategy string) (core.AllocationPlan, error) {
	snap, _, err := s.Snapshot(ctx, userID, asOf)
	if err != nil {
		return core.AllocationPlan{}, err
	}
	goals, err := s.fetchGoals(ctx, userID)
	if err != nil {
		return core.AllocationPlan{}, s.fail(ctx, userID, log.StageFetch, err)
	}
	plan, err := s.allocate(userID, strategy, goals, snap.Forecast)
	if err != nil {
		return core.AllocationPlan{}, s.fail(ctx, userID, log.StageAllocate, err)
	}
	return plan, nil
}

// Report runs the whole pipeline over a single fetch of the user's data.
// The snapshot part is served from the cache when live.
func (s *AnalysisService) Report(ctx context.Context, userID string, asOf time.Time, strategy string) (core.Report, error) {
	start := time.Now()

	fc, err := s.fetchContext(ctx, userID, asOf)
	if err != nil {
		return core.Report{}, s.fail(ctx, userID, log.StageFetch, err)
	}
	goals, err := s.fetchGoals(ctx, userID)
	if err != nil {
		return core.Report{}, s.fail(ctx, userID, log.StageFetch, err)
	}

	snap, hit, err := s.cache.GetOrCompute(userID, fc.Period(), func() (core.Snapshot, error) {
		return s.computeSnapshot(ctx, fc)
	})
	if err != nil {
		return core.Report{}, s.fail(ctx, userID, log.StageForecast, err)
	}

	report := core.Report{Snapshot: snap}
	err = runStage(userID, log.StageBudget, func() error {
		report.Budgets, report.Opportunities = s.pipeline.Budgets(fc)
		return nil
	})
	if err != nil {
		return core.Report{}, s.fail(ctx, userID, log.StageBudget, err)
	}

	report.Allocation, err = s.allocate(userID, strategy, goals, snap.Forecast)
	if err != nil {
		return core.Report{}, s.fail(ctx, userID, log.StageAllocate, err)
	}

	s.logger.InfoContext(ctx, "Report computed",
		log.FieldUserID, userID,
		log.FieldPeriod, report.Period,
		log.FieldStrategy, report.Allocation.Strategy,
		log.FieldCacheHit, hit,
		"resilience_score", report.Shock.ResilienceScore,
		log.FieldDuration, time.Since(start).Milliseconds())
	return report, nil
}

// Recompute drops the user's cached snapshots and builds a fresh report.
func (s *AnalysisService) Recompute(ctx context.Context, userID string, asOf time.Time, strategy string) (core.Report, error) {
	s.Invalidate(ctx, userID)
	return s.Report(ctx, userID, asOf, strategy)
}

// Invalidate drops every cached snapshot of userID.
func (s *AnalysisService) Invalidate(ctx context.Context, userID string) int {
	n := s.cache.InvalidateUser(userID)
	s.logger.DebugContext(ctx, "Snapshots invalidated",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpInvalidate,
		"count", n)
	return n
}

func (s *AnalysisService) fetchContext(ctx context.Context, userID string, asOf time.Time) (core.FinancialContext, error) {
	var fc core.FinancialContext
	err := runStage(userID, log.StageFetch, func() error {
		var err error
		fc, err = s.repo.LoadFinancialContext(ctx, userID, asOf)
		return err
	})
	return fc, err
}

func (s *AnalysisService) fetchGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	var goals []core.Goal
	err := runStage(userID, log.StageFetch, func() error {
		var err error
		goals, err = s.repo.ListActiveGoals(ctx, userID)
		return err
	})
	return goals, err
}

func (s *AnalysisService) computeSnapshot(ctx context.Context, fc core.FinancialContext) (core.Snapshot, error) {
	userID := fc.UserID()

	var fr core.ForecastResult
	err := runStage(userID, log.StageForecast, func() error {
		fr = s.pipeline.Forecast(fc)
		return nil
	})
	if err != nil {
		return core.Snapshot{}, err
	}

	var shock core.ShockSimulationResult
	err = runStage(userID, log.StageSimulate, func() error {
		var err error
		shock, err = s.pipeline.Simulate(ctx, fc, fr)
		return err
	})
	if err != nil {
		return core.Snapshot{}, err
	}

	return core.Snapshot{
		UserID:   userID,
		Period:   fc.Period(),
		Forecast: fr,
		Shock:    shock,
	}, nil
}

func (s *AnalysisService) allocate(userID, strategy string, goals []core.Goal, fr core.ForecastResult) (core.AllocationPlan, error) {
	var plan core.AllocationPlan
	err := runStage(userID, log.StageAllocate, func() error {
		var err error
		plan, err = s.pipeline.Allocate(strategy, goals, fr)
		return err
	})
	return plan, err
}

// fail logs a boundary failure once and returns it.
func (s *AnalysisService) fail(ctx context.Context, userID, stage string, err error) error {
	stage = stageOf(err, stage)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		s.logger.WarnContext(ctx, "User not found",
			log.FieldUserID, userID, log.FieldStage, stage)
	case errors.Is(err, core.ErrInvalidContext), errors.Is(err, core.ErrUnknownStrategy):
		s.logger.WarnContext(ctx, "Rejected request",
			log.FieldUserID, userID, log.FieldStage, stage, log.FieldError, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.InfoContext(ctx, "Computation cancelled",
			log.FieldUserID, userID, log.FieldStage, stage)
	default:
		s.logger.ErrorContext(ctx, "Computation failed",
			log.FieldUserID, userID, log.FieldStage, stage, log.FieldError, err)
	}
	return err
}
