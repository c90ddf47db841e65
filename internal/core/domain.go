package core

import (
	"errors"
	"fmt"
	"time"
)

type (
	// CategoryObservation is a single spend event within a category.
	CategoryObservation struct {
		Amount    float64
		Timestamp time.Time
	}

	// Goal is an active savings goal. RequiredMonthly may be zero when no
	// deadline-derived contribution is known.
	Goal struct {
		ID              string  `json:"goal_id" validate:"required"`
		TargetAmount    float64 `json:"target_amount" validate:"gte=0"`
		CurrentAmount   float64 `json:"current_amount" validate:"gte=0"`
		Priority        int     `json:"priority"`
		Type            string  `json:"goal_type"`
		RequiredMonthly float64 `json:"required_monthly" validate:"gte=0"`
	}

	// ForecastResult is the near-term expense and surplus forecast.
	ForecastResult struct {
		PredictedExpenses float64 `json:"predicted_expenses"`
		ExpenseStd        float64 `json:"expense_std"`
		PredictedSurplus  float64 `json:"predicted_surplus"`
		StableSurplus     float64 `json:"stable_surplus"`
		SurplusStd        float64 `json:"surplus_std"`
		ConfidenceLower   float64 `json:"confidence_lower"`
		ConfidenceUpper   float64 `json:"confidence_upper"`
		Method            string  `json:"method"`
		MonthsUsed        int     `json:"months_used"`
	}

	// ShockSimulationResult describes how large an unplanned expense the
	// user can absorb. Thresholds grow as the required solvency level drops:
	// SafeShockLimit <= RiskThreshold <= FailureThreshold.
	ShockSimulationResult struct {
		ShockCapacity       float64            `json:"shock_capacity"`
		SafeShockLimit      float64            `json:"safe_shock_limit"`
		RiskThreshold       float64            `json:"risk_threshold"`
		FailureThreshold    float64            `json:"failure_threshold"`
		ResilienceScore     int                `json:"resilience_score"`
		ResilienceLabel     ResilienceLabel    `json:"resilience_label"`
		DepletionRiskFlag   bool               `json:"depletion_risk_flag"`
		ConfidenceBandLow   float64            `json:"confidence_band_low"`
		ConfidenceBandHigh  float64            `json:"confidence_band_high"`
		ProjectedEndBalance float64            `json:"projected_end_balance"`
		LookaheadBalance    float64            `json:"lookahead_balance"`
		ExpensePercentiles  map[string]float64 `json:"expense_percentiles"`
		Distribution        string             `json:"distribution"`
		SimulationCount     int                `json:"simulation_count"`
		Seed                uint64             `json:"seed"`
	}

	// AllocationPlan maps goal IDs to the fraction of capacity they receive.
	AllocationPlan struct {
		Strategy    string             `json:"strategy"`
		Capacity    float64            `json:"capacity"`
		Fractions   map[string]float64 `json:"fractions"`
		Amounts     map[string]float64 `json:"amounts"`
		Unallocated float64            `json:"unallocated"`
	}

	// BudgetProjection is the adaptive budget of one discretionary category.
	BudgetProjection struct {
		Category          string  `json:"category"`
		AdaptiveBudget    float64 `json:"adaptive_budget"`
		HistoricalMedian  float64 `json:"historical_median"`
		RecentEMA         float64 `json:"recent_ema"`
		PaceProjection    float64 `json:"pace_projection"`
		ActualSpendSoFar  float64 `json:"actual_spend_so_far"`
		BudgetRemaining   float64 `json:"budget_remaining"`
		IsOverBudget      bool    `json:"is_over_budget"`
		WeightedHistSpend float64 `json:"weighted_history_spend"`
	}

	// SavingsOpportunity is a suggested cut in a discretionary category.
	SavingsOpportunity struct {
		Category           string  `json:"category"`
		ProjectedSpend     float64 `json:"projected_spend"`
		AdaptiveBudget     float64 `json:"adaptive_budget"`
		SuggestedReduction float64 `json:"suggested_reduction"`
	}

	// Snapshot is the cached forecaster/simulator pair for one user period.
	Snapshot struct {
		UserID     string                `json:"user_id"`
		Period     string                `json:"period"`
		Forecast   ForecastResult        `json:"forecast"`
		Shock      ShockSimulationResult `json:"shock"`
		ComputedAt time.Time             `json:"computed_at"`
	}

	// Report is the full decision-support output for a user.
	Report struct {
		Snapshot
		Budgets       []BudgetProjection   `json:"budgets"`
		Opportunities []SavingsOpportunity `json:"savings_opportunities"`
		Allocation    AllocationPlan       `json:"allocation"`
	}
)

// ResilienceLabel is the banded form of the resilience score.
type ResilienceLabel string

const (
	LabelSafe     ResilienceLabel = "Safe"
	LabelModerate ResilienceLabel = "Moderate"
	LabelFragile  ResilienceLabel = "Fragile"
	LabelCritical ResilienceLabel = "Critical"
)

// LabelForScore maps a 0-100 resilience score onto its band.
func LabelForScore(score int) ResilienceLabel {
	switch {
	case score >= 80:
		return LabelSafe
	case score >= 50:
		return LabelModerate
	case score >= 25:
		return LabelFragile
	default:
		return LabelCritical
	}
}

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidContext    = errors.New("invalid financial context")
	ErrComputationFailed = errors.New("computation failed")
	ErrUnknownStrategy   = errors.New("unknown allocation strategy")
)

// ValidationError names the context field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid financial context: field %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidContext
}

// FundedRatio returns current/target, or 1 when the goal has no target.
func (g Goal) FundedRatio() float64 {
	if g.TargetAmount <= 0 {
		return 1
	}
	return g.CurrentAmount / g.TargetAmount
}

// ClampedPriority returns the priority forced into [1,5].
func (g Goal) ClampedPriority() int {
	switch {
	case g.Priority < 1:
		return 1
	case g.Priority > 5:
		return 5
	default:
		return g.Priority
	}
}

// PeriodKey formats the cache period for an instant, e.g. "2025-03".
func PeriodKey(t time.Time) string {
	return t.Format("2006-01")
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
