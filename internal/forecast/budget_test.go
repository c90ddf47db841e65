package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/core"
)

func at(month time.Month, day int) time.Time {
	return time.Date(2025, month, day, 12, 0, 0, 0, time.UTC)
}

func budgetContext(t *testing.T) core.FinancialContext {
	t.Helper()
	fc, err := core.NewFinancialContext(core.ContextParams{
		UserID:            "u-1",
		AsOf:              at(time.March, 15),
		MonthlyIncome:     5000,
		DayOfMonthElapsed: 15,
		CategoryHistories: map[string][]core.CategoryObservation{
			"dining": {
				{Amount: 100, Timestamp: at(time.January, 10)},
				{Amount: 100, Timestamp: at(time.February, 10)},
				{Amount: 300, Timestamp: at(time.March, 5)},
				{Amount: 300, Timestamp: at(time.March, 10)},
			},
			"groceries": {
				{Amount: 1000, Timestamp: at(time.December, 15).AddDate(-1, 0, 0)},
				{Amount: 1000, Timestamp: at(time.January, 15)},
				{Amount: 1000, Timestamp: at(time.February, 15)},
				{Amount: 100, Timestamp: at(time.March, 2)},
			},
			"Rent": {
				{Amount: 1500, Timestamp: at(time.February, 1)},
				{Amount: 1500, Timestamp: at(time.March, 1)},
			},
		},
	})
	require.NoError(t, err)
	return fc
}

func project(t *testing.T) ([]core.BudgetProjection, AdaptiveBudgetProjector) {
	fc := budgetContext(t)
	weighted := NewOutlierFilter(DefaultOutlierConfig()).Apply(fc)
	p := NewAdaptiveBudgetProjector(DefaultBudgetConfig())
	return p.Project(fc, weighted), p
}

func TestAdaptiveBudgetProjector_Project(t *testing.T) {
	budgets, _ := project(t)

	require.Len(t, budgets, 2, "fixed categories are excluded")
	assert.Equal(t, "dining", budgets[0].Category)
	assert.Equal(t, "groceries", budgets[1].Category)

	dining := budgets[0]
	assert.InDelta(t, 600, dining.ActualSpendSoFar, 1e-9)
	assert.InDelta(t, 600.0*31/15, dining.PaceProjection, 1e-9)
	assert.InDelta(t, 100, dining.HistoricalMedian, 1e-9)
	assert.Greater(t, dining.RecentEMA, 0.0)
	assert.InDelta(t, 0.5*dining.HistoricalMedian+0.3*dining.RecentEMA+0.2*dining.PaceProjection, dining.AdaptiveBudget, 1e-9)
	assert.InDelta(t, dining.AdaptiveBudget-dining.ActualSpendSoFar, dining.BudgetRemaining, 1e-9)
	assert.True(t, dining.IsOverBudget)

	groceries := budgets[1]
	assert.InDelta(t, 100, groceries.ActualSpendSoFar, 1e-9)
	assert.InDelta(t, 1000, groceries.HistoricalMedian, 1e-9)
	assert.False(t, groceries.IsOverBudget)
	assert.Greater(t, groceries.BudgetRemaining, 0.0)
}

func TestAdaptiveBudgetProjector_SavingsOpportunities(t *testing.T) {
	budgets, p := project(t)

	opps := p.SavingsOpportunities(budgets)
	require.Len(t, opps, 1)
	assert.Equal(t, "dining", opps[0].Category)

	pace := 600.0 * 31 / 15
	assert.InDelta(t, 0.25*pace, opps[0].SuggestedReduction, 1e-9, "cut is capped at a quarter of projected spend")
}

func TestAdaptiveBudgetProjector_IgnoresFixedOpportunities(t *testing.T) {
	p := NewAdaptiveBudgetProjector(DefaultBudgetConfig())

	opps := p.SavingsOpportunities([]core.BudgetProjection{
		{Category: "home insurance", PaceProjection: 900, AdaptiveBudget: 100},
		{Category: "shopping", PaceProjection: 150, AdaptiveBudget: 100},
		{Category: "hobbies", PaceProjection: 80, AdaptiveBudget: 100},
	})

	require.Len(t, opps, 1)
	assert.Equal(t, "shopping", opps[0].Category)
	assert.InDelta(t, 37.5, opps[0].SuggestedReduction, 1e-9)
}

func TestAdaptiveBudgetProjector_EmptyCategory(t *testing.T) {
	fc, err := core.NewFinancialContext(core.ContextParams{
		UserID:            "u-1",
		AsOf:              at(time.March, 15),
		DayOfMonthElapsed: 15,
		CategoryHistories: map[string][]core.CategoryObservation{"travel": nil},
	})
	require.NoError(t, err)

	p := NewAdaptiveBudgetProjector(DefaultBudgetConfig())
	budgets := p.Project(fc, NewOutlierFilter(DefaultOutlierConfig()).Apply(fc))

	require.Len(t, budgets, 1)
	assert.Equal(t, core.BudgetProjection{Category: "travel"}, budgets[0])
}
