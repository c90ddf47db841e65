package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/core"
)

func newContext(t *testing.T, income, stability float64, expenses []float64) core.FinancialContext {
	t.Helper()
	fc, err := core.NewFinancialContext(core.ContextParams{
		UserID:            "u-1",
		AsOf:              time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		MonthlyIncome:     income,
		MonthlyExpenses:   expenses,
		IncomeStability:   stability,
		LiquidBalance:     20000,
		DayOfMonthElapsed: 15,
	})
	require.NoError(t, err)
	return fc
}

func TestSurplusForecaster_TrimmedMean(t *testing.T) {
	fc := newContext(t, 50000, 0.9, []float64{30000, 32000, 29000, 31000, 95000, 30000})

	res := NewSurplusForecaster(DefaultSurplusConfig()).Forecast(fc).Rounded()

	assert.Equal(t, MethodTrimmedMean, res.Method)
	assert.Equal(t, 6, res.MonthsUsed)
	assert.Equal(t, 30400.0, res.PredictedExpenses)
	assert.Equal(t, 19600.0, res.PredictedSurplus)
	assert.Greater(t, res.ExpenseStd, 0.0)
	assert.GreaterOrEqual(t, res.ConfidenceLower, 0.0)
	assert.LessOrEqual(t, res.ConfidenceLower, res.PredictedSurplus)
	assert.GreaterOrEqual(t, res.ConfidenceUpper, res.PredictedSurplus)
	assert.LessOrEqual(t, res.StableSurplus, res.PredictedSurplus)
}

func TestSurplusForecaster_Fallbacks(t *testing.T) {
	f := NewSurplusForecaster(DefaultSurplusConfig())

	tests := []struct {
		name     string
		expenses []float64
		want     core.ForecastResult
	}{
		{
			name:     "no history",
			expenses: []float64{0, 0, 0},
			want: core.ForecastResult{
				Method:            MethodNoHistory,
				PredictedExpenses: 35000,
				ExpenseStd:        5000,
				PredictedSurplus:  15000,
				StableSurplus:     7500,
				SurplusStd:        6500,
				ConfidenceLower:   4340,
				ConfidenceUpper:   25660,
			},
		},
		{
			name:     "single month",
			expenses: []float64{0, 0, 40000},
			want: core.ForecastResult{
				Method:            MethodSingleMonth,
				MonthsUsed:        1,
				PredictedExpenses: 40000,
				ExpenseStd:        6000,
				PredictedSurplus:  10000,
				StableSurplus:     2000,
				SurplusStd:        7500,
				ConfidenceLower:   0,
				ConfidenceUpper:   22300,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Forecast(newContext(t, 50000, 0.9, tt.expenses)).Rounded()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSurplusForecaster_ExpensesAboveIncome(t *testing.T) {
	fc := newContext(t, 1000, 1, []float64{3000, 3200, 2900})

	res := NewSurplusForecaster(DefaultSurplusConfig()).Forecast(fc)

	assert.Equal(t, 0.0, res.PredictedSurplus)
	assert.Equal(t, 0.0, res.StableSurplus)
	assert.Equal(t, 0.0, res.ConfidenceLower)
	assert.Greater(t, res.SurplusStd, 0.0)
}
