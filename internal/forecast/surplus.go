package forecast

import (
	"math"

	"fincast/internal/core"
	"fincast/internal/stats"
)

// Forecast methods reported in ForecastResult.Method.
const (
	MethodNoHistory   = "no_history"
	MethodSingleMonth = "single_month"
	MethodTrimmedMean = "trimmed_mean"
)

// SurplusConfig tunes the surplus forecaster.
type SurplusConfig struct {
	// CIZScore is the z value of the surplus confidence interval (default: 1.64, 90%)
	CIZScore float64

	// TrimMinMonths is the number of non-zero months needed before the
	// highest month is dropped (default: 4)
	TrimMinMonths int

	// NoHistoryExpenseRatio and NoHistoryStdRatio are the fractions of income
	// assumed for expenses and their spread without history (default: 0.70, 0.10)
	NoHistoryExpenseRatio float64
	NoHistoryStdRatio     float64

	// SingleMonthStdRatio is the spread assumed from one month of data (default: 0.15)
	SingleMonthStdRatio float64
}

// DefaultSurplusConfig returns the documented defaults.
func DefaultSurplusConfig() SurplusConfig {
	return SurplusConfig{
		CIZScore:              1.64,
		TrimMinMonths:         4,
		NoHistoryExpenseRatio: 0.70,
		NoHistoryStdRatio:     0.10,
		SingleMonthStdRatio:   0.15,
	}
}

const (
	stableStdFactor         = 0.5
	incomeUncertaintyFactor = 0.30
	minSurplusStdRatio      = 0.05
)

// SurplusForecaster produces a robust trimmed-mean expense forecast.
type SurplusForecaster struct {
	cfg SurplusConfig
}

func NewSurplusForecaster(cfg SurplusConfig) SurplusForecaster {
	return SurplusForecaster{cfg: cfg}
}

// Forecast computes the expense and surplus forecast at full precision.
// Callers round at the output boundary.
func (f SurplusForecaster) Forecast(fc core.FinancialContext) core.ForecastResult {
	income := fc.MonthlyIncome()

	months := make([]float64, 0, core.MaxExpenseMonths)
	for _, v := range fc.MonthlyExpenses() {
		if v > 0 {
			months = append(months, v)
		}
	}

	res := core.ForecastResult{MonthsUsed: len(months)}
	switch len(months) {
	case 0:
		res.Method = MethodNoHistory
		res.PredictedExpenses = f.cfg.NoHistoryExpenseRatio * income
		res.ExpenseStd = f.cfg.NoHistoryStdRatio * income
	case 1:
		res.Method = MethodSingleMonth
		res.PredictedExpenses = months[0]
		res.ExpenseStd = f.cfg.SingleMonthStdRatio * months[0]
	default:
		res.Method = MethodTrimmedMean
		res.PredictedExpenses = stats.TrimmedMean(months, f.cfg.TrimMinMonths)
		res.ExpenseStd = stats.PopStdDev(months)
	}

	rawSurplus := math.Max(income-res.PredictedExpenses, 0)
	effectiveIncome := income * fc.IncomeStability()
	incomeUncertainty := income * (1 - fc.IncomeStability()) * incomeUncertaintyFactor

	res.PredictedSurplus = rawSurplus
	res.StableSurplus = math.Max(effectiveIncome-(res.PredictedExpenses+stableStdFactor*res.ExpenseStd), 0)
	res.SurplusStd = math.Max(res.ExpenseStd+incomeUncertainty, minSurplusStdRatio*rawSurplus)
	res.ConfidenceLower = math.Max(rawSurplus-f.cfg.CIZScore*res.SurplusStd, 0)
	res.ConfidenceUpper = rawSurplus + f.cfg.CIZScore*res.SurplusStd

	return res
}
