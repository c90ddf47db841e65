// Package simulation runs the Monte Carlo expense-shock simulation.
package simulation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"fincast/internal/core"
	"fincast/internal/forecast"
	"fincast/internal/stats"
)

// Distribution names the source of the fitted expense distribution.
type Distribution string

const (
	// DistributionHistory is fitted on at least two months of expenses.
	DistributionHistory Distribution = "history"
	// DistributionHeuristic uses the forecaster's fallback moments.
	DistributionHeuristic Distribution = "heuristic"
	// DistributionDegenerate has no positive mean; every draw equals zero.
	DistributionDegenerate Distribution = "degenerate"
)

const (
	minHistoryMonths = 2
	relVarianceFloor = 1e-4
	absVarianceFloor = 1e-6
)

// GammaFit holds method-of-moments gamma parameters for next-month expense.
type GammaFit struct {
	Shape    float64
	Scale    float64
	Mean     float64
	Variance float64
	Source   Distribution
}

// Available reports whether the fit can be sampled as a gamma. A degenerate
// fit draws a constant instead.
func (g GammaFit) Available() bool {
	return g.Source != DistributionDegenerate
}

// FitGamma derives shape and scale from a mean and variance. The variance is
// floored to keep the shape finite.
func FitGamma(mean, variance float64, source Distribution) GammaFit {
	if math.IsNaN(mean) || mean <= 0 {
		return GammaFit{Source: DistributionDegenerate}
	}
	floor := math.Max(mean*mean*relVarianceFloor, absVarianceFloor)
	if math.IsNaN(variance) || variance < floor {
		variance = floor
	}
	return GammaFit{
		Shape:    mean * mean / variance,
		Scale:    variance / mean,
		Mean:     mean,
		Variance: variance,
		Source:   source,
	}
}

// FitExpenses fits the aggregate monthly-expense history, outlier weighted.
// With fewer than two months of data it falls back to the forecast's
// expected expense and spread.
func FitExpenses(fc core.FinancialContext, forecastRes core.ForecastResult, filter forecast.OutlierFilter) GammaFit {
	months := make([]float64, 0, core.MaxExpenseMonths)
	for _, v := range fc.MonthlyExpenses() {
		if v > 0 {
			months = append(months, v)
		}
	}
	if len(months) < minHistoryMonths {
		return FitGamma(forecastRes.PredictedExpenses, forecastRes.ExpenseStd*forecastRes.ExpenseStd, DistributionHeuristic)
	}
	mean, variance := stats.WeightedMeanVariance(months, filter.Weights(months))
	return FitGamma(mean, variance, DistributionHistory)
}

// sampler returns a draw function bound to src.
func (g GammaFit) sampler(src rand.Source) func() float64 {
	if !g.Available() {
		return func() float64 { return 0 }
	}
	d := distuv.Gamma{Alpha: g.Shape, Beta: 1 / g.Scale, Src: src}
	return d.Rand
}
