// Package core provides the typed domain records shared by every stage of
// the forecasting engine.
//
// This file holds the output-boundary rounding helpers. Intermediate values
// stay at full float precision; only the values handed to callers are
// rounded to two decimal places.
package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds v half-away-from-zero to two decimal places.
//
// Examples:
//
//	Round2(19600.004) -> 19600
//	Round2(12.345)    -> 12.35
//	Round2(-0.005)    -> -0.01
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Rounded returns the forecast with every monetary field rounded.
func (f ForecastResult) Rounded() ForecastResult {
	f.PredictedExpenses = Round2(f.PredictedExpenses)
	f.ExpenseStd = Round2(f.ExpenseStd)
	f.PredictedSurplus = Round2(f.PredictedSurplus)
	f.StableSurplus = Round2(f.StableSurplus)
	f.SurplusStd = Round2(f.SurplusStd)
	f.ConfidenceLower = Round2(f.ConfidenceLower)
	f.ConfidenceUpper = Round2(f.ConfidenceUpper)
	return f
}

// Rounded returns the simulation result with every monetary field rounded.
func (r ShockSimulationResult) Rounded() ShockSimulationResult {
	r.ShockCapacity = Round2(r.ShockCapacity)
	r.SafeShockLimit = Round2(r.SafeShockLimit)
	r.RiskThreshold = Round2(r.RiskThreshold)
	r.FailureThreshold = Round2(r.FailureThreshold)
	r.ConfidenceBandLow = Round2(r.ConfidenceBandLow)
	r.ConfidenceBandHigh = Round2(r.ConfidenceBandHigh)
	r.ProjectedEndBalance = Round2(r.ProjectedEndBalance)
	r.LookaheadBalance = Round2(r.LookaheadBalance)
	if r.ExpensePercentiles != nil {
		pct := make(map[string]float64, len(r.ExpensePercentiles))
		for k, v := range r.ExpensePercentiles {
			pct[k] = Round2(v)
		}
		r.ExpensePercentiles = pct
	}
	return r
}

// Rounded returns the projection with every monetary field rounded.
func (b BudgetProjection) Rounded() BudgetProjection {
	b.AdaptiveBudget = Round2(b.AdaptiveBudget)
	b.HistoricalMedian = Round2(b.HistoricalMedian)
	b.RecentEMA = Round2(b.RecentEMA)
	b.PaceProjection = Round2(b.PaceProjection)
	b.ActualSpendSoFar = Round2(b.ActualSpendSoFar)
	b.BudgetRemaining = Round2(b.BudgetRemaining)
	b.WeightedHistSpend = Round2(b.WeightedHistSpend)
	return b
}

// Rounded returns the opportunity with every monetary field rounded.
func (o SavingsOpportunity) Rounded() SavingsOpportunity {
	o.ProjectedSpend = Round2(o.ProjectedSpend)
	o.AdaptiveBudget = Round2(o.AdaptiveBudget)
	o.SuggestedReduction = Round2(o.SuggestedReduction)
	return o
}

// Rounded rounds the absolute amounts. Fractions are left untouched so they
// still sum to at most one.
func (p AllocationPlan) Rounded() AllocationPlan {
	p.Capacity = Round2(p.Capacity)
	p.Unallocated = Round2(p.Unallocated)
	if p.Amounts != nil {
		amounts := make(map[string]float64, len(p.Amounts))
		for k, v := range p.Amounts {
			amounts[k] = Round2(v)
		}
		p.Amounts = amounts
	}
	return p
}

// Rounded returns the snapshot with its forecast and shock result rounded.
func (s Snapshot) Rounded() Snapshot {
	s.Forecast = s.Forecast.Rounded()
	s.Shock = s.Shock.Rounded()
	return s
}

// Rounded returns a copy of the report with every monetary field rounded.
func (r Report) Rounded() Report {
	r.Snapshot = r.Snapshot.Rounded()
	budgets := make([]BudgetProjection, len(r.Budgets))
	for i, b := range r.Budgets {
		budgets[i] = b.Rounded()
	}
	r.Budgets = budgets
	opps := make([]SavingsOpportunity, len(r.Opportunities))
	for i, o := range r.Opportunities {
		opps[i] = o.Rounded()
	}
	r.Opportunities = opps
	r.Allocation = r.Allocation.Rounded()
	return r
}
