// Package forecast turns a FinancialContext into a near-term expense and
// surplus forecast and per-category adaptive budgets.
//
// This file holds the IQR outlier filter. Rare large purchases keep a
// reduced weight instead of being dropped so they still nudge forecasts.
package forecast

import (
	"fincast/internal/core"
	"fincast/internal/stats"
)

// OutlierConfig tunes the IQR fence.
type OutlierConfig struct {
	// IQRMultiplier is k in [Q1 - k*IQR, Q3 + k*IQR] (default: 2.0)
	IQRMultiplier float64

	// OutlierWeight is the weight given to flagged observations (default: 0.25)
	OutlierWeight float64

	// MinSamples is the smallest series that is ever flagged (default: 4)
	MinSamples int
}

// DefaultOutlierConfig returns the documented defaults.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		IQRMultiplier: 2.0,
		OutlierWeight: 0.25,
		MinSamples:    4,
	}
}

// WeightedObservation is a category observation with its outlier weight.
type WeightedObservation struct {
	core.CategoryObservation
	Weight  float64
	Outlier bool
}

// OutlierFilter flags and down-weights anomalous values.
type OutlierFilter struct {
	cfg OutlierConfig
}

func NewOutlierFilter(cfg OutlierConfig) OutlierFilter {
	if cfg.MinSamples < 1 {
		cfg.MinSamples = DefaultOutlierConfig().MinSamples
	}
	if cfg.OutlierWeight < 0 {
		cfg.OutlierWeight = 0
	}
	return OutlierFilter{cfg: cfg}
}

// Weights returns one weight per value: OutlierWeight outside the fence,
// 1 otherwise. Series shorter than MinSamples are never flagged.
func (f OutlierFilter) Weights(values []float64) []float64 {
	weights := make([]float64, len(values))
	for i := range weights {
		weights[i] = 1
	}
	if len(values) < f.cfg.MinSamples {
		return weights
	}

	q1, q3 := stats.Quartiles(values)
	iqr := q3 - q1
	lower := q1 - f.cfg.IQRMultiplier*iqr
	upper := q3 + f.cfg.IQRMultiplier*iqr
	for i, v := range values {
		if v < lower || v > upper {
			weights[i] = f.cfg.OutlierWeight
		}
	}
	return weights
}

// FilterCategory weighs one category's observations.
func (f OutlierFilter) FilterCategory(obs []core.CategoryObservation) []WeightedObservation {
	amounts := make([]float64, len(obs))
	for i, o := range obs {
		amounts[i] = o.Amount
	}
	weights := f.Weights(amounts)

	out := make([]WeightedObservation, len(obs))
	for i, o := range obs {
		out[i] = WeightedObservation{
			CategoryObservation: o,
			Weight:              weights[i],
			Outlier:             weights[i] != 1,
		}
	}
	return out
}

// Apply weighs every category of the context.
func (f OutlierFilter) Apply(fc core.FinancialContext) map[string][]WeightedObservation {
	out := make(map[string][]WeightedObservation)
	for _, cat := range fc.Categories() {
		out[cat] = f.FilterCategory(fc.CategoryHistory(cat))
	}
	return out
}

// WeightedSum is the outlier-weighted spend: sum of amount*weight.
func WeightedSum(obs []WeightedObservation) float64 {
	var total float64
	for _, o := range obs {
		total += o.Amount * o.Weight
	}
	return total
}

// WeightedSpend returns the outlier-weighted spend per category.
func WeightedSpend(weighted map[string][]WeightedObservation) map[string]float64 {
	out := make(map[string]float64, len(weighted))
	for cat, obs := range weighted {
		out[cat] = WeightedSum(obs)
	}
	return out
}
