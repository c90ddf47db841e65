package forecast

import (
	"math"
	"sort"
	"time"

	"fincast/internal/core"
	"fincast/internal/stats"
)

// BudgetConfig tunes the adaptive budget projector.
type BudgetConfig struct {
	// EMAAlpha is the smoothing factor of the recent-spend average (default: 0.3)
	EMAAlpha float64

	// Weights blends median, EMA and pace in that order (default: 0.5, 0.3, 0.2)
	Weights [3]float64

	// MedianMonths is the number of completed months in the median (default: 3)
	MedianMonths int

	// EMAWindowDays is the look-back of the daily EMA series (default: 30)
	EMAWindowDays int

	// MaxReductionPct caps a suggested cut as a share of projected spend (default: 25)
	MaxReductionPct float64

	// FixedCategories overrides core.DefaultFixedCategories when non-empty
	FixedCategories []string
}

// DefaultBudgetConfig returns the documented defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		EMAAlpha:        0.3,
		Weights:         [3]float64{0.5, 0.3, 0.2},
		MedianMonths:    3,
		EMAWindowDays:   30,
		MaxReductionPct: 25,
	}
}

// AdaptiveBudgetProjector blends long-run, recent and current-pace spend
// into a per-category budget for discretionary categories.
type AdaptiveBudgetProjector struct {
	cfg        BudgetConfig
	classifier core.CategoryClassifier
}

func NewAdaptiveBudgetProjector(cfg BudgetConfig) AdaptiveBudgetProjector {
	if cfg.MedianMonths < 1 {
		cfg.MedianMonths = 3
	}
	if cfg.EMAWindowDays < 1 {
		cfg.EMAWindowDays = 30
	}
	return AdaptiveBudgetProjector{
		cfg:        cfg,
		classifier: core.NewCategoryClassifier(cfg.FixedCategories),
	}
}

// IsFixed reports whether a category is excluded from budgets and cuts.
func (p AdaptiveBudgetProjector) IsFixed(category string) bool {
	return p.classifier.IsFixed(category)
}

// Project returns one projection per discretionary category, sorted by name.
func (p AdaptiveBudgetProjector) Project(fc core.FinancialContext, weighted map[string][]WeightedObservation) []core.BudgetProjection {
	asOf := fc.AsOf()
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	daysInMonth := float64(core.DaysInMonth(asOf))
	elapsed := float64(fc.DayOfMonthElapsed())

	cats := make([]string, 0, len(weighted))
	for cat := range weighted {
		if !p.IsFixed(cat) {
			cats = append(cats, cat)
		}
	}
	sort.Strings(cats)

	out := make([]core.BudgetProjection, 0, len(cats))
	for _, cat := range cats {
		obs := weighted[cat]

		var spentSoFar float64
		for _, o := range obs {
			if !o.Timestamp.Before(monthStart) && !o.Timestamp.After(asOf) {
				spentSoFar += o.Amount
			}
		}

		median := p.trailingMonthMedian(obs, monthStart)
		ema := p.recentEMA(obs, asOf) * daysInMonth
		pace := spentSoFar * daysInMonth / elapsed

		w := p.cfg.Weights
		budget := w[0]*median + w[1]*ema + w[2]*pace
		remaining := budget - spentSoFar

		out = append(out, core.BudgetProjection{
			Category:          cat,
			AdaptiveBudget:    budget,
			HistoricalMedian:  median,
			RecentEMA:         ema,
			PaceProjection:    pace,
			ActualSpendSoFar:  spentSoFar,
			BudgetRemaining:   remaining,
			IsOverBudget:      remaining < 0,
			WeightedHistSpend: WeightedSum(obs),
		})
	}
	return out
}

// trailingMonthMedian is the median of weighted monthly totals over the
// completed months before monthStart. Months before the category's first
// observation are not counted.
func (p AdaptiveBudgetProjector) trailingMonthMedian(obs []WeightedObservation, monthStart time.Time) float64 {
	if len(obs) == 0 {
		return 0
	}
	first := obs[0].Timestamp

	totals := make([]float64, 0, p.cfg.MedianMonths)
	for m := 1; m <= p.cfg.MedianMonths; m++ {
		start := monthStart.AddDate(0, -m, 0)
		end := start.AddDate(0, 1, 0)
		if !first.Before(end) {
			continue
		}
		var total float64
		for _, o := range obs {
			if !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
				total += o.Amount * o.Weight
			}
		}
		totals = append(totals, total)
	}
	if len(totals) == 0 {
		return 0
	}
	return stats.Median(totals)
}

// recentEMA is the EMA of weighted daily spend over the trailing window,
// oldest day first.
func (p AdaptiveBudgetProjector) recentEMA(obs []WeightedObservation, asOf time.Time) float64 {
	days := p.cfg.EMAWindowDays
	daily := make([]float64, days)
	seen := false
	for _, o := range obs {
		if o.Timestamp.After(asOf) {
			continue
		}
		age := int(asOf.Sub(o.Timestamp) / (24 * time.Hour))
		if age >= days {
			continue
		}
		daily[days-1-age] += o.Amount * o.Weight
		seen = true
	}
	if !seen {
		return 0
	}
	return stats.EMA(daily, p.cfg.EMAAlpha)
}

// SavingsOpportunities suggests cuts for categories projected to exceed
// their adaptive budget, largest first.
func (p AdaptiveBudgetProjector) SavingsOpportunities(budgets []core.BudgetProjection) []core.SavingsOpportunity {
	out := make([]core.SavingsOpportunity, 0)
	for _, b := range budgets {
		if p.IsFixed(b.Category) || b.PaceProjection <= b.AdaptiveBudget {
			continue
		}
		reduction := math.Min(b.PaceProjection-b.AdaptiveBudget, p.cfg.MaxReductionPct/100*b.PaceProjection)
		if reduction <= 0 {
			continue
		}
		out = append(out, core.SavingsOpportunity{
			Category:           b.Category,
			ProjectedSpend:     b.PaceProjection,
			AdaptiveBudget:     b.AdaptiveBudget,
			SuggestedReduction: reduction,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuggestedReduction != out[j].SuggestedReduction {
			return out[i].SuggestedReduction > out[j].SuggestedReduction
		}
		return out[i].Category < out[j].Category
	})
	return out
}
