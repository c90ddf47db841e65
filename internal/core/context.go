package core

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxExpenseMonths is the number of trailing months the forecast looks at.
const MaxExpenseMonths = 6

// ContextParams is the raw input a FinancialContext is built from.
type ContextParams struct {
	UserID            string    `validate:"required"`
	AsOf              time.Time `validate:"required"`
	MonthlyIncome     float64
	MonthlyExpenses   []float64
	IncomeStability   float64
	LiquidBalance     float64
	CurrentMonthSpend float64
	DayOfMonthElapsed int `validate:"required"`
	CategoryHistories map[string][]CategoryObservation
}

// FinancialContext is an immutable per-computation snapshot of a user's
// finances. Accessors return copies.
type FinancialContext struct {
	userID            string
	asOf              time.Time
	monthlyIncome     float64
	monthlyExpenses   []float64
	incomeStability   float64
	liquidBalance     float64
	currentMonthSpend float64
	dayElapsed        int
	histories         map[string][]CategoryObservation
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewFinancialContext normalizes p at the boundary and validates required
// fields. Missing fields yield a *ValidationError naming the field.
func NewFinancialContext(p ContextParams) (FinancialContext, error) {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return FinancialContext{}, &ValidationError{Field: fe.Field(), Reason: "is " + fe.Tag()}
		}
		return FinancialContext{}, &ValidationError{Field: "params", Reason: err.Error()}
	}

	fc := FinancialContext{
		userID:            strings.TrimSpace(p.UserID),
		asOf:              p.AsOf,
		monthlyIncome:     nonNegative(p.MonthlyIncome),
		incomeStability:   clamp01(p.IncomeStability),
		liquidBalance:     finiteOrZero(p.LiquidBalance),
		currentMonthSpend: nonNegative(p.CurrentMonthSpend),
		dayElapsed:        p.DayOfMonthElapsed,
	}
	if fc.userID == "" {
		return FinancialContext{}, &ValidationError{Field: "UserID", Reason: "is blank"}
	}
	if fc.dayElapsed < 1 {
		return FinancialContext{}, &ValidationError{Field: "DayOfMonthElapsed", Reason: "must be at least 1"}
	}
	if dim := DaysInMonth(p.AsOf); fc.dayElapsed > dim {
		fc.dayElapsed = dim
	}

	expenses := p.MonthlyExpenses
	if len(expenses) > MaxExpenseMonths {
		expenses = expenses[len(expenses)-MaxExpenseMonths:]
	}
	fc.monthlyExpenses = make([]float64, len(expenses))
	for i, v := range expenses {
		fc.monthlyExpenses[i] = nonNegative(v)
	}

	fc.histories = make(map[string][]CategoryObservation, len(p.CategoryHistories))
	for cat, obs := range p.CategoryHistories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		clean := make([]CategoryObservation, 0, len(obs))
		for _, o := range obs {
			if o.Timestamp.IsZero() || math.IsNaN(o.Amount) || math.IsInf(o.Amount, 0) || o.Amount < 0 {
				continue
			}
			clean = append(clean, o)
		}
		sort.SliceStable(clean, func(i, j int) bool { return clean[i].Timestamp.Before(clean[j].Timestamp) })
		fc.histories[cat] = append(fc.histories[cat], clean...)
	}

	return fc, nil
}

func (fc FinancialContext) UserID() string { return fc.userID }

func (fc FinancialContext) AsOf() time.Time { return fc.asOf }

func (fc FinancialContext) MonthlyIncome() float64 { return fc.monthlyIncome }

func (fc FinancialContext) IncomeStability() float64 { return fc.incomeStability }

func (fc FinancialContext) LiquidBalance() float64 { return fc.liquidBalance }

func (fc FinancialContext) CurrentMonthSpend() float64 { return fc.currentMonthSpend }

func (fc FinancialContext) DayOfMonthElapsed() int { return fc.dayElapsed }

// MonthlyExpenses returns the trailing monthly totals, oldest first. Zero
// means no data for that month.
func (fc FinancialContext) MonthlyExpenses() []float64 {
	return append([]float64(nil), fc.monthlyExpenses...)
}

// Categories returns the category names in sorted order.
func (fc FinancialContext) Categories() []string {
	out := make([]string, 0, len(fc.histories))
	for c := range fc.histories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoryHistory returns a chronological copy of a category's observations.
func (fc FinancialContext) CategoryHistory(category string) []CategoryObservation {
	return append([]CategoryObservation(nil), fc.histories[category]...)
}

// Period is the cache period key of the context.
func (fc FinancialContext) Period() string {
	return PeriodKey(fc.asOf)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
