package sheets

import (
	"context"

	"fincast/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter appends one row per report and returns a reference to
	// the written range.
	ReportExporter interface {
		ExportReports(ctx context.Context, reports []core.Report) (ref string, err error)
	}
)

// Header is the column layout of an exported report row.
var Header = []string{
	"Period",
	"User",
	"Computed At",
	"Predicted Expenses",
	"Predicted Surplus",
	"Stable Surplus",
	"Shock Capacity",
	"Risk Threshold",
	"Failure Threshold",
	"Resilience Score",
	"Resilience Label",
	"Depletion Risk",
	"Allocation Strategy",
	"Allocated",
}

// Row flattens a report into the Header columns. Amounts are rounded to
// two decimals.
func Row(r core.Report) []any {
	allocated := r.Allocation.Capacity - r.Allocation.Unallocated
	if allocated < 0 {
		allocated = 0
	}
	return []any{
		r.Period,
		r.UserID,
		r.ComputedAt.UTC().Format("2006-01-02 15:04:05"),
		core.Round2(r.Forecast.PredictedExpenses),
		core.Round2(r.Forecast.PredictedSurplus),
		core.Round2(r.Forecast.StableSurplus),
		core.Round2(r.Shock.ShockCapacity),
		core.Round2(r.Shock.RiskThreshold),
		core.Round2(r.Shock.FailureThreshold),
		r.Shock.ResilienceScore,
		string(r.Shock.ResilienceLabel),
		r.Shock.DepletionRiskFlag,
		r.Allocation.Strategy,
		core.Round2(allocated),
	}
}
