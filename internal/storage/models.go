package storage

// Row types of the SQLite schema. Timestamps are RFC3339 UTC text so they
// sort lexicographically.

type User struct {
	ID              string
	MonthlyIncome   float64
	IncomeStability float64
	LiquidBalance   float64
}

type Transaction struct {
	ID         string
	UserID     string
	Category   string
	Amount     float64
	OccurredAt string
}

type Goal struct {
	ID              string
	UserID          string
	GoalType        string
	TargetAmount    float64
	CurrentAmount   float64
	Priority        int64
	RequiredMonthly float64
	Active          bool
}

type ForecastSnapshot struct {
	UserID          string
	Period          string
	ResilienceScore int64
	Payload         string
	ComputedAt      string
}
