package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fincast.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	ds := Dataset{
		Users: []UserRecord{
			{ID: "u-1", MonthlyIncome: 50000, IncomeStability: 0.9, LiquidBalance: 20000},
			{ID: "u-2", MonthlyIncome: 3000, IncomeStability: 1},
		},
		Transactions: []TransactionRecord{
			{ID: "t-old", UserID: "u-1", Category: "Groceries", Amount: 999, OccurredAt: day(2024, time.August, 5)},
			{UserID: "u-1", Category: "Groceries", Amount: 1000, OccurredAt: day(2025, time.January, 5)},
			{UserID: "u-1", Category: "Dining", Amount: 400, OccurredAt: day(2025, time.January, 20)},
			{UserID: "u-1", Category: "groceries", Amount: 1200, OccurredAt: day(2025, time.February, 10)},
			{UserID: "u-1", Category: "Dining", Amount: 300, OccurredAt: day(2025, time.March, 3)},
			{UserID: "u-1", Category: "Dining", Amount: 50, OccurredAt: day(2025, time.March, 20)},
			{UserID: "u-2", Category: "Rent", Amount: 900, OccurredAt: day(2025, time.February, 1)},
		},
		Goals: []GoalRecord{
			{UserID: "u-1", Goal: core.Goal{ID: "g-2", Priority: 2, Type: "vacation", TargetAmount: 5000}},
			{UserID: "u-1", Goal: core.Goal{ID: "g-1", Priority: 1, Type: "emergency fund", TargetAmount: 10000, CurrentAmount: 2000, RequiredMonthly: 800}},
			{UserID: "u-1", Goal: core.Goal{ID: "g-3", Priority: 3}, Inactive: true},
		},
	}
	res, err := repo.Import(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 7, res.Transactions)
	assert.Equal(t, 3, res.Goals)
	assert.Equal(t, []string{"u-1", "u-2"}, res.Touched)
}

func TestSQLiteRepository_LoadFinancialContext(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()
	asOf := day(2025, time.March, 15)

	fc, err := repo.LoadFinancialContext(ctx, "u-1", asOf)
	require.NoError(t, err)

	assert.Equal(t, "u-1", fc.UserID())
	assert.Equal(t, 50000.0, fc.MonthlyIncome())
	assert.Equal(t, 0.9, fc.IncomeStability())
	assert.Equal(t, 15, fc.DayOfMonthElapsed())
	// Sep..Feb; the August 2024 row is outside the window
	assert.Equal(t, []float64{0, 0, 0, 0, 1400, 1200}, fc.MonthlyExpenses())
	assert.Equal(t, 300.0, fc.CurrentMonthSpend(), "spend after asOf is excluded")
	assert.Equal(t, []string{"dining", "groceries"}, fc.Categories())
	assert.Len(t, fc.CategoryHistory("groceries"), 2)
	assert.Equal(t, "2025-03", fc.Period())
}

func TestSQLiteRepository_UserNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LoadFinancialContext(context.Background(), "ghost", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUserNotFound))
}

func TestSQLiteRepository_ListActiveGoals(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)

	goals, err := repo.ListActiveGoals(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "g-1", goals[0].ID)
	assert.Equal(t, 800.0, goals[0].RequiredMonthly)
	assert.Equal(t, "emergency fund", goals[0].Type)
	assert.Equal(t, "g-2", goals[1].ID)

	none, err := repo.ListActiveGoals(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRepository_ListUserIDs(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)

	ids, err := repo.ListUserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1", "u-2"}, ids)
}

func TestSQLiteRepository_Snapshots(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	_, err := repo.GetSnapshot(ctx, "u-1", "2025-03")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	snap := core.Snapshot{
		UserID:     "u-1",
		Period:     "2025-03",
		Forecast:   core.ForecastResult{PredictedSurplus: 19600, Method: "trimmed_mean"},
		Shock:      core.ShockSimulationResult{ResilienceScore: 62, ResilienceLabel: core.LabelModerate},
		ComputedAt: time.Date(2025, 3, 15, 2, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveSnapshot(ctx, snap))

	snap.Shock.ResilienceScore = 70
	require.NoError(t, repo.SaveSnapshot(ctx, snap), "saving the same period overwrites")

	got, err := repo.GetSnapshot(ctx, "u-1", "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 70, got.Shock.ResilienceScore)
	assert.Equal(t, 19600.0, got.Forecast.PredictedSurplus)
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))
}

func TestSQLiteRepository_ImportRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Import(context.Background(), Dataset{
		Transactions: []TransactionRecord{{UserID: "u-1", Amount: 10}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dataset")
}

func TestSQLiteRepository_ImportUnknownUserRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Import(ctx, Dataset{
		Users: []UserRecord{{ID: "u-1", MonthlyIncome: 100}},
		Transactions: []TransactionRecord{
			{UserID: "nobody", Category: "misc", Amount: 1, OccurredAt: day(2025, time.March, 1)},
		},
	})
	require.Error(t, err, "foreign key violation")

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMonthIndex(t *testing.T) {
	start := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, monthIndex(start, day(2024, time.September, 30)))
	assert.Equal(t, 4, monthIndex(start, day(2025, time.January, 1)))
	assert.Equal(t, -1, monthIndex(start, day(2024, time.August, 31)))
}
