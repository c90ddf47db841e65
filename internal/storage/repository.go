// Package storage is the SQLite persistence collaborator: it builds
// FinancialContext snapshots and goal lists from stored transactions and
// keeps computed forecast snapshots.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fincast/internal/core"
	"fincast/internal/log"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned when no snapshot is stored for a period.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// historyMonths is how far back LoadFinancialContext reads transactions.
const historyMonths = core.MaxExpenseMonths

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn(dbPath)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// LoadFinancialContext reads everything the engine needs for userID in one
// pass: the user row and the transactions of the trailing six completed
// months plus the current month up to asOf.
// Returns an error wrapping core.ErrUserNotFound for unknown users.
func (r *SQLiteRepository) LoadFinancialContext(ctx context.Context, userID string, asOf time.Time) (core.FinancialContext, error) {
	asOf = asOf.UTC()
	user, err := r.queries.GetUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinancialContext{}, fmt.Errorf("load user %s: %w", userID, core.ErrUserNotFound)
	}
	if err != nil {
		return core.FinancialContext{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := monthStart.AddDate(0, -historyMonths, 0)
	txs, err := r.queries.ListTransactionsBetween(ctx, ListTransactionsBetweenParams{
		UserID: userID,
		From:   formatTime(from),
		To:     formatTime(asOf),
	})
	if err != nil {
		return core.FinancialContext{}, fmt.Errorf("list transactions for %s: %w", userID, err)
	}

	monthly := make([]float64, historyMonths)
	var currentSpend float64
	histories := make(map[string][]core.CategoryObservation)
	for _, tx := range txs {
		at, err := time.Parse(time.RFC3339, tx.OccurredAt)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping transaction with bad timestamp",
				log.FieldUserID, userID, "transaction_id", tx.ID, log.FieldError, err)
			continue
		}
		at = at.UTC()

		if !at.Before(monthStart) {
			currentSpend += tx.Amount
		} else if idx := monthIndex(from, at); idx >= 0 && idx < historyMonths {
			monthly[idx] += tx.Amount
		}

		cat := strings.ToLower(strings.TrimSpace(tx.Category))
		histories[cat] = append(histories[cat], core.CategoryObservation{Amount: tx.Amount, Timestamp: at})
	}

	fc, err := core.NewFinancialContext(core.ContextParams{
		UserID:            user.ID,
		AsOf:              asOf,
		MonthlyIncome:     user.MonthlyIncome,
		MonthlyExpenses:   monthly,
		IncomeStability:   user.IncomeStability,
		LiquidBalance:     user.LiquidBalance,
		CurrentMonthSpend: currentSpend,
		DayOfMonthElapsed: asOf.Day(),
		CategoryHistories: histories,
	})
	if err != nil {
		return core.FinancialContext{}, fmt.Errorf("build context for %s: %w", userID, err)
	}
	return fc, nil
}

// monthIndex is the number of whole calendar months from start to t.
func monthIndex(start, t time.Time) int {
	return (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month())
}

// ListActiveGoals returns the user's active goals ordered by priority.
func (r *SQLiteRepository) ListActiveGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.queries.ListActiveGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals for %s: %w", userID, err)
	}
	goals := make([]core.Goal, len(rows))
	for i, g := range rows {
		goals[i] = core.Goal{
			ID:              g.ID,
			TargetAmount:    g.TargetAmount,
			CurrentAmount:   g.CurrentAmount,
			Priority:        int(g.Priority),
			Type:            g.GoalType,
			RequiredMonthly: g.RequiredMonthly,
		}
	}
	return goals, nil
}

// ListUserIDs returns every known user id in sorted order.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// SaveSnapshot stores s, replacing the snapshot of the same period.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s core.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = r.queries.UpsertSnapshot(ctx, ForecastSnapshot{
		UserID:          s.UserID,
		Period:          s.Period,
		ResilienceScore: int64(s.Shock.ResilienceScore),
		Payload:         string(payload),
		ComputedAt:      formatTime(s.ComputedAt),
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", s.UserID, s.Period, err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldUserID, s.UserID,
		log.FieldPeriod, s.Period,
		"resilience_score", s.Shock.ResilienceScore)
	return nil
}

// GetSnapshot returns the stored snapshot for a user period.
// Returns an error wrapping ErrSnapshotNotFound when there is none.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, userID, period string) (core.Snapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, userID, period)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("snapshot %s/%s: %w", userID, period, ErrSnapshotNotFound)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get snapshot %s/%s: %w", userID, period, err)
	}
	var s core.Snapshot
	if err := json.Unmarshal([]byte(row.Payload), &s); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot %s/%s: %w", userID, period, err)
	}
	return s, nil
}
