package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"fincast/internal/core"
)

// Dataset is a bulk load of users, transactions and goals, as read from a
// JSON file by the import command.
type Dataset struct {
	Users        []UserRecord        `json:"users" validate:"dive"`
	Transactions []TransactionRecord `json:"transactions" validate:"dive"`
	Goals        []GoalRecord        `json:"goals" validate:"dive"`
}

type UserRecord struct {
	ID              string  `json:"id" validate:"required"`
	MonthlyIncome   float64 `json:"monthly_income" validate:"gte=0"`
	IncomeStability float64 `json:"income_stability" validate:"gte=0,lte=1"`
	LiquidBalance   float64 `json:"liquid_balance"`
}

// TransactionRecord is one spend event. A blank ID gets a random UUID.
type TransactionRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id" validate:"required"`
	Category   string    `json:"category" validate:"required"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at" validate:"required"`
}

type GoalRecord struct {
	core.Goal
	UserID   string `json:"user_id" validate:"required"`
	Inactive bool   `json:"inactive"`
}

var datasetValidate = validator.New(validator.WithRequiredStructEnabled())

// ImportResult summarizes an import.
type ImportResult struct {
	Users        int
	Transactions int
	Goals        int
	// Touched lists the users whose data changed, in input order.
	Touched []string
}

// Import writes ds in a single transaction.
func (r *SQLiteRepository) Import(ctx context.Context, ds Dataset) (ImportResult, error) {
	var res ImportResult
	if err := datasetValidate.Struct(ds); err != nil {
		return res, fmt.Errorf("invalid dataset: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	seen := make(map[string]bool)
	touch := func(userID string) {
		if !seen[userID] {
			seen[userID] = true
			res.Touched = append(res.Touched, userID)
		}
	}

	for _, u := range ds.Users {
		id := strings.TrimSpace(u.ID)
		if err := q.UpsertUser(ctx, User{
			ID:              id,
			MonthlyIncome:   u.MonthlyIncome,
			IncomeStability: u.IncomeStability,
			LiquidBalance:   u.LiquidBalance,
		}); err != nil {
			return res, fmt.Errorf("upsert user %s: %w", id, err)
		}
		res.Users++
		touch(id)
	}

	for _, t := range ds.Transactions {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := q.InsertTransaction(ctx, Transaction{
			ID:         id,
			UserID:     t.UserID,
			Category:   t.Category,
			Amount:     t.Amount,
			OccurredAt: formatTime(t.OccurredAt),
		}); err != nil {
			return res, fmt.Errorf("insert transaction %s: %w", id, err)
		}
		res.Transactions++
		touch(t.UserID)
	}

	for _, g := range ds.Goals {
		if err := q.UpsertGoal(ctx, Goal{
			ID:              g.ID,
			UserID:          g.UserID,
			GoalType:        g.Type,
			TargetAmount:    g.TargetAmount,
			CurrentAmount:   g.CurrentAmount,
			Priority:        int64(g.ClampedPriority()),
			RequiredMonthly: g.RequiredMonthly,
			Active:          !g.Inactive,
		}); err != nil {
			return res, fmt.Errorf("upsert goal %s: %w", g.ID, err)
		}
		res.Goals++
		touch(g.UserID)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit import: %w", err)
	}
	return res, nil
}
