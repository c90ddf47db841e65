package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getUser = `-- name: GetUser :one
SELECT id, monthly_income, income_stability, liquid_balance
FROM users
WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var u User
	err := row.Scan(&u.ID, &u.MonthlyIncome, &u.IncomeStability, &u.LiquidBalance)
	return u, err
}

const listUserIDs = `-- name: ListUserIDs :many
SELECT id FROM users ORDER BY id
`

func (q *Queries) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const upsertUser = `-- name: UpsertUser :exec
INSERT INTO users (id, monthly_income, income_stability, liquid_balance)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    monthly_income = excluded.monthly_income,
    income_stability = excluded.income_stability,
    liquid_balance = excluded.liquid_balance
`

func (q *Queries) UpsertUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx, upsertUser, u.ID, u.MonthlyIncome, u.IncomeStability, u.LiquidBalance)
	return err
}

type ListTransactionsBetweenParams struct {
	UserID string
	From   string
	To     string
}

const listTransactionsBetween = `-- name: ListTransactionsBetween :many
SELECT id, user_id, category, amount, occurred_at
FROM transactions
WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
ORDER BY occurred_at, id
`

func (q *Queries) ListTransactionsBetween(ctx context.Context, arg ListTransactionsBetweenParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsBetween, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Category, &t.Amount, &t.OccurredAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (id, user_id, category, amount, occurred_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction, t.ID, t.UserID, t.Category, t.Amount, t.OccurredAt)
	return err
}

const listActiveGoals = `-- name: ListActiveGoals :many
SELECT id, user_id, goal_type, target_amount, current_amount, priority, required_monthly, active
FROM goals
WHERE user_id = ? AND active = 1
ORDER BY priority, id
`

func (q *Queries) ListActiveGoals(ctx context.Context, userID string) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listActiveGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.GoalType, &g.TargetAmount, &g.CurrentAmount,
			&g.Priority, &g.RequiredMonthly, &g.Active); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const upsertGoal = `-- name: UpsertGoal :exec
INSERT INTO goals (id, user_id, goal_type, target_amount, current_amount, priority, required_monthly, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    goal_type = excluded.goal_type,
    target_amount = excluded.target_amount,
    current_amount = excluded.current_amount,
    priority = excluded.priority,
    required_monthly = excluded.required_monthly,
    active = excluded.active
`

func (q *Queries) UpsertGoal(ctx context.Context, g Goal) error {
	_, err := q.db.ExecContext(ctx, upsertGoal, g.ID, g.UserID, g.GoalType, g.TargetAmount,
		g.CurrentAmount, g.Priority, g.RequiredMonthly, g.Active)
	return err
}

const upsertSnapshot = `-- name: UpsertSnapshot :exec
INSERT INTO forecast_snapshots (user_id, period, resilience_score, payload, computed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, period) DO UPDATE SET
    resilience_score = excluded.resilience_score,
    payload = excluded.payload,
    computed_at = excluded.computed_at
`

func (q *Queries) UpsertSnapshot(ctx context.Context, s ForecastSnapshot) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot, s.UserID, s.Period, s.ResilienceScore, s.Payload, s.ComputedAt)
	return err
}

const getSnapshot = `-- name: GetSnapshot :one
SELECT user_id, period, resilience_score, payload, computed_at
FROM forecast_snapshots
WHERE user_id = ? AND period = ?
`

func (q *Queries) GetSnapshot(ctx context.Context, userID, period string) (ForecastSnapshot, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, userID, period)
	var s ForecastSnapshot
	err := row.Scan(&s.UserID, &s.Period, &s.ResilienceScore, &s.Payload, &s.ComputedAt)
	return s, err
}
