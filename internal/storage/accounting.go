package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

type AccountingRepository struct {
	pool *db.Pool
}

func NewAccountingRepository(pool *db.Pool) *AccountingRepository {
	return &AccountingRepository{pool: pool}
}

func (r *AccountingRepository) CreateCategory(ctx context.Context, cat *model.ExpenseCategory) error {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expense_categories (id, name, description)
		VALUES ($1, $2, $3)
	`, cat.ID, cat.Name, cat.Description)
	return err
}

func (r *AccountingRepository) ListCategories(ctx context.Context) ([]model.ExpenseCategory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, COALESCE(description, '')
		FROM expense_categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []model.ExpenseCategory
	for rows.Next() {
		var cat model.ExpenseCategory
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return cats, nil
}

func (r *AccountingRepository) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expense_categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AccountingRepository) CreateExpense(ctx context.Context, exp *model.Expense) error {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO expenses (id, user_id, category_id, merchant, amount_cents, currency, notes, incurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, exp.ID, exp.UserID, exp.CategoryID, exp.Merchant, exp.AmountCents, exp.Currency,
		exp.Notes, exp.IncurredAt).Scan(&exp.CreatedAt)
}

func (r *AccountingRepository) ListExpenses(ctx context.Context, userID string, from, to time.Time) ([]model.Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, category_id::text, merchant, amount_cents,
			currency, COALESCE(notes, ''), incurred_at, created_at
		FROM expenses
		WHERE user_id = $1 AND incurred_at >= $2 AND incurred_at < $3
		ORDER BY incurred_at DESC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exps []model.Expense
	for rows.Next() {
		var exp model.Expense
		if err := rows.Scan(&exp.ID, &exp.UserID, &exp.CategoryID, &exp.Merchant,
			&exp.AmountCents, &exp.Currency, &exp.Notes, &exp.IncurredAt, &exp.CreatedAt); err != nil {
			return nil, err
		}
		exps = append(exps, exp)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return exps, nil
}

func (r *AccountingRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM expenses WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Report aggregates a user's expenses per category over [from, to).
func (r *AccountingRepository) Report(ctx context.Context, userID string, from, to time.Time) ([]model.ExpenseReportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.name, COUNT(e.id), COALESCE(SUM(e.amount_cents), 0)
		FROM expenses e
		JOIN expense_categories c ON c.id = e.category_id
		WHERE e.user_id = $1 AND e.incurred_at >= $2 AND e.incurred_at < $3
		GROUP BY c.id, c.name
		ORDER BY c.name ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []model.ExpenseReportRow
	for rows.Next() {
		var row model.ExpenseReportRow
		if err := rows.Scan(&row.CategoryID, &row.CategoryName, &row.Count, &row.TotalCents); err != nil {
			return nil, err
		}
		report = append(report, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return report, nil
}
