package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// CreatePeriod persists a new budget period.
func (q queries) CreatePeriod(ctx context.Context, period *model.BudgetPeriod) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO budget_periods (name, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?)`,
		period.Name, period.StartDate, period.EndDate, period.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create period: %w", mapError(err))
	}

	period.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get period ID: %w", err)
	}
	return nil
}

const periodColumns = `id, name, start_date, end_date, is_active, created_at, updated_at`

// GetPeriod retrieves a budget period by ID.
func (q queries) GetPeriod(ctx context.Context, id int64) (*model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var p model.BudgetPeriod
	err := q.q.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(mapError(err), common.ErrNotFound) {
			return nil, fmt.Errorf("period %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return &p, nil
}

// ActivePeriods lists active budget periods, newest start date first.
func (q queries) ActivePeriods(ctx context.Context) ([]model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM budget_periods
		 WHERE is_active = 1 ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []model.BudgetPeriod
	for rows.Next() {
		var p model.BudgetPeriod
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// CreateBudget persists a new budget. The (account, period, kind)
// triple is unique; a second insert returns ErrDuplicateEntry.
func (q queries) CreateBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if budget.AnalyticAccountID == 0 || budget.PeriodID == 0 {
		return fmt.Errorf("%w: budget missing account or period", ErrInvalidEntity)
	}
	if budget.Amount.IsNegative() {
		return fmt.Errorf("%w: budget amount cannot be negative", ErrInvalidAmount)
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO budgets (analytic_account_id, period_id, kind, amount, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		budget.AnalyticAccountID, budget.PeriodID, budget.Kind,
		budget.Amount.Round(2).String(), budget.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", mapError(err))
	}

	budget.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get budget ID: %w", err)
	}
	return nil
}

const budgetColumns = `id, analytic_account_id, period_id, kind, amount, is_active, created_at, updated_at`

func scanBudgetRow(scan func(dest ...any) error) (*model.Budget, error) {
	var b model.Budget
	var amount string
	if err := scan(&b.ID, &b.AnalyticAccountID, &b.PeriodID, &b.Kind, &amount, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	var err error
	if b.Amount, err = parseStoredDecimal(amount); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBudget retrieves a budget by ID.
func (q queries) GetBudget(ctx context.Context, id int64) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	budget, err := scanBudgetRow(q.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("budget %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return budget, nil
}

// FindBudget retrieves the budget for an exact (account, period, kind)
// triple.
func (q queries) FindBudget(ctx context.Context, accountID, periodID int64, kind model.BudgetKind) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	budget, err := scanBudgetRow(q.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE analytic_account_id = ? AND period_id = ? AND kind = ?`,
		accountID, periodID, kind).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("budget for account %d period %d kind %s: %w",
				accountID, periodID, kind, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find budget: %w", err)
	}
	return budget, nil
}

// UpdateBudgetAmount sets a budget's planned amount.
func (q queries) UpdateBudgetAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: budget amount cannot be negative", ErrInvalidAmount)
	}

	result, err := q.q.ExecContext(ctx, `
		UPDATE budgets SET amount = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount.Round(2).String(), id)
	if err != nil {
		return fmt.Errorf("failed to update budget amount: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check budget update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("budget %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// ListBudgets lists active budgets matching the filter, ordered by
// account then kind for stable report rows.
func (q queries) ListBudgets(ctx context.Context, filter service.BudgetFilter) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	conditions = append(conditions, "is_active = 1")
	if filter.PeriodID != nil {
		conditions = append(conditions, "period_id = ?")
		args = append(args, *filter.PeriodID)
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, *filter.Kind)
	}

	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY analytic_account_id, kind, id`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		budget, err := scanBudgetRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, *budget)
	}
	return budgets, rows.Err()
}

// CreateBudgetRevision appends an audit record of a budget amount
// change. Revisions are never updated or deleted.
func (q queries) CreateBudgetRevision(ctx context.Context, revision *model.BudgetRevision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if revision == nil {
		return fmt.Errorf("%w: revision", ErrNilParameter)
	}
	if revision.BudgetID == 0 {
		return fmt.Errorf("%w: revision missing budget", ErrInvalidEntity)
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO budget_revisions (budget_id, revised_amount, revised_by, note)
		VALUES (?, ?, ?, ?)`,
		revision.BudgetID, revision.RevisedAmount.Round(2).String(),
		revision.RevisedBy, revision.Note)
	if err != nil {
		return fmt.Errorf("failed to create budget revision: %w", mapError(err))
	}

	revision.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get revision ID: %w", err)
	}
	return nil
}

// RevisionsForBudget lists a budget's revisions, newest first.
func (q queries) RevisionsForBudget(ctx context.Context, budgetID int64) ([]model.BudgetRevision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.q.QueryContext(ctx, `
		SELECT id, budget_id, revised_amount, revised_by, note, created_at
		FROM budget_revisions WHERE budget_id = ?
		ORDER BY created_at DESC, id DESC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []model.BudgetRevision
	for rows.Next() {
		var r model.BudgetRevision
		var amount string
		if err := rows.Scan(&r.ID, &r.BudgetID, &amount, &r.RevisedBy, &r.Note, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		if r.RevisedAmount, err = parseStoredDecimal(amount); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}
