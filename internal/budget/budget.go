// Package budget provides budget maintenance and the read-side
// projections that compare planned amounts against posted activity.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// Service owns budget and period mutations and projections.
type Service struct {
	store service.Storage
}

// NewService creates a budget service backed by the given storage.
func NewService(store service.Storage) *Service {
	return &Service{store: store}
}

// Projection is the derived, never-stored view of one budget.
type Projection struct {
	Actual         decimal.Decimal
	Variance       decimal.Decimal
	AchievementPct decimal.Decimal
	Remaining      decimal.Decimal
}

// CreatePeriod validates and persists a budget period.
func (s *Service) CreatePeriod(ctx context.Context, period *model.BudgetPeriod) error {
	if period.EndDate.Before(period.StartDate) {
		return common.NewValidationError("period end date cannot be before its start date")
	}
	if err := s.store.CreatePeriod(ctx, period); err != nil {
		return fmt.Errorf("creating period: %w", err)
	}
	return nil
}

// EnsureCurrentPeriod returns the newest active period, creating a
// calendar-month period around now when none exists. Callers invoke
// this once before querying reports; report reads themselves never
// create periods.
func (s *Service) EnsureCurrentPeriod(ctx context.Context, now time.Time) (*model.BudgetPeriod, error) {
	periods, err := s.store.ActivePeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading periods: %w", err)
	}
	if len(periods) > 0 {
		return &periods[0], nil
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)
	period := &model.BudgetPeriod{
		Name:      now.Format("Jan 2006"),
		StartDate: start,
		EndDate:   end,
		IsActive:  true,
	}
	if err := s.store.CreatePeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("creating current period: %w", err)
	}
	return period, nil
}

// CreateBudget persists a budget. The (account, period, kind) triple
// is unique; a duplicate is a validation failure, not a storage fault.
func (s *Service) CreateBudget(ctx context.Context, budget *model.Budget) error {
	if _, err := s.store.GetPeriod(ctx, budget.PeriodID); err != nil {
		return fmt.Errorf("loading period %d: %w", budget.PeriodID, err)
	}
	budget.Amount = money.Round(budget.Amount)
	err := s.store.CreateBudget(ctx, budget)
	if errors.Is(err, common.ErrDuplicateEntry) {
		return common.NewValidationError("a budget for this cost center, period and kind already exists")
	}
	if err != nil {
		return fmt.Errorf("creating budget: %w", err)
	}
	return nil
}

// UpdateAmount changes a budget's planned amount and appends a
// revision attributed to the acting user. An unchanged amount writes
// nothing.
func (s *Service) UpdateAmount(ctx context.Context, budgetID int64, amount decimal.Decimal, actor, note string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateAmountTx(ctx, tx, budgetID, amount, actor, note); err != nil {
		return err
	}
	return tx.Commit()
}

func updateAmountTx(ctx context.Context, store service.Storage, budgetID int64, amount decimal.Decimal, actor, note string) error {
	budget, err := store.GetBudget(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("loading budget %d: %w", budgetID, err)
	}
	amount = money.Round(amount)
	if budget.Amount.Equal(amount) {
		return nil
	}
	if err := store.UpdateBudgetAmount(ctx, budgetID, amount); err != nil {
		return fmt.Errorf("updating budget amount: %w", err)
	}
	revision := &model.BudgetRevision{
		BudgetID:      budgetID,
		RevisedAmount: amount,
		RevisedBy:     actor,
		Note:          note,
	}
	if err := store.CreateBudgetRevision(ctx, revision); err != nil {
		return fmt.Errorf("recording budget revision: %w", err)
	}
	return nil
}

// Projection computes actuals, variance, achievement and the
// remaining balance for one budget from posted document lines inside
// the budget's period.
func (s *Service) Projection(ctx context.Context, budget *model.Budget) (*Projection, error) {
	return ProjectionTx(ctx, s.store, budget)
}

// ProjectionTx is Projection against the caller's storage handle.
func ProjectionTx(ctx context.Context, store service.Storage, budget *model.Budget) (*Projection, error) {
	period, err := store.GetPeriod(ctx, budget.PeriodID)
	if err != nil {
		return nil, fmt.Errorf("loading period %d: %w", budget.PeriodID, err)
	}

	actual, err := store.SumLineTotalsBy(ctx, service.LineAggregate{
		AccountIDs: []int64{budget.AnalyticAccountID},
		DocTypes:   []model.DocType{budget.Kind.DocType()},
		Status:     model.DocStatusPosted,
		Start:      period.StartDate,
		End:        period.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating actuals: %w", err)
	}
	actual = money.Round(actual)

	achievement := money.Zero
	if !budget.Amount.IsZero() {
		// The same ratio applies to expense and revenue budgets.
		achievement = actual.Div(budget.Amount).Mul(money.Hundred).Round(money.Places)
	}

	return &Projection{
		Actual:         actual,
		Variance:       budget.Amount.Sub(actual).Round(money.Places),
		AchievementPct: achievement,
		Remaining:      budget.Amount.Sub(actual).Round(money.Places),
	}, nil
}

// Revisions returns a budget's revision history, newest first.
func (s *Service) Revisions(ctx context.Context, budgetID int64) ([]model.BudgetRevision, error) {
	return s.store.RevisionsForBudget(ctx, budgetID)
}
