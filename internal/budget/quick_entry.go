package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/ledger"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// QuickEntry is a one-shot budget entry: it resolves or creates the
// cost center, sets the planned amount for (account, period, kind),
// and can seed a posted actual document so the dashboard reflects the
// entry immediately.
type QuickEntry struct {
	PeriodID       *int64
	Kind           model.BudgetKind
	CostCenterName string
	CostCenterCode string
	BudgetAmount   decimal.Decimal
	ActualAmount   *decimal.Decimal
	Actor          string
}

// QuickEntryResult reports what the entry touched.
type QuickEntryResult struct {
	Account        *model.AnalyticalAccount
	Budget         *model.Budget
	CreatedBudget  bool
	RevisedBudget  bool
	ActualDocument *model.Document
}

// ApplyQuickEntry runs a quick entry as a single atomic unit.
func (s *Service) ApplyQuickEntry(ctx context.Context, entry QuickEntry, now time.Time) (*QuickEntryResult, error) {
	name := strings.TrimSpace(entry.CostCenterName)
	if name == "" {
		return nil, common.NewValidationError("cost center name is required")
	}
	if entry.Kind != model.BudgetExpense && entry.Kind != model.BudgetRevenue {
		return nil, common.NewValidationError("unknown budget kind %q", entry.Kind)
	}
	if entry.BudgetAmount.IsNegative() {
		return nil, common.NewValidationError("budget amount cannot be negative")
	}
	if entry.ActualAmount != nil && entry.ActualAmount.IsNegative() {
		return nil, common.NewValidationError("actual amount cannot be negative")
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	period, err := s.resolvePeriod(ctx, tx, entry.PeriodID)
	if err != nil {
		return nil, err
	}

	account, err := resolveAccount(ctx, tx, name, strings.TrimSpace(entry.CostCenterCode))
	if err != nil {
		return nil, err
	}

	result := &QuickEntryResult{Account: account}

	amount := money.Round(entry.BudgetAmount)
	budget, err := tx.FindBudget(ctx, account.ID, period.ID, entry.Kind)
	switch {
	case err == nil:
		if !budget.Amount.Equal(amount) {
			if err := updateAmountTx(ctx, tx, budget.ID, amount, entry.Actor, "quick entry"); err != nil {
				return nil, err
			}
			budget.Amount = amount
			result.RevisedBudget = true
		}
	case isNotFound(err):
		budget = &model.Budget{
			AnalyticAccountID: account.ID,
			PeriodID:          period.ID,
			Kind:              entry.Kind,
			Amount:            amount,
			IsActive:          true,
		}
		if err := tx.CreateBudget(ctx, budget); err != nil {
			return nil, fmt.Errorf("creating budget: %w", err)
		}
		result.CreatedBudget = true
	default:
		return nil, fmt.Errorf("loading budget: %w", err)
	}
	result.Budget = budget

	if entry.ActualAmount != nil && entry.ActualAmount.IsPositive() {
		doc, err := seedActual(ctx, tx, entry.Kind, account.ID, period, *entry.ActualAmount, now)
		if err != nil {
			return nil, err
		}
		result.ActualDocument = doc
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) resolvePeriod(ctx context.Context, store service.Storage, periodID *int64) (*model.BudgetPeriod, error) {
	if periodID != nil {
		period, err := store.GetPeriod(ctx, *periodID)
		if err != nil {
			return nil, fmt.Errorf("loading period %d: %w", *periodID, err)
		}
		return period, nil
	}
	periods, err := store.ActivePeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, common.NewValidationError("no active budget period; create one first")
	}
	return &periods[0], nil
}

// resolveAccount finds the cost center by code, then by name, and
// creates it when neither matches.
func resolveAccount(ctx context.Context, store service.Storage, name, code string) (*model.AnalyticalAccount, error) {
	if code != "" {
		account, err := store.FindAccountByCode(ctx, code)
		if err == nil {
			return account, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("looking up cost center by code: %w", err)
		}
	}
	account, err := store.FindAccountByName(ctx, name)
	if err == nil {
		return account, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("looking up cost center by name: %w", err)
	}
	account = &model.AnalyticalAccount{Name: name, Code: code, IsActive: true}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("creating cost center: %w", err)
	}
	return account, nil
}

// seedActual creates and posts a one-line demo document carrying the
// entered actual amount, through the regular ledger path so totals,
// payment status and numbering behave exactly like any other document.
func seedActual(ctx context.Context, store service.Storage, kind model.BudgetKind, accountID int64, period *model.BudgetPeriod, amount decimal.Decimal, now time.Time) (*model.Document, error) {
	var contactName string
	var contactType model.ContactType
	if kind == model.BudgetExpense {
		contactName, contactType = "Demo Vendor", model.ContactVendor
	} else {
		contactName, contactType = "Demo Customer", model.ContactCustomer
	}
	contact, err := store.FindOrCreateContact(ctx, contactName, contactType)
	if err != nil {
		return nil, fmt.Errorf("resolving contact: %w", err)
	}

	due := period.StartDate.AddDate(0, 0, 30)
	doc := &model.Document{
		DocType:   kind.DocType(),
		ContactID: contact.ID,
		IssueDate: period.StartDate,
		DueDate:   &due,
	}
	if err := ledger.CreateDocumentTx(ctx, store, doc); err != nil {
		return nil, err
	}

	acct := accountID
	line := &model.DocumentLine{
		DocumentID:        doc.ID,
		Description:       "Quick entry",
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         amount,
		AnalyticAccountID: &acct,
	}
	if err := ledger.AddLineTx(ctx, store, line); err != nil {
		return nil, err
	}

	if _, err := ledger.PostTx(ctx, store, doc.ID, now); err != nil {
		return nil, err
	}

	refreshed, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading document: %w", err)
	}
	return refreshed, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
