package budget

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/ledger"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

func newTestService(t *testing.T) (*Service, service.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store), store
}

func marchPeriod(t *testing.T, store service.Storage) *model.BudgetPeriod {
	t.Helper()
	period := &model.BudgetPeriod{
		Name:      "Mar 2026",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(t, store.CreatePeriod(context.Background(), period))
	return period
}

func workshopAccount(t *testing.T, store service.Storage) *model.AnalyticalAccount {
	t.Helper()
	account := &model.AnalyticalAccount{Name: "Workshop", Code: "WS-01", IsActive: true}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

// postBill creates and posts a one-line vendor bill attributed to the
// account, dated inside March 2026.
func postBill(t *testing.T, store service.Storage, accountID int64, amount string) {
	t.Helper()
	ctx := context.Background()

	contact, err := store.FindOrCreateContact(ctx, "Acme Supplies", model.ContactVendor)
	require.NoError(t, err)

	l := ledger.New(store)
	doc := &model.Document{
		DocType:   model.DocTypeVendorBill,
		ContactID: contact.ID,
		IssueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, l.CreateDocument(ctx, doc))
	require.NoError(t, l.AddLine(ctx, &model.DocumentLine{
		DocumentID:        doc.ID,
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         money.MustParse(amount),
		AnalyticAccountID: &accountID,
	}))
	_, err = l.Post(ctx, doc.ID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestCreatePeriodRejectsInvertedDates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	err := s.CreatePeriod(ctx, &model.BudgetPeriod{
		Name:      "Backwards",
		StartDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.True(t, common.IsValidation(err))
}

func TestEnsureCurrentPeriod(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)

	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	period, err := s.EnsureCurrentPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "Mar 2026", period.Name)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), period.StartDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), period.EndDate)

	// A second call reuses the existing period instead of stacking up
	// new ones.
	again, err := s.EnsureCurrentPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, period.ID, again.ID)

	periods, err := store.ActivePeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestCreateBudgetDuplicateTriple(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	period := marchPeriod(t, store)
	account := workshopAccount(t, store)

	budget := &model.Budget{
		AnalyticAccountID: account.ID,
		PeriodID:          period.ID,
		Kind:              model.BudgetExpense,
		Amount:            money.MustParse("1000.00"),
		IsActive:          true,
	}
	require.NoError(t, s.CreateBudget(ctx, budget))

	dup := &model.Budget{
		AnalyticAccountID: account.ID,
		PeriodID:          period.ID,
		Kind:              model.BudgetExpense,
		Amount:            money.MustParse("500.00"),
		IsActive:          true,
	}
	err := s.CreateBudget(ctx, dup)
	assert.True(t, common.IsValidation(err))
}

func TestUpdateAmountRecordsRevision(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	period := marchPeriod(t, store)
	account := workshopAccount(t, store)

	budget := &model.Budget{
		AnalyticAccountID: account.ID,
		PeriodID:          period.ID,
		Kind:              model.BudgetExpense,
		Amount:            money.MustParse("1000.00"),
		IsActive:          true,
	}
	require.NoError(t, s.CreateBudget(ctx, budget))

	require.NoError(t, s.UpdateAmount(ctx, budget.ID, money.MustParse("1200.00"), "controller", "march adjustment"))

	got, err := store.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "1200.00", got.Amount.StringFixed(2))

	revisions, err := s.Revisions(ctx, budget.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, "1200.00", revisions[0].RevisedAmount.StringFixed(2))
	assert.Equal(t, "controller", revisions[0].RevisedBy)

	// Writing the same amount again records nothing.
	require.NoError(t, s.UpdateAmount(ctx, budget.ID, money.MustParse("1200.00"), "controller", ""))
	revisions, err = s.Revisions(ctx, budget.ID)
	require.NoError(t, err)
	assert.Len(t, revisions, 1)
}

func TestProjectionCountsOnlyPostedDocuments(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	period := marchPeriod(t, store)
	account := workshopAccount(t, store)

	budget := &model.Budget{
		AnalyticAccountID: account.ID,
		PeriodID:          period.ID,
		Kind:              model.BudgetExpense,
		Amount:            money.MustParse("1000.00"),
		IsActive:          true,
	}
	require.NoError(t, s.CreateBudget(ctx, budget))

	// A draft bill contributes nothing.
	l := ledger.New(store)
	contact, err := store.FindOrCreateContact(ctx, "Acme Supplies", model.ContactVendor)
	require.NoError(t, err)
	draft := &model.Document{
		DocType:   model.DocTypeVendorBill,
		ContactID: contact.ID,
		IssueDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, l.CreateDocument(ctx, draft))
	require.NoError(t, l.AddLine(ctx, &model.DocumentLine{
		DocumentID:        draft.ID,
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         money.MustParse("400.00"),
		AnalyticAccountID: &account.ID,
	}))

	proj, err := s.Projection(ctx, budget)
	require.NoError(t, err)
	assert.Equal(t, "0.00", proj.Actual.StringFixed(2))

	postBill(t, store, account.ID, "150.00")
	postBill(t, store, account.ID, "100.00")

	proj, err = s.Projection(ctx, budget)
	require.NoError(t, err)
	assert.Equal(t, "250.00", proj.Actual.StringFixed(2))
	assert.Equal(t, "750.00", proj.Variance.StringFixed(2))
	assert.Equal(t, "750.00", proj.Remaining.StringFixed(2))
	assert.Equal(t, "25.00", proj.AchievementPct.StringFixed(2))
}

func TestProjectionZeroBudgetAmount(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	period := marchPeriod(t, store)
	account := workshopAccount(t, store)

	budget := &model.Budget{
		AnalyticAccountID: account.ID,
		PeriodID:          period.ID,
		Kind:              model.BudgetExpense,
		Amount:            money.Zero,
		IsActive:          true,
	}
	require.NoError(t, s.CreateBudget(ctx, budget))
	postBill(t, store, account.ID, "50.00")

	proj, err := s.Projection(ctx, budget)
	require.NoError(t, err)
	assert.Equal(t, "0.00", proj.AchievementPct.StringFixed(2))
	assert.Equal(t, "-50.00", proj.Variance.StringFixed(2))
}

func TestQuickEntryCreatesEverything(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	period := marchPeriod(t, store)

	actual := money.MustParse("250.00")
	result, err := s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           model.BudgetExpense,
		CostCenterName: "Workshop",
		CostCenterCode: "WS-01",
		BudgetAmount:   money.MustParse("1000.00"),
		ActualAmount:   &actual,
		Actor:          "controller",
	}, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, result.CreatedBudget)
	assert.False(t, result.RevisedBudget)
	assert.Equal(t, "Workshop", result.Account.Name)
	assert.Equal(t, "1000.00", result.Budget.Amount.StringFixed(2))

	// The seeded document is posted and fully attributed.
	require.NotNil(t, result.ActualDocument)
	assert.Equal(t, model.DocStatusPosted, result.ActualDocument.Status)
	assert.Equal(t, model.DocTypeVendorBill, result.ActualDocument.DocType)
	assert.Equal(t, "250.00", result.ActualDocument.TotalAmount.StringFixed(2))
	assert.True(t, period.Contains(result.ActualDocument.IssueDate))

	proj, err := s.Projection(ctx, result.Budget)
	require.NoError(t, err)
	assert.Equal(t, "250.00", proj.Actual.StringFixed(2))
}

func TestQuickEntryRevisesExistingBudget(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	marchPeriod(t, store)

	first, err := s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           model.BudgetExpense,
		CostCenterName: "Workshop",
		BudgetAmount:   money.MustParse("1000.00"),
		Actor:          "controller",
	}, time.Now())
	require.NoError(t, err)
	require.True(t, first.CreatedBudget)

	second, err := s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           model.BudgetExpense,
		CostCenterName: "Workshop",
		BudgetAmount:   money.MustParse("1500.00"),
		Actor:          "controller",
	}, time.Now())
	require.NoError(t, err)

	assert.False(t, second.CreatedBudget)
	assert.True(t, second.RevisedBudget)
	assert.Equal(t, first.Budget.ID, second.Budget.ID)
	assert.Equal(t, first.Account.ID, second.Account.ID)

	revisions, err := s.Revisions(ctx, second.Budget.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, "1500.00", revisions[0].RevisedAmount.StringFixed(2))
}

func TestQuickEntryRevenueSeedsInvoice(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	marchPeriod(t, store)

	actual := money.MustParse("300.00")
	result, err := s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           model.BudgetRevenue,
		CostCenterName: "Sales Floor",
		BudgetAmount:   money.MustParse("2000.00"),
		ActualAmount:   &actual,
		Actor:          "controller",
	}, time.Now())
	require.NoError(t, err)

	require.NotNil(t, result.ActualDocument)
	assert.Equal(t, model.DocTypeCustomerInvoice, result.ActualDocument.DocType)

	contact, err := store.GetContact(ctx, result.ActualDocument.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "Demo Customer", contact.Name)
}

func TestQuickEntryValidation(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)

	_, err := s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:         model.BudgetExpense,
		BudgetAmount: money.MustParse("100.00"),
	}, time.Now())
	assert.True(t, common.IsValidation(err), "missing cost center name")

	_, err = s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           "capital",
		CostCenterName: "Workshop",
		BudgetAmount:   money.MustParse("100.00"),
	}, time.Now())
	assert.True(t, common.IsValidation(err), "unknown kind")

	// Without any active period the entry fails before writing.
	_, err = s.ApplyQuickEntry(ctx, QuickEntry{
		Kind:           model.BudgetExpense,
		CostCenterName: "Workshop",
		BudgetAmount:   money.MustParse("100.00"),
	}, time.Now())
	assert.True(t, common.IsValidation(err), "no active period")

	accounts, err := store.FindAccountByName(ctx, "Workshop")
	assert.Error(t, err)
	assert.Nil(t, accounts)
}
