package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerloom/ledgerloom/internal/ledger"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

type world struct {
	store   service.Storage
	ledger  *ledger.Ledger
	service *Service
	period  *model.BudgetPeriod
	vendor  *model.Contact
	client  *model.Contact
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	w := &world{store: store, ledger: ledger.New(store), service: NewService(store)}

	w.period = &model.BudgetPeriod{
		Name:      "Mar 2026",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(t, store.CreatePeriod(ctx, w.period))

	w.vendor = &model.Contact{Name: "Acme Supplies", Type: model.ContactVendor, IsActive: true}
	require.NoError(t, store.CreateContact(ctx, w.vendor))
	w.client = &model.Contact{Name: "Widget Corp", Type: model.ContactCustomer, IsActive: true}
	require.NoError(t, store.CreateContact(ctx, w.client))

	return w
}

func (w *world) account(t *testing.T, name string) *model.AnalyticalAccount {
	t.Helper()
	account := &model.AnalyticalAccount{Name: name, IsActive: true}
	require.NoError(t, w.store.CreateAccount(context.Background(), account))
	return account
}

func (w *world) budget(t *testing.T, accountID int64, kind model.BudgetKind, amount string) *model.Budget {
	t.Helper()
	budget := &model.Budget{
		AnalyticAccountID: accountID,
		PeriodID:          w.period.ID,
		Kind:              kind,
		Amount:            money.MustParse(amount),
		IsActive:          true,
	}
	require.NoError(t, w.store.CreateBudget(context.Background(), budget))
	return budget
}

// postedDoc creates a one-line posted document for the account, dated
// inside the period, optionally due at the given time.
func (w *world) postedDoc(t *testing.T, docType model.DocType, accountID int64, amount string, due *time.Time) *model.Document {
	t.Helper()
	ctx := context.Background()

	contactID := w.vendor.ID
	if docType == model.DocTypeCustomerInvoice {
		contactID = w.client.ID
	}
	doc := &model.Document{
		DocType:   docType,
		ContactID: contactID,
		IssueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:   due,
	}
	require.NoError(t, w.ledger.CreateDocument(ctx, doc))
	require.NoError(t, w.ledger.AddLine(ctx, &model.DocumentLine{
		DocumentID:        doc.ID,
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         money.MustParse(amount),
		AnalyticAccountID: &accountID,
	}))
	_, err := w.ledger.Post(ctx, doc.ID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return doc
}

func (w *world) pay(t *testing.T, doc *model.Document, amount string, date time.Time) {
	t.Helper()
	require.NoError(t, w.ledger.RecordPayment(context.Background(), &model.Payment{
		DocumentID:  doc.ID,
		PaymentDate: date,
		Amount:      money.MustParse(amount),
	}))
}

func TestBuildEmptyPeriod(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	rep, err := w.service.Build(ctx, Options{PeriodID: &w.period.ID, Now: time.Now()})
	require.NoError(t, err)

	assert.Empty(t, rep.Rows)
	assert.Equal(t, "0.00", rep.RevenueAchievementPct.StringFixed(2))
	// With nothing spent, expense control sits at full marks.
	assert.Equal(t, "100.00", rep.ExpenseControlPct.StringFixed(2))
	assert.Equal(t, "0.00", rep.PaymentHealthPct.StringFixed(2))
	assert.Equal(t, 33, rep.OverallScore)
	assert.Equal(t, "0.00", rep.CashNet.StringFixed(2))
	assert.Nil(t, rep.CashChangePct)
	assert.Empty(t, rep.Alerts)
}

func TestBuildRowsAndHealthScore(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	workshop := w.account(t, "Workshop")
	sales := w.account(t, "Sales Floor")
	w.budget(t, workshop.ID, model.BudgetExpense, "1000.00")
	w.budget(t, sales.ID, model.BudgetRevenue, "2000.00")

	w.postedDoc(t, model.DocTypeVendorBill, workshop.ID, "400.00", nil)
	w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "1000.00", nil)

	due := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	onTime := w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "500.00", &due)
	w.pay(t, onTime, "500.00", time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC))

	rep, err := w.service.Build(ctx, Options{
		PeriodID: &w.period.ID,
		Now:      time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, rep.Rows, 2)

	// Revenue actual 1500 of 2000 planned.
	assert.Equal(t, "75.00", rep.RevenueAchievementPct.StringFixed(2))
	// Expense used 400 of 1000 planned, control = 100 - 40.
	assert.Equal(t, "60.00", rep.ExpenseControlPct.StringFixed(2))
	// One due document, paid on time.
	assert.Equal(t, "100.00", rep.PaymentHealthPct.StringFixed(2))
	// (75 + 60 + 100) / 3 rounds to 78.
	assert.Equal(t, 78, rep.OverallScore)

	assert.Equal(t, "500.00", rep.CashReceived.StringFixed(2))
	assert.Equal(t, "0.00", rep.CashPaid.StringFixed(2))
	assert.Equal(t, "500.00", rep.CashNet.StringFixed(2))
}

func TestExpenseControlClampsAtZero(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	workshop := w.account(t, "Workshop")
	w.budget(t, workshop.ID, model.BudgetExpense, "100.00")
	w.postedDoc(t, model.DocTypeVendorBill, workshop.ID, "300.00", nil)

	rep, err := w.service.Build(ctx, Options{PeriodID: &w.period.ID, Now: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, "0.00", rep.ExpenseControlPct.StringFixed(2))
}

func TestCashChangeAgainstPreviousWindow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	sales := w.account(t, "Sales Floor")
	invoice := w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "1000.00", nil)

	// 200 received in the previous window (February), 300 in March.
	w.pay(t, invoice, "200.00", time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	w.pay(t, invoice, "300.00", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	rep, err := w.service.Build(ctx, Options{PeriodID: &w.period.ID, Now: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, "300.00", rep.CashNet.StringFixed(2))
	require.NotNil(t, rep.CashChangePct)
	assert.Equal(t, "50.00", rep.CashChangePct.StringFixed(2))
}

func TestPaymentHealthCountsLatePayments(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	sales := w.account(t, "Sales Floor")

	dueEarly := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	late := w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "100.00", &dueEarly)
	w.pay(t, late, "100.00", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))

	dueLate := time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC)
	onTime := w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "100.00", &dueLate)
	w.pay(t, onTime, "100.00", time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC))

	rep, err := w.service.Build(ctx, Options{PeriodID: &w.period.ID, Now: time.Now()})
	require.NoError(t, err)

	// One of two due documents settled on time.
	assert.Equal(t, "50.00", rep.PaymentHealthPct.StringFixed(2))
}

func TestPaymentHealthWindowsOnIssueDate(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	sales := w.account(t, "Sales Floor")

	// Issued March 10, not due until April 10. It belongs to March's
	// payment health because it was issued in March.
	dueNextMonth := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	invoice := w.postedDoc(t, model.DocTypeCustomerInvoice, sales.ID, "100.00", &dueNextMonth)
	w.pay(t, invoice, "100.00", time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC))

	rep, err := w.service.Build(ctx, Options{PeriodID: &w.period.ID, Now: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, "100.00", rep.PaymentHealthPct.StringFixed(2))
}

func TestAlerts(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	workshop := w.account(t, "Workshop")
	w.budget(t, workshop.ID, model.BudgetExpense, "100.00")
	w.postedDoc(t, model.DocTypeVendorBill, workshop.ID, "300.00", nil)

	due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	w.postedDoc(t, model.DocTypeVendorBill, workshop.ID, "50.00", &due)

	rep, err := w.service.Build(ctx, Options{
		PeriodID: &w.period.ID,
		Now:      time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NotEmpty(t, rep.Alerts)
	assert.Contains(t, rep.Alerts[0].Title, "overdue")

	foundOverBudget := false
	for _, alert := range rep.Alerts {
		if alert.Title == "Workshop is over budget" {
			foundOverBudget = true
		}
	}
	assert.True(t, foundOverBudget)
}

func TestBuildWithoutPeriod(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	workshop := w.account(t, "Workshop")
	w.budget(t, workshop.ID, model.BudgetExpense, "1000.00")
	w.postedDoc(t, model.DocTypeVendorBill, workshop.ID, "400.00", nil)

	rep, err := w.service.Build(ctx, Options{Now: time.Now()})
	require.NoError(t, err)

	assert.Nil(t, rep.Period)
	require.Len(t, rep.Rows, 1)
	// Per-row projections still resolve through each budget's own
	// period even when the report spans all periods.
	assert.Equal(t, "400.00", rep.Rows[0].Projection.Actual.StringFixed(2))
	assert.Nil(t, rep.CashChangePct)
}
