package autorule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

type fixture struct {
	store    service.Storage
	contact  *model.Contact
	workshop *model.AnalyticalAccount
	office   *model.AnalyticalAccount
	wood     *model.Product
	steel    *model.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store}

	f.contact = &model.Contact{Name: "Acme Supplies", Type: model.ContactVendor, IsActive: true}
	require.NoError(t, store.CreateContact(ctx, f.contact))

	f.workshop = &model.AnalyticalAccount{Name: "Workshop", Code: "WS-01", IsActive: true}
	require.NoError(t, store.CreateAccount(ctx, f.workshop))
	f.office = &model.AnalyticalAccount{Name: "Office", Code: "OF-01", IsActive: true}
	require.NoError(t, store.CreateAccount(ctx, f.office))

	f.wood = &model.Product{Name: "Oak plank", Category: "wood", IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, f.wood))
	f.steel = &model.Product{Name: "Steel rod", Category: "steel", IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, f.steel))

	return f
}

func (f *fixture) newBill(t *testing.T) *model.Document {
	t.Helper()
	doc := &model.Document{
		Number:        "VENDOR_BILL-TEST1",
		DocType:       model.DocTypeVendorBill,
		ContactID:     f.contact.ID,
		IssueDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:        model.DocStatusDraft,
		PaymentStatus: model.PaymentStatusNotPaid,
	}
	require.NoError(t, f.store.CreateDocument(context.Background(), doc))
	return doc
}

func (f *fixture) addLine(t *testing.T, docID int64, product *model.Product, accountID *int64) *model.DocumentLine {
	t.Helper()
	line := &model.DocumentLine{
		DocumentID:        docID,
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         decimal.RequireFromString("10.00"),
		LineTotal:         decimal.RequireFromString("10.00"),
		AnalyticAccountID: accountID,
	}
	if product != nil {
		line.ProductID = &product.ID
	}
	require.NoError(t, f.store.CreateLine(context.Background(), line))
	return line
}

func (f *fixture) addRule(t *testing.T, rule *model.AutoAnalyticalRule) *model.AutoAnalyticalRule {
	t.Helper()
	rule.IsActive = true
	rule.TransactionType = model.DocTypeVendorBill
	require.NoError(t, f.store.CreateRule(context.Background(), rule))
	return rule
}

func (f *fixture) lineAccount(t *testing.T, lineID int64) *int64 {
	t.Helper()
	line, err := f.store.GetLine(context.Background(), lineID)
	require.NoError(t, err)
	return line.AnalyticAccountID
}

func TestApplyNoRulesIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	f.addLine(t, doc.ID, nil, nil)

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedLines)
	assert.Empty(t, result.AppliedRuleIDs)
}

func TestApplyPriorityOrderFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	line := f.addLine(t, doc.ID, f.wood, nil)

	// Both rules match the line; the priority 1 rule wins.
	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "wood to workshop", Priority: 1,
		MatchProductCategory: "wood", AssignAccountID: f.workshop.ID,
	})
	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "wood to office", Priority: 5,
		MatchProductCategory: "wood", AssignAccountID: f.office.ID,
	})

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedLines)

	got := f.lineAccount(t, line.ID)
	require.NotNil(t, got)
	assert.Equal(t, f.workshop.ID, *got)
}

func TestApplyNeverReassigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	line := f.addLine(t, doc.ID, f.wood, &f.office.ID)

	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "wood to workshop", Priority: 1,
		MatchProductCategory: "wood", AssignAccountID: f.workshop.ID,
	})

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedLines)

	got := f.lineAccount(t, line.ID)
	require.NotNil(t, got)
	assert.Equal(t, f.office.ID, *got)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	f.addLine(t, doc.ID, f.wood, nil)

	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "wood to workshop", Priority: 1,
		MatchProductCategory: "wood", AssignAccountID: f.workshop.ID,
	})

	first, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, first.UpdatedLines)

	second, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Zero(t, second.UpdatedLines)
}

func TestApplyDocumentLevelFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	woodLine := f.addLine(t, doc.ID, f.wood, nil)
	steelLine := f.addLine(t, doc.ID, f.steel, nil)
	bareLine := f.addLine(t, doc.ID, nil, nil)

	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "wood to workshop", Priority: 1,
		MatchProductCategory: "wood", AssignAccountID: f.workshop.ID,
	})
	// No product or category filter: applies at the document level and
	// sweeps whatever the line rules left unassigned.
	fallback := f.addRule(t, &model.AutoAnalyticalRule{
		Name: "everything else to office", Priority: 99,
		AssignAccountID: f.office.ID,
	})

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, result.UpdatedLines)
	assert.Contains(t, result.AppliedRuleIDs, fallback.ID)

	assert.Equal(t, f.workshop.ID, *f.lineAccount(t, woodLine.ID))
	assert.Equal(t, f.office.ID, *f.lineAccount(t, steelLine.ID))
	assert.Equal(t, f.office.ID, *f.lineAccount(t, bareLine.ID))
}

func TestApplyContactFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	line := f.addLine(t, doc.ID, nil, nil)

	other := int64(9999)
	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "someone else", Priority: 1,
		MatchContactID: &other, AssignAccountID: f.workshop.ID,
	})
	f.addRule(t, &model.AutoAnalyticalRule{
		Name: "acme to office", Priority: 2,
		MatchContactID: &f.contact.ID, AssignAccountID: f.office.ID,
	})

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedLines)
	assert.Equal(t, f.office.ID, *f.lineAccount(t, line.ID))
}

func TestApplyIgnoresOtherDocTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.newBill(t)
	line := f.addLine(t, doc.ID, nil, nil)

	rule := &model.AutoAnalyticalRule{
		Name: "invoices only", Priority: 1,
		IsActive:        true,
		TransactionType: model.DocTypeCustomerInvoice,
		AssignAccountID: f.workshop.ID,
	}
	require.NoError(t, f.store.CreateRule(ctx, rule))

	result, err := Apply(ctx, f.store, doc)
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedLines)
	assert.Nil(t, f.lineAccount(t, line.ID))
}
