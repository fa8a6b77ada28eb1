package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

func newTestImporter(t *testing.T) (*Importer, service.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return New(store, io.Discard), store
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)

	path := writeCSV(t, `doc_type,number,contact,issue_date,due_date,description,quantity,unit_price,cost_center
vendor_bill,VB-IMPORT-1,Acme Supplies,2026-03-10,2026-04-09,Oak planks,2,5.00,Workshop
vendor_bill,VB-IMPORT-1,Acme Supplies,2026-03-10,2026-04-09,Steel rods,1,15.50,Workshop
so,SO-IMPORT-1,Widget Corp,2026-03-12,,Consulting,1,200.00,
`)

	summary, err := imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 3, summary.Lines)
	assert.Zero(t, summary.Skipped)

	bill, err := store.GetDocumentByNumber(ctx, "VB-IMPORT-1")
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeVendorBill, bill.DocType)
	assert.Equal(t, "25.50", bill.TotalAmount.StringFixed(2))
	assert.Equal(t, model.PaymentStatusNotPaid, bill.PaymentStatus)
	require.NotNil(t, bill.DueDate)

	lines, err := store.LinesForDocument(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[0].AnalyticAccountID)

	// Both lines resolved to the same newly created cost center.
	account, err := store.FindAccountByName(ctx, "Workshop")
	require.NoError(t, err)
	assert.Equal(t, account.ID, *lines[0].AnalyticAccountID)
	assert.Equal(t, account.ID, *lines[1].AnalyticAccountID)

	order, err := store.GetDocumentByNumber(ctx, "SO-IMPORT-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusNotApplicable, order.PaymentStatus)
	assert.Nil(t, order.DueDate)
}

func TestImportFileSkipsInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)

	path := writeCSV(t, `vendor_bill,VB-GOOD,Acme Supplies,2026-03-10,,Materials,1,10.00,
memo,BAD-TYPE,Acme Supplies,2026-03-10,,Materials,1,10.00,
`)

	summary, err := imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 1, summary.Skipped)

	_, err = store.GetDocumentByNumber(ctx, "VB-GOOD")
	require.NoError(t, err)
}

func TestImportFileRejectsMalformedRows(t *testing.T) {
	ctx := context.Background()
	imp, _ := newTestImporter(t)

	path := writeCSV(t, `vendor_bill,VB-1,Acme,not-a-date,,Materials,1,10.00,
`)
	_, err := imp.ImportFile(ctx, path)
	assert.Error(t, err)

	path = writeCSV(t, `vendor_bill,,Acme,2026-03-10,,Materials,1,10.00,
`)
	_, err = imp.ImportFile(ctx, path)
	assert.Error(t, err)
}

func TestImportEmptyFile(t *testing.T) {
	ctx := context.Background()
	imp, _ := newTestImporter(t)

	summary, err := imp.ImportFile(ctx, writeCSV(t, ""))
	require.NoError(t, err)
	assert.Zero(t, summary.Documents)
}
