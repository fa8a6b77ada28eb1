// Package importer loads documents from CSV exports into the ledger.
//
// The expected layout is one row per document line:
//
//	doc_type,number,contact,issue_date,due_date,description,quantity,unit_price,cost_center
//
// Rows sharing a number fold into one document. Dates are YYYY-MM-DD;
// due_date and cost_center may be empty.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/ledger"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

const dateLayout = "2006-01-02"

// Importer reads CSV files and writes documents through the ledger.
type Importer struct {
	store    service.Storage
	progress io.Writer
}

// New creates an importer. Progress output goes to progress; pass
// io.Discard to silence it.
func New(store service.Storage, progress io.Writer) *Importer {
	if progress == nil {
		progress = io.Discard
	}
	return &Importer{store: store, progress: progress}
}

// Summary reports what an import run did.
type Summary struct {
	Documents int
	Lines     int
	Skipped   int
}

type row struct {
	docType     model.DocType
	number      string
	contact     string
	issueDate   time.Time
	dueDate     *time.Time
	description string
	quantity    string
	unitPrice   string
	costCenter  string
}

// ImportFile imports every row of the named CSV file. Documents are
// created in file order; each document and its lines commit as one
// unit, so a bad row skips only its own document.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied import path
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := parseRows(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Summary{}, nil
	}

	// Group rows into documents, preserving first-seen order.
	var order []string
	grouped := make(map[string][]row)
	for _, r := range rows {
		if _, ok := grouped[r.number]; !ok {
			order = append(order, r.number)
		}
		grouped[r.number] = append(grouped[r.number], r)
	}

	bar := progressbar.NewOptions(len(order),
		progressbar.OptionSetWriter(imp.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing documents..."),
	)

	summary := &Summary{}
	for _, number := range order {
		lines, err := imp.importDocument(ctx, grouped[number])
		_ = bar.Add(1)
		if common.IsValidation(err) {
			slog.Warn("skipping document", "number", number, "error", err)
			summary.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("importing document %s: %w", number, err)
		}
		summary.Documents++
		summary.Lines += lines
	}
	_ = bar.Finish()
	fmt.Fprintln(imp.progress)

	return summary, nil
}

// importDocument creates one document with all its lines in a single
// transaction.
func (imp *Importer) importDocument(ctx context.Context, rows []row) (int, error) {
	tx, err := imp.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	first := rows[0]
	contactType := model.ContactCustomer
	if first.docType == model.DocTypePurchaseOrder || first.docType == model.DocTypeVendorBill {
		contactType = model.ContactVendor
	}
	contact, err := tx.FindOrCreateContact(ctx, first.contact, contactType)
	if err != nil {
		return 0, fmt.Errorf("resolving contact %q: %w", first.contact, err)
	}

	doc := &model.Document{
		Number:    first.number,
		DocType:   first.docType,
		ContactID: contact.ID,
		IssueDate: first.issueDate,
		DueDate:   first.dueDate,
	}
	if err := ledger.CreateDocumentTx(ctx, tx, doc); err != nil {
		return 0, err
	}

	for _, r := range rows {
		quantity, err := money.Parse(r.quantity)
		if err != nil {
			return 0, common.NewValidationError("bad quantity for %s: %v", r.number, err)
		}
		price, err := money.Parse(r.unitPrice)
		if err != nil {
			return 0, common.NewValidationError("bad unit price for %s: %v", r.number, err)
		}

		line := &model.DocumentLine{
			DocumentID:  doc.ID,
			Description: r.description,
			Quantity:    quantity,
			UnitPrice:   price,
		}
		if r.costCenter != "" {
			account, err := resolveAccount(ctx, tx, r.costCenter)
			if err != nil {
				return 0, err
			}
			line.AnalyticAccountID = &account.ID
		}
		if err := ledger.AddLineTx(ctx, tx, line); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func resolveAccount(ctx context.Context, store service.Storage, name string) (*model.AnalyticalAccount, error) {
	account, err := store.FindAccountByName(ctx, name)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("looking up cost center %q: %w", name, err)
	}
	account = &model.AnalyticalAccount{Name: name, IsActive: true}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("creating cost center %q: %w", name, err)
	}
	return account, nil
}

func parseRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// A header row is optional; detect it by the first column.
	start := 0
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "doc_type") {
		start = 1
	}

	var rows []row
	for i := start; i < len(records); i++ {
		record := records[i]
		if len(record) < 8 {
			return nil, fmt.Errorf("row %d: expected at least 8 columns, got %d", i+1, len(record))
		}

		parsed := row{
			docType:     model.DocType(strings.TrimSpace(record[0])),
			number:      strings.TrimSpace(record[1]),
			contact:     strings.TrimSpace(record[2]),
			description: strings.TrimSpace(record[5]),
			quantity:    strings.TrimSpace(record[6]),
			unitPrice:   strings.TrimSpace(record[7]),
		}
		if len(record) > 8 {
			parsed.costCenter = strings.TrimSpace(record[8])
		}
		if parsed.number == "" {
			return nil, fmt.Errorf("row %d: missing document number", i+1)
		}
		if parsed.contact == "" {
			return nil, fmt.Errorf("row %d: missing contact", i+1)
		}

		parsed.issueDate, err = time.Parse(dateLayout, strings.TrimSpace(record[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad issue date: %w", i+1, err)
		}
		if due := strings.TrimSpace(record[4]); due != "" {
			d, err := time.Parse(dateLayout, due)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad due date: %w", i+1, err)
			}
			parsed.dueDate = &d
		}

		rows = append(rows, parsed)
	}
	return rows, nil
}
