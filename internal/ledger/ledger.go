// Package ledger implements the document lifecycle: creation, line and
// payment mutations with their recalculation cascades, and the
// confirm/post state machine.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/autorule"
	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// Ledger orchestrates document mutations. Every public operation runs
// as one storage transaction: either all derived fields are updated
// with the triggering write, or nothing is.
type Ledger struct {
	store service.Storage
}

// New creates a ledger backed by the given storage.
func New(store service.Storage) *Ledger {
	return &Ledger{store: store}
}

// GenerateNumber builds a document number from the doc type prefix and
// a random suffix. Uniqueness is enforced by the storage constraint.
func GenerateNumber(docType model.DocType) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return strings.ToUpper(string(docType)) + "-" + suffix
}

func validDocType(t model.DocType) bool {
	switch t {
	case model.DocTypePurchaseOrder, model.DocTypeSalesOrder,
		model.DocTypeVendorBill, model.DocTypeCustomerInvoice:
		return true
	}
	return false
}

// clean normalizes a document before it is written. Financial types
// always resolve to at least not_paid; non-financial types carry no
// payment status and no due date, and can never be posted.
func clean(doc *model.Document) error {
	if doc.IsFinancial() {
		if doc.PaymentStatus == "" || doc.PaymentStatus == model.PaymentStatusNotApplicable {
			doc.PaymentStatus = model.PaymentStatusNotPaid
		}
	} else {
		doc.PaymentStatus = model.PaymentStatusNotApplicable
		doc.DueDate = nil
		if doc.Status == model.DocStatusPosted {
			return common.NewValidationError("only bills and invoices can be posted")
		}
	}
	return nil
}

// CreateDocument validates, normalizes, and persists a new draft
// document. A number is generated when none is supplied; a collision
// with an existing number is retried with a fresh suffix.
func (l *Ledger) CreateDocument(ctx context.Context, doc *model.Document) error {
	return CreateDocumentTx(ctx, l.store, doc)
}

// CreateDocumentTx is CreateDocument running against the caller's
// transaction, for flows that create and post in one atomic unit.
func CreateDocumentTx(ctx context.Context, store service.Storage, doc *model.Document) error {
	if !validDocType(doc.DocType) {
		return common.NewValidationError("unknown document type %q", doc.DocType)
	}
	if doc.ContactID == 0 {
		return common.NewValidationError("document requires a contact")
	}
	if doc.Status == "" {
		doc.Status = model.DocStatusDraft
	}
	if doc.IssueDate.IsZero() {
		doc.IssueDate = time.Now()
	}
	doc.TotalAmount = money.Round(doc.TotalAmount)
	doc.PaidAmount = money.Round(doc.PaidAmount)

	generated := doc.Number == ""
	if generated {
		doc.Number = GenerateNumber(doc.DocType)
	}
	if err := clean(doc); err != nil {
		return err
	}

	err := store.CreateDocument(ctx, doc)
	for attempt := 0; generated && errors.Is(err, common.ErrDuplicateEntry) && attempt < 3; attempt++ {
		doc.Number = GenerateNumber(doc.DocType)
		err = store.CreateDocument(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

// AddLine appends a line to a document and recalculates the document's
// totals in the same transaction.
func (l *Ledger) AddLine(ctx context.Context, line *model.DocumentLine) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := AddLineTx(ctx, tx, line); err != nil {
		return err
	}
	return tx.Commit()
}

// AddLineTx is AddLine running against the caller's transaction.
func AddLineTx(ctx context.Context, store service.Storage, line *model.DocumentLine) error {
	doc, err := store.GetDocument(ctx, line.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", line.DocumentID, err)
	}
	if err := guardStructuralEdit(doc); err != nil {
		return err
	}
	if err := prepareLine(ctx, store, line); err != nil {
		return err
	}
	if err := store.CreateLine(ctx, line); err != nil {
		return fmt.Errorf("creating line: %w", err)
	}
	return recalculateByID(ctx, store, doc.ID)
}

// EditLine updates an existing line and recalculates its document.
func (l *Ledger) EditLine(ctx context.Context, line *model.DocumentLine) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.GetLine(ctx, line.ID)
	if err != nil {
		return fmt.Errorf("loading line %d: %w", line.ID, err)
	}
	line.DocumentID = existing.DocumentID

	doc, err := tx.GetDocument(ctx, line.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", line.DocumentID, err)
	}
	if err := guardStructuralEdit(doc); err != nil {
		return err
	}
	if err := prepareLine(ctx, tx, line); err != nil {
		return err
	}
	if err := tx.UpdateLine(ctx, line); err != nil {
		return fmt.Errorf("updating line: %w", err)
	}
	if err := recalculateByID(ctx, tx, doc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveLine deletes a line and recalculates its document.
func (l *Ledger) RemoveLine(ctx context.Context, lineID int64) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	line, err := tx.GetLine(ctx, lineID)
	if err != nil {
		return fmt.Errorf("loading line %d: %w", lineID, err)
	}
	doc, err := tx.GetDocument(ctx, line.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", line.DocumentID, err)
	}
	if err := guardStructuralEdit(doc); err != nil {
		return err
	}
	if err := tx.DeleteLine(ctx, lineID); err != nil {
		return fmt.Errorf("deleting line: %w", err)
	}
	if err := recalculateByID(ctx, tx, doc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordPayment persists a payment against a financial document and
// recalculates the document's paid amount and payment status.
func (l *Ledger) RecordPayment(ctx context.Context, payment *model.Payment) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := tx.GetDocument(ctx, payment.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", payment.DocumentID, err)
	}
	if err := validatePayment(doc, payment); err != nil {
		return err
	}
	if err := tx.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	if err := recalculateByID(ctx, tx, doc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// EditPayment updates a payment (amount, method, or state) and
// recalculates the document.
func (l *Ledger) EditPayment(ctx context.Context, payment *model.Payment) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.GetPayment(ctx, payment.ID)
	if err != nil {
		return fmt.Errorf("loading payment %d: %w", payment.ID, err)
	}
	payment.DocumentID = existing.DocumentID

	doc, err := tx.GetDocument(ctx, payment.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", payment.DocumentID, err)
	}
	if err := validatePayment(doc, payment); err != nil {
		return err
	}
	if err := tx.UpdatePayment(ctx, payment); err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}
	if err := recalculateByID(ctx, tx, doc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordCustomerPayment is the self-service payment path: a customer
// pays an invoice by number. The amount may not exceed the remaining
// balance, and fully paid invoices accept no further payments.
func (l *Ledger) RecordCustomerPayment(ctx context.Context, number string, amount decimal.Decimal, method model.PaymentMethod, now time.Time) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := tx.GetDocumentByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", number, err)
	}
	if doc.DocType != model.DocTypeCustomerInvoice {
		return common.NewValidationError("only customer invoices can be paid here")
	}
	if doc.PaymentStatus == model.PaymentStatusPaid {
		return common.NewValidationError("invoice %s is already paid", number)
	}
	remaining := doc.TotalAmount.Sub(doc.PaidAmount).Round(money.Places)
	if amount.GreaterThan(remaining.Add(money.Epsilon)) {
		return common.NewValidationError("amount cannot exceed remaining balance")
	}
	payment := &model.Payment{
		DocumentID:  doc.ID,
		PaymentDate: now,
		Method:      method,
		Amount:      amount,
		Status:      model.PaymentStatePosted,
	}
	if err := validatePayment(doc, payment); err != nil {
		return err
	}
	if err := tx.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	if err := recalculateByID(ctx, tx, doc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// Confirm transitions a draft document to confirmed. The rule engine
// runs first; confirmation then requires every line to carry a cost
// center.
func (l *Ledger) Confirm(ctx context.Context, documentID int64) (*autorule.Result, error) {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := tx.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", documentID, err)
	}
	if doc.Status != model.DocStatusDraft {
		return nil, common.NewValidationError("only draft documents can be confirmed")
	}

	result, err := autorule.Apply(ctx, tx, doc)
	if err != nil {
		return nil, err
	}
	if err := validateCostCenters(ctx, tx, doc.ID); err != nil {
		return nil, err
	}

	doc.Status = model.DocStatusConfirmed
	if err := tx.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// Post finalizes a financial document: rule engine, cost center
// completeness, a full recalculation, then the posted status and
// timestamp. Orders cannot be posted.
func (l *Ledger) Post(ctx context.Context, documentID int64, now time.Time) (*autorule.Result, error) {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := PostTx(ctx, tx, documentID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// PostTx is Post running against the caller's transaction.
func PostTx(ctx context.Context, store service.Storage, documentID int64, now time.Time) (*autorule.Result, error) {
	doc, err := store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", documentID, err)
	}
	if !doc.IsFinancial() {
		return nil, common.NewValidationError("only bills and invoices can be posted")
	}
	if doc.Status != model.DocStatusDraft && doc.Status != model.DocStatusConfirmed {
		return nil, common.NewValidationError("only draft or confirmed documents can be posted")
	}

	result, err := autorule.Apply(ctx, store, doc)
	if err != nil {
		return nil, err
	}
	if err := validateCostCenters(ctx, store, doc.ID); err != nil {
		return nil, err
	}

	doc.Status = model.DocStatusPosted
	doc.PostedAt = &now
	if err := recalculate(ctx, store, doc); err != nil {
		return nil, err
	}
	return result, nil
}

// Recalculate re-derives a document's cached totals and payment
// status. It is idempotent: with no intervening mutation a second run
// writes identical values.
func (l *Ledger) Recalculate(ctx context.Context, documentID int64) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := recalculateByID(ctx, tx, documentID); err != nil {
		return err
	}
	return tx.Commit()
}

// recalculateByID refetches the document inside the transaction. A
// parent that vanished mid-cascade aborts with a consistency error.
func recalculateByID(ctx context.Context, store service.Storage, documentID int64) error {
	doc, err := store.GetDocument(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: document %d vanished during recalculation", common.ErrConsistency, documentID)
	}
	if err != nil {
		return fmt.Errorf("reloading document %d: %w", documentID, err)
	}
	return recalculate(ctx, store, doc)
}

// recalculate derives total_amount from the lines, paid_amount from
// posted payments, and the payment status from both, then writes the
// document once.
func recalculate(ctx context.Context, store service.Storage, doc *model.Document) error {
	total, err := store.SumLineTotals(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("summing lines: %w", err)
	}
	doc.TotalAmount = money.Round(total)

	if !doc.IsFinancial() {
		doc.PaidAmount = money.Zero
		doc.PaymentStatus = model.PaymentStatusNotApplicable
	} else {
		paid, err := store.SumPostedPayments(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("summing payments: %w", err)
		}
		doc.PaidAmount = money.Round(paid)
		doc.PaymentStatus = paymentStatus(doc.TotalAmount, doc.PaidAmount)
	}

	if err := store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("writing recalculated document: %w", err)
	}
	return nil
}

// paymentStatus is the pure derivation for financial documents. Paid
// wins once the paid amount is within epsilon of the total.
func paymentStatus(total, paid decimal.Decimal) model.PaymentStatus {
	switch {
	case total.LessThanOrEqual(decimal.Zero):
		return model.PaymentStatusNotPaid
	case paid.LessThanOrEqual(decimal.Zero):
		return model.PaymentStatusNotPaid
	case paid.Add(money.Epsilon).LessThan(total):
		return model.PaymentStatusPartiallyPaid
	default:
		return model.PaymentStatusPaid
	}
}

func guardStructuralEdit(doc *model.Document) error {
	if doc.Status == model.DocStatusPosted || doc.Status == model.DocStatusCancelled {
		return common.NewValidationError("document %s is %s and its lines can no longer be edited", doc.Number, doc.Status)
	}
	return nil
}

// prepareLine validates a line and derives its total and description
// before it is written.
func prepareLine(ctx context.Context, store service.Storage, line *model.DocumentLine) error {
	if line.Quantity.IsNegative() {
		return common.NewValidationError("quantity cannot be negative")
	}
	if line.UnitPrice.IsNegative() {
		return common.NewValidationError("unit price cannot be negative")
	}
	if line.ProductID != nil {
		product, err := store.GetProduct(ctx, *line.ProductID)
		if err != nil {
			return fmt.Errorf("loading product %d: %w", *line.ProductID, err)
		}
		line.Product = product
		if strings.TrimSpace(line.Description) == "" {
			line.Description = product.Name
		}
	}
	line.LineTotal = money.Round(line.Quantity.Mul(line.UnitPrice))
	return nil
}

func validatePayment(doc *model.Document, payment *model.Payment) error {
	if !doc.IsFinancial() {
		return common.NewValidationError("payments can only be recorded against invoices or bills")
	}
	if payment.Amount.LessThanOrEqual(decimal.Zero) {
		return common.NewValidationError("payment amount must be greater than zero")
	}
	if payment.Status == "" {
		payment.Status = model.PaymentStatePosted
	}
	if payment.Method == "" {
		payment.Method = model.MethodBank
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now()
	}
	return nil
}

func validateCostCenters(ctx context.Context, store service.Storage, documentID int64) error {
	lines, err := store.LinesForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading lines: %w", err)
	}
	for i := range lines {
		if lines[i].AnalyticAccountID == nil {
			return common.NewValidationError("all lines must be linked to an analytical account (cost center)")
		}
	}
	return nil
}
