package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// CreateDocument persists a new document. Numbers are unique; a
// collision returns ErrDuplicateEntry.
func (q queries) CreateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO documents (number, doc_type, contact_id, issue_date, due_date,
			status, posted_at, total_amount, paid_amount, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Number, doc.DocType, doc.ContactID, doc.IssueDate, doc.DueDate,
		doc.Status, doc.PostedAt,
		doc.TotalAmount.Round(2).String(), doc.PaidAmount.Round(2).String(),
		doc.PaymentStatus)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", mapError(err))
	}

	doc.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get document ID: %w", err)
	}
	return nil
}

const documentColumns = `id, number, doc_type, contact_id, issue_date, due_date,
	status, posted_at, total_amount, paid_amount, payment_status, created_at, updated_at`

func scanDocumentRow(scan func(dest ...any) error) (*model.Document, error) {
	var d model.Document
	var due, posted sql.NullTime
	var total, paid string
	err := scan(&d.ID, &d.Number, &d.DocType, &d.ContactID, &d.IssueDate, &due,
		&d.Status, &posted, &total, &paid, &d.PaymentStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if due.Valid {
		d.DueDate = &due.Time
	}
	if posted.Valid {
		d.PostedAt = &posted.Time
	}
	if d.TotalAmount, err = parseStoredDecimal(total); err != nil {
		return nil, err
	}
	if d.PaidAmount, err = parseStoredDecimal(paid); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocument retrieves a document by ID.
func (q queries) GetDocument(ctx context.Context, id int64) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	doc, err := scanDocumentRow(q.q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetDocumentByNumber retrieves a document by its unique number.
func (q queries) GetDocumentByNumber(ctx context.Context, number string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(number, "number"); err != nil {
		return nil, err
	}

	doc, err := scanDocumentRow(q.q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE number = ?`, number).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("document %q: %w", number, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document by number: %w", err)
	}
	return doc, nil
}

// UpdateDocument saves a document's current state.
func (q queries) UpdateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		UPDATE documents SET
			number = ?, doc_type = ?, contact_id = ?, issue_date = ?, due_date = ?,
			status = ?, posted_at = ?, total_amount = ?, paid_amount = ?,
			payment_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		doc.Number, doc.DocType, doc.ContactID, doc.IssueDate, doc.DueDate,
		doc.Status, doc.PostedAt,
		doc.TotalAmount.Round(2).String(), doc.PaidAmount.Round(2).String(),
		doc.PaymentStatus, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check document update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, common.ErrNotFound)
	}
	return nil
}

// ListDocuments lists documents matching the filter, newest first.
func (q queries) ListDocuments(ctx context.Context, filter service.DocumentFilter) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	conditions := []string{"1 = 1"}
	var args []any
	if filter.ContactID != nil {
		conditions = append(conditions, "contact_id = ?")
		args = append(args, *filter.ContactID)
	}
	if filter.DocType != nil {
		conditions = append(conditions, "doc_type = ?")
		args = append(args, *filter.DocType)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "issue_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "issue_date <= ?")
		args = append(args, *filter.EndDate)
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY issue_date DESC, created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DueDocuments lists posted financial documents that carry a due date
// and were issued in the given window, oldest due date first. Nil
// bounds are open. The window applies to the issue date: a document
// issued in the period counts against that period's payment health
// even when its due date lands in the next one.
func (q queries) DueDocuments(ctx context.Context, start, end *time.Time) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	conditions := []string{
		"due_date IS NOT NULL",
		"status = ?",
		"doc_type IN (?, ?)",
	}
	args := []any{model.DocStatusPosted, model.DocTypeVendorBill, model.DocTypeCustomerInvoice}
	if start != nil {
		conditions = append(conditions, "issue_date >= ?")
		args = append(args, *start)
	}
	if end != nil {
		conditions = append(conditions, "issue_date <= ?")
		args = append(args, *end)
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY due_date ASC, id ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// CreateLine persists a new document line.
func (q queries) CreateLine(ctx context.Context, line *model.DocumentLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLine(line); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO document_lines (document_id, product_id, description,
			quantity, unit_price, line_total, analytic_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		line.DocumentID, line.ProductID, line.Description,
		line.Quantity.String(), line.UnitPrice.String(),
		line.LineTotal.Round(2).String(), line.AnalyticAccountID)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", mapError(err))
	}

	line.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get line ID: %w", err)
	}
	return nil
}

const lineColumns = `l.id, l.document_id, l.product_id, l.description,
	l.quantity, l.unit_price, l.line_total, l.analytic_account_id,
	l.created_at, l.updated_at,
	p.id, p.name, p.sku, p.category, p.default_unit_price, p.is_active`

// scanLineRow reads a line joined against its product. The product is
// attached when present so rule matching can see the category without
// another query.
func scanLineRow(scan func(dest ...any) error) (*model.DocumentLine, error) {
	var l model.DocumentLine
	var quantity, unitPrice, lineTotal string
	var productID sql.NullInt64
	var productName, productSKU, productCategory, productPrice sql.NullString
	var productActive sql.NullBool
	err := scan(&l.ID, &l.DocumentID, &l.ProductID, &l.Description,
		&quantity, &unitPrice, &lineTotal, &l.AnalyticAccountID,
		&l.CreatedAt, &l.UpdatedAt,
		&productID, &productName, &productSKU, &productCategory, &productPrice, &productActive)
	if err != nil {
		return nil, mapError(err)
	}

	if l.Quantity, err = parseStoredDecimal(quantity); err != nil {
		return nil, err
	}
	if l.UnitPrice, err = parseStoredDecimal(unitPrice); err != nil {
		return nil, err
	}
	if l.LineTotal, err = parseStoredDecimal(lineTotal); err != nil {
		return nil, err
	}

	if productID.Valid {
		price, err := parseStoredDecimal(productPrice.String)
		if err != nil {
			return nil, err
		}
		l.Product = &model.Product{
			ID:               productID.Int64,
			Name:             productName.String,
			SKU:              productSKU.String,
			Category:         productCategory.String,
			DefaultUnitPrice: price,
			IsActive:         productActive.Bool,
		}
	}
	return &l, nil
}

// GetLine retrieves a document line by ID.
func (q queries) GetLine(ctx context.Context, id int64) (*model.DocumentLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	line, err := scanLineRow(q.q.QueryRowContext(ctx, `
		SELECT `+lineColumns+` FROM document_lines l
		LEFT JOIN products p ON p.id = l.product_id
		WHERE l.id = ?`, id).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("line %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get line: %w", err)
	}
	return line, nil
}

// UpdateLine saves a line's current state.
func (q queries) UpdateLine(ctx context.Context, line *model.DocumentLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLine(line); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		UPDATE document_lines SET
			product_id = ?, description = ?, quantity = ?, unit_price = ?,
			line_total = ?, analytic_account_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		line.ProductID, line.Description,
		line.Quantity.String(), line.UnitPrice.String(),
		line.LineTotal.Round(2).String(), line.AnalyticAccountID, line.ID)
	if err != nil {
		return fmt.Errorf("failed to update line: %w", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check line update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("line %d: %w", line.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteLine removes a document line.
func (q queries) DeleteLine(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `DELETE FROM document_lines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check line delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("line %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// LinesForDocument lists a document's lines in insertion order.
func (q queries) LinesForDocument(ctx context.Context, documentID int64) ([]model.DocumentLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.q.QueryContext(ctx, `
		SELECT `+lineColumns+` FROM document_lines l
		LEFT JOIN products p ON p.id = l.product_id
		WHERE l.document_id = ? ORDER BY l.id ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.DocumentLine
	for rows.Next() {
		line, err := scanLineRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

// sumDecimalColumn runs a query whose single column is a stored
// decimal and adds the rows up in Go. Summing in SQL would force a
// CAST to REAL and lose exactness.
func (q queries) sumDecimalColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Decimal{}, err
		}
		d, err := parseStoredDecimal(s)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(d)
	}
	return total.Round(2), rows.Err()
}

// SumLineTotals returns the sum of a document's line totals.
func (q queries) SumLineTotals(ctx context.Context, documentID int64) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	total, err := q.sumDecimalColumn(ctx,
		`SELECT line_total FROM document_lines WHERE document_id = ?`, documentID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to sum line totals: %w", err)
	}
	return total, nil
}

// SumLineTotalsBy returns the sum of line totals matching the
// aggregate selection. An empty account set sums to zero.
func (q queries) SumLineTotalsBy(ctx context.Context, agg service.LineAggregate) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Decimal{}, err
	}
	if len(agg.AccountIDs) == 0 || len(agg.DocTypes) == 0 {
		return decimal.Zero.Round(2), nil
	}

	var args []any
	accountHoles := make([]string, len(agg.AccountIDs))
	for i, id := range agg.AccountIDs {
		accountHoles[i] = "?"
		args = append(args, id)
	}
	typeHoles := make([]string, len(agg.DocTypes))
	for i, dt := range agg.DocTypes {
		typeHoles[i] = "?"
		args = append(args, dt)
	}
	args = append(args, agg.Status, agg.Start, agg.End)

	query := `
		SELECT l.line_total FROM document_lines l
		JOIN documents d ON d.id = l.document_id
		WHERE l.analytic_account_id IN (` + strings.Join(accountHoles, ", ") + `)
		AND d.doc_type IN (` + strings.Join(typeHoles, ", ") + `)
		AND d.status = ?
		AND d.issue_date >= ? AND d.issue_date <= ?`

	total, err := q.sumDecimalColumn(ctx, query, args...)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to aggregate line totals: %w", err)
	}
	return total, nil
}

// CreatePayment persists a new payment.
func (q queries) CreatePayment(ctx context.Context, payment *model.Payment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePayment(payment); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO payments (document_id, payment_date, method, amount, status)
		VALUES (?, ?, ?, ?, ?)`,
		payment.DocumentID, payment.PaymentDate, payment.Method,
		payment.Amount.Round(2).String(), payment.Status)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapError(err))
	}

	payment.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment ID: %w", err)
	}
	return nil
}

const paymentColumns = `id, document_id, payment_date, method, amount, status, created_at, updated_at`

func scanPaymentRow(scan func(dest ...any) error) (*model.Payment, error) {
	var p model.Payment
	var amount string
	err := scan(&p.ID, &p.DocumentID, &p.PaymentDate, &p.Method, &amount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if p.Amount, err = parseStoredDecimal(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by ID.
func (q queries) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	payment, err := scanPaymentRow(q.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id).Scan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("payment %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// UpdatePayment saves a payment's current state.
func (q queries) UpdatePayment(ctx context.Context, payment *model.Payment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePayment(payment); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx, `
		UPDATE payments SET
			payment_date = ?, method = ?, amount = ?, status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		payment.PaymentDate, payment.Method,
		payment.Amount.Round(2).String(), payment.Status, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check payment update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("payment %d: %w", payment.ID, common.ErrNotFound)
	}
	return nil
}

// PaymentsForDocument lists a document's payments in insertion order.
func (q queries) PaymentsForDocument(ctx context.Context, documentID int64) ([]model.Payment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE document_id = ? ORDER BY id ASC`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []model.Payment
	for rows.Next() {
		payment, err := scanPaymentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// SumPostedPayments returns the posted payment total for a document.
// Draft and cancelled payments never count.
func (q queries) SumPostedPayments(ctx context.Context, documentID int64) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	total, err := q.sumDecimalColumn(ctx,
		`SELECT amount FROM payments WHERE document_id = ? AND status = ?`,
		documentID, model.PaymentStatePosted)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

// SumPostedPaymentsBy returns the posted payment total across all
// documents of a type, restricted to an optional payment date window.
func (q queries) SumPostedPaymentsBy(ctx context.Context, agg service.PaymentAggregate) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	conditions := []string{"p.status = ?", "d.doc_type = ?"}
	args := []any{model.PaymentStatePosted, agg.DocType}
	if agg.Start != nil {
		conditions = append(conditions, "p.payment_date >= ?")
		args = append(args, *agg.Start)
	}
	if agg.End != nil {
		conditions = append(conditions, "p.payment_date <= ?")
		args = append(args, *agg.End)
	}

	query := `
		SELECT p.amount FROM payments p
		JOIN documents d ON d.id = p.document_id
		WHERE ` + strings.Join(conditions, " AND ")

	total, err := q.sumDecimalColumn(ctx, query, args...)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to aggregate payments: %w", err)
	}
	return total, nil
}

// LastPostedPaymentDate returns the latest posted payment date for a
// document, or nil when none exist.
func (q queries) LastPostedPaymentDate(ctx context.Context, documentID int64) (*time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var last sql.NullTime
	err := q.q.QueryRowContext(ctx, `
		SELECT MAX(payment_date) FROM payments
		WHERE document_id = ? AND status = ?`,
		documentID, model.PaymentStatePosted).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last payment date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}
