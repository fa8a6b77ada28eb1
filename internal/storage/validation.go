package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidEntity  = errors.New("invalid entity")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidPeriod  = errors.New("period end date before start date")
	ErrUnknownDocType = errors.New("unknown document type")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDocument(doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if doc.Number == "" {
		return fmt.Errorf("%w: document missing number", ErrInvalidEntity)
	}
	if doc.ContactID == 0 {
		return fmt.Errorf("%w: document missing contact", ErrInvalidEntity)
	}
	if doc.IssueDate.IsZero() {
		return fmt.Errorf("%w: document missing issue date", ErrInvalidEntity)
	}
	switch doc.DocType {
	case model.DocTypePurchaseOrder, model.DocTypeSalesOrder,
		model.DocTypeVendorBill, model.DocTypeCustomerInvoice:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDocType, doc.DocType)
	}
	return nil
}

func validateLine(line *model.DocumentLine) error {
	if line == nil {
		return fmt.Errorf("%w: line", ErrNilParameter)
	}
	if line.DocumentID == 0 {
		return fmt.Errorf("%w: line missing document", ErrInvalidEntity)
	}
	if line.Quantity.IsNegative() || line.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative quantity or unit price", ErrInvalidAmount)
	}
	return nil
}

func validatePayment(payment *model.Payment) error {
	if payment == nil {
		return fmt.Errorf("%w: payment", ErrNilParameter)
	}
	if payment.DocumentID == 0 {
		return fmt.Errorf("%w: payment missing document", ErrInvalidEntity)
	}
	if payment.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: payment amount must be positive", ErrInvalidAmount)
	}
	return nil
}

func validatePeriod(period *model.BudgetPeriod) error {
	if period == nil {
		return fmt.Errorf("%w: period", ErrNilParameter)
	}
	if period.Name == "" {
		return fmt.Errorf("%w: period missing name", ErrInvalidEntity)
	}
	if period.EndDate.Before(period.StartDate) {
		return ErrInvalidPeriod
	}
	return nil
}
