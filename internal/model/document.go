// Package model defines the core data structures for the ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocType identifies the commercial meaning of a document.
type DocType string

// Document types.
const (
	DocTypePurchaseOrder   DocType = "po"
	DocTypeSalesOrder      DocType = "so"
	DocTypeVendorBill      DocType = "vendor_bill"
	DocTypeCustomerInvoice DocType = "customer_invoice"
)

// DocStatus is the lifecycle state of a document.
type DocStatus string

// Document statuses. Cancelled exists as a value but no ledger
// operation currently transitions into it.
const (
	DocStatusDraft     DocStatus = "draft"
	DocStatusConfirmed DocStatus = "confirmed"
	DocStatusPosted    DocStatus = "posted"
	DocStatusCancelled DocStatus = "cancelled"
)

// PaymentStatus summarizes how much of a financial document is paid.
type PaymentStatus string

// Payment statuses.
const (
	PaymentStatusNotPaid       PaymentStatus = "not_paid"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusNotApplicable PaymentStatus = "na"
)

// Document is a commercial transaction record: an order, a bill, or an
// invoice. TotalAmount, PaidAmount and PaymentStatus are derived from
// lines and payments and cached here by the ledger's recalculation.
type Document struct {
	ID            int64
	Number        string
	DocType       DocType
	ContactID     int64
	IssueDate     time.Time
	DueDate       *time.Time
	Status        DocStatus
	PostedAt      *time.Time
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsFinancial reports whether the document carries payments. Only
// vendor bills and customer invoices do; orders never reach a paid
// state.
func (d *Document) IsFinancial() bool {
	return d.DocType == DocTypeVendorBill || d.DocType == DocTypeCustomerInvoice
}

// AmountDue returns the unpaid remainder, clamped at 0.00 so overpaid
// documents never show a negative balance.
func (d *Document) AmountDue() decimal.Decimal {
	due := d.TotalAmount.Sub(d.PaidAmount).Round(2)
	if due.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return due
}

// DocumentLine is one priced line of a document. LineTotal is always
// recomputed from Quantity and UnitPrice on save, never set directly.
type DocumentLine struct {
	ID                int64
	DocumentID        int64
	ProductID         *int64
	Product           *Product
	Description       string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	LineTotal         decimal.Decimal
	AnalyticAccountID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

// Payment methods.
const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodOnline PaymentMethod = "online"
)

// PaymentState is the lifecycle state of a payment. Only posted
// payments count toward a document's paid amount.
type PaymentState string

// Payment states.
const (
	PaymentStateDraft     PaymentState = "draft"
	PaymentStatePosted    PaymentState = "posted"
	PaymentStateCancelled PaymentState = "cancelled"
)

// Payment is money recorded against a financial document.
type Payment struct {
	ID          int64
	DocumentID  int64
	PaymentDate time.Time
	Method      PaymentMethod
	Amount      decimal.Decimal
	Status      PaymentState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
