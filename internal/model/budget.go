package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is a date range planned amounts are compared against.
// EndDate is never before StartDate; both bounds are inclusive.
type BudgetPeriod struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether a date falls inside the period.
func (p *BudgetPeriod) Contains(d time.Time) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Days is the period length in whole days, both bounds inclusive.
func (p *BudgetPeriod) Days() int {
	return int(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
}

// BudgetKind separates spending plans from revenue plans.
type BudgetKind string

// Budget kinds.
const (
	BudgetExpense BudgetKind = "expense"
	BudgetRevenue BudgetKind = "revenue"
)

// DocType returns the document type whose posted lines count as
// actuals for this kind of budget.
func (k BudgetKind) DocType() DocType {
	if k == BudgetRevenue {
		return DocTypeCustomerInvoice
	}
	return DocTypeVendorBill
}

// Budget is a planned amount for one cost center, period and kind.
// The (account, period, kind) triple is unique. Actuals, variance and
// achievement are computed on read, never stored.
type Budget struct {
	ID                int64
	AnalyticAccountID int64
	PeriodID          int64
	Kind              BudgetKind
	Amount            decimal.Decimal
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BudgetRevision snapshots a budget amount change for audit. Revisions
// are append-only: never edited, never deleted.
type BudgetRevision struct {
	ID            int64
	BudgetID      int64
	RevisedAmount decimal.Decimal
	RevisedBy     string
	Note          string
	CreatedAt     time.Time
}
