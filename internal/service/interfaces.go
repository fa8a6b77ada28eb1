// Package service defines the interfaces between the ledger core and
// its persistence collaborator.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/model"
)

// DocumentFilter defines filtering options for document queries.
// Nil fields are ignored. Results are ordered newest first
// (issue date, then creation time).
type DocumentFilter struct {
	ContactID *int64
	DocType   *model.DocType
	Status    *model.DocStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// LineAggregate selects document lines for budget actuals: lines on
// documents of the given types and status whose issue date falls in
// the inclusive [Start, End] window, attributed to one of the
// accounts.
type LineAggregate struct {
	AccountIDs []int64
	DocTypes   []model.DocType
	Status     model.DocStatus
	Start      time.Time
	End        time.Time
}

// PaymentAggregate selects posted payments by the parent document's
// type and the payment date window. Nil window bounds are ignored.
type PaymentAggregate struct {
	DocType model.DocType
	Start   *time.Time
	End     *time.Time
}

// BudgetFilter narrows budget listings.
type BudgetFilter struct {
	PeriodID *int64
	Kind     *model.BudgetKind
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Analytical account operations
	CreateAccount(ctx context.Context, account *model.AnalyticalAccount) error
	GetAccount(ctx context.Context, id int64) (*model.AnalyticalAccount, error)
	FindAccountByCode(ctx context.Context, code string) (*model.AnalyticalAccount, error)
	FindAccountByName(ctx context.Context, name string) (*model.AnalyticalAccount, error)

	// Contact and product operations
	CreateContact(ctx context.Context, contact *model.Contact) error
	GetContact(ctx context.Context, id int64) (*model.Contact, error)
	FindOrCreateContact(ctx context.Context, name string, contactType model.ContactType) (*model.Contact, error)
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	// Budget period operations
	CreatePeriod(ctx context.Context, period *model.BudgetPeriod) error
	GetPeriod(ctx context.Context, id int64) (*model.BudgetPeriod, error)
	ActivePeriods(ctx context.Context) ([]model.BudgetPeriod, error)

	// Budget operations
	CreateBudget(ctx context.Context, budget *model.Budget) error
	GetBudget(ctx context.Context, id int64) (*model.Budget, error)
	FindBudget(ctx context.Context, accountID, periodID int64, kind model.BudgetKind) (*model.Budget, error)
	UpdateBudgetAmount(ctx context.Context, id int64, amount decimal.Decimal) error
	ListBudgets(ctx context.Context, filter BudgetFilter) ([]model.Budget, error)
	CreateBudgetRevision(ctx context.Context, revision *model.BudgetRevision) error
	RevisionsForBudget(ctx context.Context, budgetID int64) ([]model.BudgetRevision, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id int64) (*model.Document, error)
	GetDocumentByNumber(ctx context.Context, number string) (*model.Document, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	DueDocuments(ctx context.Context, start, end *time.Time) ([]model.Document, error)

	// Document line operations
	CreateLine(ctx context.Context, line *model.DocumentLine) error
	GetLine(ctx context.Context, id int64) (*model.DocumentLine, error)
	UpdateLine(ctx context.Context, line *model.DocumentLine) error
	DeleteLine(ctx context.Context, id int64) error
	LinesForDocument(ctx context.Context, documentID int64) ([]model.DocumentLine, error)
	SumLineTotals(ctx context.Context, documentID int64) (decimal.Decimal, error)
	SumLineTotalsBy(ctx context.Context, agg LineAggregate) (decimal.Decimal, error)

	// Payment operations
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, id int64) (*model.Payment, error)
	UpdatePayment(ctx context.Context, payment *model.Payment) error
	PaymentsForDocument(ctx context.Context, documentID int64) ([]model.Payment, error)
	SumPostedPayments(ctx context.Context, documentID int64) (decimal.Decimal, error)
	SumPostedPaymentsBy(ctx context.Context, agg PaymentAggregate) (decimal.Decimal, error)
	LastPostedPaymentDate(ctx context.Context, documentID int64) (*time.Time, error)

	// Auto-analytic rule operations
	CreateRule(ctx context.Context, rule *model.AutoAnalyticalRule) error
	ListRules(ctx context.Context) ([]model.AutoAnalyticalRule, error)
	ActiveRulesForType(ctx context.Context, docType model.DocType) ([]model.AutoAnalyticalRule, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx represents a storage transaction. Every mutation cascade in the
// ledger runs against exactly one Tx, so derived fields are updated
// atomically with the triggering write.
type Tx interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within the transaction
	Storage
}
