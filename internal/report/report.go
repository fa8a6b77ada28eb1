// Package report builds the budget-versus-actual report: per-budget
// rows, period health scoring, and cash flow metrics.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/budget"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// Service builds reports from the storage layer. Report reads are not
// transactional with concurrent writes; reporting tolerates that.
type Service struct {
	store service.Storage
}

// NewService creates a report service backed by the given storage.
func NewService(store service.Storage) *Service {
	return &Service{store: store}
}

// Options selects what the report covers. A nil PeriodID means all
// periods (actuals and cash windows are then unbounded and the
// change-over-previous-period metric is omitted).
type Options struct {
	PeriodID *int64
	Kind     *model.BudgetKind
	Now      time.Time
}

// Row is one budget with its computed projection.
type Row struct {
	Budget     model.Budget
	Account    *model.AnalyticalAccount
	Projection budget.Projection
}

// Alert is an actionable finding surfaced next to the report.
type Alert struct {
	Title    string
	Subtitle string
}

// Report is the full dashboard payload.
type Report struct {
	Period                *model.BudgetPeriod
	Rows                  []Row
	RevenueAchievementPct decimal.Decimal
	ExpenseControlPct     decimal.Decimal
	PaymentHealthPct      decimal.Decimal
	OverallScore          int
	CashReceived          decimal.Decimal
	CashPaid              decimal.Decimal
	CashNet               decimal.Decimal
	// CashChangePct compares CashNet to the preceding period of equal
	// length. Nil when no period is selected or the previous net was
	// exactly zero.
	CashChangePct *decimal.Decimal
	Alerts        []Alert
}

// Build assembles the report for the given options.
func (s *Service) Build(ctx context.Context, opts Options) (*Report, error) {
	var period *model.BudgetPeriod
	if opts.PeriodID != nil {
		p, err := s.store.GetPeriod(ctx, *opts.PeriodID)
		if err != nil {
			return nil, fmt.Errorf("loading period %d: %w", *opts.PeriodID, err)
		}
		period = p
	}

	budgets, err := s.store.ListBudgets(ctx, service.BudgetFilter{PeriodID: opts.PeriodID, Kind: opts.Kind})
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}

	rep := &Report{Period: period}

	expenseBudgetTotal := money.Zero
	revenueBudgetTotal := money.Zero
	accountIDs := make([]int64, 0, len(budgets))
	seen := make(map[int64]bool)

	for i := range budgets {
		b := budgets[i]
		account, err := s.store.GetAccount(ctx, b.AnalyticAccountID)
		if err != nil {
			return nil, fmt.Errorf("loading account %d: %w", b.AnalyticAccountID, err)
		}
		proj, err := budget.ProjectionTx(ctx, s.store, &b)
		if err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, Row{Budget: b, Account: account, Projection: *proj})

		if b.Kind == model.BudgetExpense {
			expenseBudgetTotal = expenseBudgetTotal.Add(b.Amount)
		} else {
			revenueBudgetTotal = revenueBudgetTotal.Add(b.Amount)
		}
		if !seen[b.AnalyticAccountID] {
			seen[b.AnalyticAccountID] = true
			accountIDs = append(accountIDs, b.AnalyticAccountID)
		}
	}

	expenseActual, revenueActual := money.Zero, money.Zero
	if period != nil && len(accountIDs) > 0 {
		expenseActual, err = s.store.SumLineTotalsBy(ctx, service.LineAggregate{
			AccountIDs: accountIDs,
			DocTypes:   []model.DocType{model.DocTypeVendorBill},
			Status:     model.DocStatusPosted,
			Start:      period.StartDate,
			End:        period.EndDate,
		})
		if err != nil {
			return nil, fmt.Errorf("aggregating expense actuals: %w", err)
		}
		revenueActual, err = s.store.SumLineTotalsBy(ctx, service.LineAggregate{
			AccountIDs: accountIDs,
			DocTypes:   []model.DocType{model.DocTypeCustomerInvoice},
			Status:     model.DocStatusPosted,
			Start:      period.StartDate,
			End:        period.EndDate,
		})
		if err != nil {
			return nil, fmt.Errorf("aggregating revenue actuals: %w", err)
		}
	}

	rep.RevenueAchievementPct = money.Percent(revenueActual, revenueBudgetTotal)
	expenseUsed := money.Percent(expenseActual, expenseBudgetTotal)
	rep.ExpenseControlPct = money.ClampPercent(money.Hundred.Sub(expenseUsed).Round(money.Places))

	if err := s.cashMetrics(ctx, rep, period); err != nil {
		return nil, err
	}
	if err := s.paymentHealth(ctx, rep, period); err != nil {
		return nil, err
	}

	score := rep.RevenueAchievementPct.
		Add(rep.ExpenseControlPct).
		Add(rep.PaymentHealthPct).
		Div(decimal.NewFromInt(3)).
		Round(0)
	clamped := money.ClampPercent(score)
	rep.OverallScore = int(clamped.IntPart())

	if err := s.alerts(ctx, rep, opts.Now); err != nil {
		return nil, err
	}

	return rep, nil
}

// cashMetrics fills cash received/paid/net from posted payments in
// the period window, plus the change against the preceding window of
// equal length.
func (s *Service) cashMetrics(ctx context.Context, rep *Report, period *model.BudgetPeriod) error {
	var start, end *time.Time
	if period != nil {
		start, end = &period.StartDate, &period.EndDate
	}

	received, err := s.store.SumPostedPaymentsBy(ctx, service.PaymentAggregate{
		DocType: model.DocTypeCustomerInvoice, Start: start, End: end,
	})
	if err != nil {
		return fmt.Errorf("aggregating cash received: %w", err)
	}
	paid, err := s.store.SumPostedPaymentsBy(ctx, service.PaymentAggregate{
		DocType: model.DocTypeVendorBill, Start: start, End: end,
	})
	if err != nil {
		return fmt.Errorf("aggregating cash paid: %w", err)
	}

	rep.CashReceived = money.Round(received)
	rep.CashPaid = money.Round(paid)
	rep.CashNet = rep.CashReceived.Sub(rep.CashPaid).Round(money.Places)

	if period == nil {
		return nil
	}

	prevEnd := period.StartDate.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(period.Days() - 1))

	prevReceived, err := s.store.SumPostedPaymentsBy(ctx, service.PaymentAggregate{
		DocType: model.DocTypeCustomerInvoice, Start: &prevStart, End: &prevEnd,
	})
	if err != nil {
		return fmt.Errorf("aggregating previous cash received: %w", err)
	}
	prevPaid, err := s.store.SumPostedPaymentsBy(ctx, service.PaymentAggregate{
		DocType: model.DocTypeVendorBill, Start: &prevStart, End: &prevEnd,
	})
	if err != nil {
		return fmt.Errorf("aggregating previous cash paid: %w", err)
	}

	prevNet := prevReceived.Sub(prevPaid)
	if prevNet.IsZero() {
		return nil
	}
	change := rep.CashNet.Sub(prevNet).Div(prevNet.Abs()).Mul(money.Hundred).Round(money.Places)
	rep.CashChangePct = &change
	return nil
}

// paymentHealth computes the share of due documents in the window
// that were fully paid with their last posted payment on or before
// the due date.
func (s *Service) paymentHealth(ctx context.Context, rep *Report, period *model.BudgetPeriod) error {
	var start, end *time.Time
	if period != nil {
		start, end = &period.StartDate, &period.EndDate
	}
	docs, err := s.store.DueDocuments(ctx, start, end)
	if err != nil {
		return fmt.Errorf("loading due documents: %w", err)
	}

	rep.PaymentHealthPct = money.Zero
	if len(docs) == 0 {
		return nil
	}

	onTime := 0
	for i := range docs {
		doc := &docs[i]
		if doc.PaymentStatus != model.PaymentStatusPaid || doc.DueDate == nil {
			continue
		}
		last, err := s.store.LastPostedPaymentDate(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("loading last payment for %s: %w", doc.Number, err)
		}
		if last != nil && !last.After(*doc.DueDate) {
			onTime++
		}
	}

	rep.PaymentHealthPct = money.Percent(decimal.NewFromInt(int64(onTime)), decimal.NewFromInt(int64(len(docs))))
	return nil
}

// alerts surfaces overdue financial documents and expense budgets
// running over plan.
func (s *Service) alerts(ctx context.Context, rep *Report, now time.Time) error {
	overdue, err := s.overdueCount(ctx, now)
	if err != nil {
		return err
	}
	if overdue > 0 {
		rep.Alerts = append(rep.Alerts, Alert{
			Title:    fmt.Sprintf("%d overdue invoice/bill(s) pending payment", overdue),
			Subtitle: "Follow up and record payments to keep books accurate",
		})
	}

	overBudget := 0
	for i := range rep.Rows {
		row := &rep.Rows[i]
		if row.Budget.Kind != model.BudgetExpense {
			continue
		}
		if row.Budget.Amount.IsPositive() && row.Projection.Actual.GreaterThan(row.Budget.Amount) {
			overBudget++
			if len(rep.Alerts) < 3 {
				rep.Alerts = append(rep.Alerts, Alert{
					Title: fmt.Sprintf("%s is over budget", row.Account.Label()),
					Subtitle: fmt.Sprintf("Budget %s vs Actual %s",
						row.Budget.Amount.StringFixed(2), row.Projection.Actual.StringFixed(2)),
				})
			}
		}
	}
	if overBudget > 0 && len(rep.Alerts) < 4 {
		rep.Alerts = append(rep.Alerts, Alert{
			Title:    fmt.Sprintf("%d cost center(s) are over budget", overBudget),
			Subtitle: "Review posted bills and revise budgets if needed",
		})
	}

	return nil
}

func (s *Service) overdueCount(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.store.DueDocuments(ctx, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("loading due documents: %w", err)
	}
	count := 0
	for i := range docs {
		doc := &docs[i]
		if doc.DueDate != nil && doc.DueDate.Before(now) && doc.PaymentStatus != model.PaymentStatusPaid {
			count++
		}
	}
	return count, nil
}
