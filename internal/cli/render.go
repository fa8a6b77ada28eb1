package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/report"
)

// statusStyles maps document statuses to their display styles.
var statusStyles = map[model.DocStatus]func(string) string{
	model.DocStatusDraft:     func(s string) string { return SubtleStyle.Render(s) },
	model.DocStatusConfirmed: func(s string) string { return InfoStyle.Render(s) },
	model.DocStatusPosted:    func(s string) string { return SuccessStyle.Render(s) },
	model.DocStatusCancelled: func(s string) string { return ErrorStyle.Render(s) },
}

func styleStatus(status model.DocStatus) string {
	if style, ok := statusStyles[status]; ok {
		return style(string(status))
	}
	return string(status)
}

func stylePaymentStatus(status model.PaymentStatus) string {
	switch status {
	case model.PaymentStatusPaid:
		return SuccessStyle.Render(string(status))
	case model.PaymentStatusPartiallyPaid:
		return WarningStyle.Render(string(status))
	case model.PaymentStatusNotPaid:
		return ErrorStyle.Render(string(status))
	default:
		return SubtleStyle.Render(string(status))
	}
}

// RenderDocument renders a document header with its lines and
// payments.
func RenderDocument(doc *model.Document, lines []model.DocumentLine, payments []model.Payment) string {
	var b strings.Builder

	b.WriteString(FormatTitle(doc.Number) + "\n")
	b.WriteString(fmt.Sprintf("Type: %s  Status: %s\n", doc.DocType, styleStatus(doc.Status)))
	b.WriteString(fmt.Sprintf("Issued: %s", doc.IssueDate.Format("2006-01-02")))
	if doc.DueDate != nil {
		b.WriteString(fmt.Sprintf("  Due: %s", doc.DueDate.Format("2006-01-02")))
	}
	b.WriteString("\n")

	if len(lines) > 0 {
		b.WriteString("\n")
		b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-30s %10s %12s %12s", "Description", "Qty", "Unit Price", "Total")))
		b.WriteString("\n")
		for i := range lines {
			line := &lines[i]
			desc := line.Description
			if len(desc) > 30 {
				desc = desc[:27] + "..."
			}
			b.WriteString(fmt.Sprintf("%-30s %10s %12s %12s\n",
				desc, line.Quantity.String(),
				line.UnitPrice.StringFixed(2), line.LineTotal.StringFixed(2)))
		}
	}

	b.WriteString("\n")
	b.WriteString(BoldStyle.Render(fmt.Sprintf("Total: %s", doc.TotalAmount.StringFixed(2))))
	if doc.IsFinancial() {
		b.WriteString(fmt.Sprintf("  Paid: %s  Due: %s  [%s]",
			doc.PaidAmount.StringFixed(2), doc.AmountDue().StringFixed(2),
			stylePaymentStatus(doc.PaymentStatus)))
	}
	b.WriteString("\n")

	if len(payments) > 0 {
		b.WriteString("\nPayments:\n")
		for i := range payments {
			p := &payments[i]
			b.WriteString(fmt.Sprintf("  %s  %10s  %-7s %s\n",
				p.PaymentDate.Format("2006-01-02"), p.Amount.StringFixed(2), p.Method, p.Status))
		}
	}

	return b.String()
}

// RenderDocumentList renders a compact table of documents.
func RenderDocumentList(docs []model.Document) string {
	if len(docs) == 0 {
		return SubtleStyle.Render("No documents found.") + "\n"
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-24s %-18s %-10s %12s %-14s", "Number", "Type", "Status", "Total", "Payment")))
	b.WriteString("\n")
	for i := range docs {
		doc := &docs[i]
		payment := "-"
		if doc.IsFinancial() {
			payment = string(doc.PaymentStatus)
		}
		b.WriteString(fmt.Sprintf("%-24s %-18s %-10s %12s %-14s\n",
			doc.Number, doc.DocType, doc.Status, doc.TotalAmount.StringFixed(2), payment))
	}
	return b.String()
}

// scoreStyle picks a style band for the overall health score.
func scoreStyle(score int) func(string) string {
	switch {
	case score >= 70:
		return func(s string) string { return SuccessStyle.Render(s) }
	case score >= 40:
		return func(s string) string { return WarningStyle.Render(s) }
	default:
		return func(s string) string { return ErrorStyle.Render(s) }
	}
}

// RenderReport renders the full budget dashboard.
func RenderReport(rep *report.Report) string {
	var b strings.Builder

	title := "Budget Report"
	if rep.Period != nil {
		title = fmt.Sprintf("Budget Report - %s", rep.Period.Name)
	}
	b.WriteString(TitleStyle.Render(ChartIcon+" "+title) + "\n\n")

	score := fmt.Sprintf("Overall health: %d/100", rep.OverallScore)
	b.WriteString(scoreStyle(rep.OverallScore)(score) + "\n")
	b.WriteString(fmt.Sprintf("  Revenue achievement: %s%%\n", rep.RevenueAchievementPct.StringFixed(2)))
	b.WriteString(fmt.Sprintf("  Expense control:     %s%%\n", rep.ExpenseControlPct.StringFixed(2)))
	b.WriteString(fmt.Sprintf("  Payment health:      %s%%\n", rep.PaymentHealthPct.StringFixed(2)))

	b.WriteString("\n" + BoldStyle.Render(CashIcon+" Cash flow") + "\n")
	b.WriteString(fmt.Sprintf("  Received: %s  Paid: %s  Net: %s",
		rep.CashReceived.StringFixed(2), rep.CashPaid.StringFixed(2), rep.CashNet.StringFixed(2)))
	if rep.CashChangePct != nil {
		b.WriteString(fmt.Sprintf("  (%s%% vs previous period)", rep.CashChangePct.StringFixed(2)))
	}
	b.WriteString("\n")

	if len(rep.Rows) > 0 {
		b.WriteString("\n")
		b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-26s %-8s %12s %12s %12s %10s",
			"Cost Center", "Kind", "Budget", "Actual", "Variance", "Achieved")))
		b.WriteString("\n")
		for i := range rep.Rows {
			row := &rep.Rows[i]
			b.WriteString(fmt.Sprintf("%-26s %-8s %12s %12s %12s %9s%%\n",
				row.Account.Label(), row.Budget.Kind,
				row.Budget.Amount.StringFixed(2),
				row.Projection.Actual.StringFixed(2),
				styleVariance(row.Budget.Kind, row.Projection.Variance),
				row.Projection.AchievementPct.StringFixed(2)))
		}
	}

	if len(rep.Alerts) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Alerts") + "\n")
		for _, alert := range rep.Alerts {
			b.WriteString(FormatWarning(alert.Title) + "\n")
			b.WriteString("  " + SubtleStyle.Render(alert.Subtitle) + "\n")
		}
	}

	return b.String()
}

// styleVariance colors the variance: an overrun expense or a revenue
// shortfall shows red.
func styleVariance(kind model.BudgetKind, variance decimal.Decimal) string {
	s := variance.StringFixed(2)
	if kind == model.BudgetExpense && variance.IsNegative() {
		return ErrorStyle.Render(s)
	}
	if kind == model.BudgetRevenue && variance.IsPositive() {
		return WarningStyle.Render(s)
	}
	return s
}

// RenderRevisions renders a budget's revision history.
func RenderRevisions(revisions []model.BudgetRevision) string {
	if len(revisions) == 0 {
		return SubtleStyle.Render("No revisions recorded.") + "\n"
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-20s %12s %-16s %s", "Revised At", "Amount", "By", "Note")))
	b.WriteString("\n")
	for i := range revisions {
		rev := &revisions[i]
		b.WriteString(fmt.Sprintf("%-20s %12s %-16s %s\n",
			rev.CreatedAt.Format("2006-01-02 15:04"),
			rev.RevisedAmount.StringFixed(2), rev.RevisedBy, rev.Note))
	}
	return b.String()
}
