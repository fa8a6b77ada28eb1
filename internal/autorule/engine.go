// Package autorule assigns cost centers to document lines by matching
// configured auto-analytic rules.
package autorule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

// Result reports what an Apply run changed, for audit logging.
type Result struct {
	UpdatedLines   int
	AppliedRuleIDs []int64
}

// Apply runs the rule engine against a document's lines. Rules are
// evaluated in (priority, id) order, first match wins, and lines that
// already carry a cost center are never touched, so applying twice is
// a no-op. Line-level matches run first; a document-level rule (one
// with no product or category filter) then sweeps up any lines still
// unassigned.
//
// Apply writes through the given store; run it inside the enclosing
// transaction of a confirm or post.
func Apply(ctx context.Context, store service.Storage, doc *model.Document) (*Result, error) {
	rules, err := store.ActiveRulesForType(ctx, doc.DocType)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	result := &Result{}
	if len(rules) == 0 {
		return result, nil
	}

	lines, err := store.LinesForDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading lines: %w", err)
	}

	applied := make(map[int64]bool)

	for i := range lines {
		line := &lines[i]
		if line.AnalyticAccountID != nil {
			continue
		}
		for j := range rules {
			rule := &rules[j]
			if !rule.Matches(doc, line) {
				continue
			}
			if err := assign(ctx, store, line, rule.AssignAccountID); err != nil {
				return nil, err
			}
			result.UpdatedLines++
			if !applied[rule.ID] {
				applied[rule.ID] = true
				result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
			}
			break
		}
	}

	// Document-level fallback for lines no line-level rule claimed.
	for j := range rules {
		rule := &rules[j]
		if !rule.Matches(doc, nil) {
			continue
		}
		swept := 0
		for i := range lines {
			line := &lines[i]
			if line.AnalyticAccountID != nil {
				continue
			}
			if err := assign(ctx, store, line, rule.AssignAccountID); err != nil {
				return nil, err
			}
			swept++
		}
		result.UpdatedLines += swept
		if result.UpdatedLines > 0 && !applied[rule.ID] {
			applied[rule.ID] = true
			result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
		}
		break
	}

	if result.UpdatedLines > 0 {
		slog.Debug("auto-analytics applied",
			"document", doc.Number,
			"updated_lines", result.UpdatedLines,
			"rules", result.AppliedRuleIDs)
	}

	return result, nil
}

func assign(ctx context.Context, store service.Storage, line *model.DocumentLine, accountID int64) error {
	id := accountID
	line.AnalyticAccountID = &id
	if err := store.UpdateLine(ctx, line); err != nil {
		return fmt.Errorf("assigning cost center to line %d: %w", line.ID, err)
	}
	return nil
}
