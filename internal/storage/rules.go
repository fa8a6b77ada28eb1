package storage

import (
	"context"
	"fmt"

	"github.com/ledgerloom/ledgerloom/internal/model"
)

// CreateRule persists a new auto-analytic rule.
func (q queries) CreateRule(ctx context.Context, rule *model.AutoAnalyticalRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Name, "rule name"); err != nil {
		return err
	}
	if rule.AssignAccountID == 0 {
		return fmt.Errorf("%w: rule missing assignment account", ErrInvalidEntity)
	}

	result, err := q.q.ExecContext(ctx, `
		INSERT INTO auto_rules (name, is_active, priority, transaction_type,
			match_contact_id, match_product_id, match_product_category, assign_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.IsActive, rule.Priority, rule.TransactionType,
		rule.MatchContactID, rule.MatchProductID, rule.MatchProductCategory,
		rule.AssignAccountID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", mapError(err))
	}

	rule.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	return nil
}

const ruleColumns = `id, name, is_active, priority, transaction_type,
	match_contact_id, match_product_id, match_product_category, assign_account_id,
	created_at, updated_at`

func (q queries) queryRules(ctx context.Context, query string, args ...any) ([]model.AutoAnalyticalRule, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rules []model.AutoAnalyticalRule
	for rows.Next() {
		var r model.AutoAnalyticalRule
		err := rows.Scan(&r.ID, &r.Name, &r.IsActive, &r.Priority, &r.TransactionType,
			&r.MatchContactID, &r.MatchProductID, &r.MatchProductCategory,
			&r.AssignAccountID, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListRules lists every rule in evaluation order.
func (q queries) ListRules(ctx context.Context) ([]model.AutoAnalyticalRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rules, err := q.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM auto_rules ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ActiveRulesForType lists active rules for a document type, ordered
// by priority then ID. The engine applies them first match wins, so
// this ordering is the evaluation order.
func (q queries) ActiveRulesForType(ctx context.Context, docType model.DocType) ([]model.AutoAnalyticalRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rules, err := q.queryRules(ctx, `
		SELECT `+ruleColumns+` FROM auto_rules
		WHERE is_active = 1 AND transaction_type = ?
		ORDER BY priority ASC, id ASC`, docType)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	return rules, nil
}
