package model

import "time"

// AutoAnalyticalRule assigns a cost center to unassigned document
// lines when its filters match. Lower priority wins; ties break on ID
// so evaluation order is always deterministic.
type AutoAnalyticalRule struct {
	ID                   int64
	Name                 string
	IsActive             bool
	Priority             int
	TransactionType      DocType
	MatchContactID       *int64
	MatchProductID       *int64
	MatchProductCategory string
	AssignAccountID      int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Matches evaluates the rule against a document, and optionally one of
// its lines. With a nil line the rule is checked at the document
// level, where it only matches when no product or category filter is
// configured. All configured filters must hold.
func (r *AutoAnalyticalRule) Matches(doc *Document, line *DocumentLine) bool {
	if !r.IsActive {
		return false
	}
	if doc.DocType != r.TransactionType {
		return false
	}
	if r.MatchContactID != nil && doc.ContactID != *r.MatchContactID {
		return false
	}
	if line == nil {
		return r.MatchProductID == nil && r.MatchProductCategory == ""
	}
	if r.MatchProductID != nil {
		if line.ProductID == nil || *line.ProductID != *r.MatchProductID {
			return false
		}
	}
	if r.MatchProductCategory != "" {
		// A line without a product never satisfies a category filter.
		if line.Product == nil || line.Product.Category != r.MatchProductCategory {
			return false
		}
	}
	return true
}
