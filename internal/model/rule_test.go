package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }

func TestAutoAnalyticalRule_Matches(t *testing.T) {
	doc := &Document{ID: 1, DocType: DocTypeVendorBill, ContactID: 7}
	wood := &Product{ID: 3, Name: "Oak plank", Category: "wood"}

	tests := []struct {
		name string
		rule AutoAnalyticalRule
		line *DocumentLine
		want bool
	}{
		{
			name: "inactive rule never matches",
			rule: AutoAnalyticalRule{IsActive: false, TransactionType: DocTypeVendorBill},
			line: &DocumentLine{},
			want: false,
		},
		{
			name: "transaction type must equal doc type",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeCustomerInvoice},
			line: &DocumentLine{},
			want: false,
		},
		{
			name: "contact filter mismatch",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchContactID: int64p(8)},
			line: &DocumentLine{},
			want: false,
		},
		{
			name: "contact filter match",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchContactID: int64p(7)},
			line: &DocumentLine{},
			want: true,
		},
		{
			name: "document level check rejects product filters",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductID: int64p(3)},
			line: nil,
			want: false,
		},
		{
			name: "document level check rejects category filters",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductCategory: "wood"},
			line: nil,
			want: false,
		},
		{
			name: "document level check passes without line filters",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill},
			line: nil,
			want: true,
		},
		{
			name: "product filter match",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductID: int64p(3)},
			line: &DocumentLine{ProductID: int64p(3), Product: wood},
			want: true,
		},
		{
			name: "product filter mismatch",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductID: int64p(4)},
			line: &DocumentLine{ProductID: int64p(3), Product: wood},
			want: false,
		},
		{
			name: "category filter match",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductCategory: "wood"},
			line: &DocumentLine{ProductID: int64p(3), Product: wood},
			want: true,
		},
		{
			name: "category filter without product never matches",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductCategory: "wood"},
			line: &DocumentLine{},
			want: false,
		},
		{
			name: "category filter mismatch",
			rule: AutoAnalyticalRule{IsActive: true, TransactionType: DocTypeVendorBill, MatchProductCategory: "steel"},
			line: &DocumentLine{ProductID: int64p(3), Product: wood},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(doc, tt.line))
		})
	}
}

func TestDocument_IsFinancial(t *testing.T) {
	assert.True(t, (&Document{DocType: DocTypeVendorBill}).IsFinancial())
	assert.True(t, (&Document{DocType: DocTypeCustomerInvoice}).IsFinancial())
	assert.False(t, (&Document{DocType: DocTypePurchaseOrder}).IsFinancial())
	assert.False(t, (&Document{DocType: DocTypeSalesOrder}).IsFinancial())
}
