package model

import "time"

// AnalyticalAccount is a cost center: a hierarchical tag used to
// attribute document lines to organizational units for budgeting.
// Parents form a self-referencing tree; cycles are not rejected, which
// mirrors the upstream data model.
type AnalyticalAccount struct {
	ID        int64
	Name      string
	Code      string
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label renders the account for display, prefixing the code when set.
func (a *AnalyticalAccount) Label() string {
	if a.Code == "" {
		return a.Name
	}
	return a.Code + " - " + a.Name
}

// ContactType distinguishes customers from vendors.
type ContactType string

// Contact types.
const (
	ContactCustomer ContactType = "customer"
	ContactVendor   ContactType = "vendor"
	ContactBoth     ContactType = "both"
)

// Contact is a counterparty a document is issued to or received from.
type Contact struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Type      ContactType
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
