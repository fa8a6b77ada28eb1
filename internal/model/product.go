package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable or purchasable item referenced by document
// lines. Category is free text used by auto-analytic rule matching.
type Product struct {
	ID               int64
	Name             string
	SKU              string
	Category         string
	DefaultUnitPrice decimal.Decimal
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
