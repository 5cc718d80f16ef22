// Package mapping links recipe ingredients to catalog products and prices them.
package mapping

import (
	"strings"

	"allergen-engine/internal/core/units"
	"allergen-engine/internal/pkg/common"
)

// Product is one catalog entry.
type Product struct {
	Name         string   `json:"product_name" validate:"required"`
	SKU          string   `json:"sku,omitempty"`
	Category     string   `json:"category,omitempty"`
	Supplier     string   `json:"supplier,omitempty"`
	PackSize     string   `json:"pack_size,omitempty"`
	Unit         string   `json:"unit" validate:"required"`
	PricePerUnit float64  `json:"price_per_unit" validate:"gte=0"`
	CostPerOzSet *float64 `json:"cost_per_oz,omitempty" validate:"omitempty,gte=0"`
}

// CostPerOz returns the stored cost per ounce, or derives one from the unit price.
// Pound and ounce units convert exactly; anything else assumes 8 oz per unit.
func (p Product) CostPerOz() float64 {
	if p.CostPerOzSet != nil {
		return *p.CostPerOzSet
	}
	switch strings.ToLower(strings.TrimSpace(p.Unit)) {
	case units.Lb:
		return p.PricePerUnit / 16.0
	case units.Oz:
		return p.PricePerUnit
	default:
		return p.PricePerUnit / 8.0
	}
}

// Validate checks the product at the catalog boundary.
func (p Product) Validate() error {
	return common.ValidateStruct(p)
}

// Names returns the product names in catalog order.
func Names(catalog []Product) []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}
