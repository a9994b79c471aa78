package domain

import "time"

// Bundle stock mode constants.
//
// KIT bundles track their own stock, replenished explicitly by assembling
// kits out of component stock. VIRTUAL bundles have no stock of their own;
// availability is derived live from component stock.
const (
	BundleModeKit     = "KIT"
	BundleModeVirtual = "VIRTUAL"
)

// Product carries the product-level fields the engine needs: identity for
// target matching, a name for error messages, and a popularity counter.
type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	BrandID    int64      `json:"brand_id"`
	CategoryID int64      `json:"category_id"`
	Popularity int64      `json:"popularity"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// ProductVariant is a sellable SKU. Stock is authoritative for plain
// variants and KIT bundles; for VIRTUAL bundles it is a denormalized display
// value recomputed after component mutations, never ground truth.
type ProductVariant struct {
	ID              int64      `json:"id"`
	ProductID       int64      `json:"product_id"`
	SKU             string     `json:"sku"`
	Price           int64      `json:"price"`
	Stock           int        `json:"stock"`
	IsBundle        bool       `json:"is_bundle"`
	BundleStockMode string     `json:"bundle_stock_mode,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// IsVirtualBundle reports whether availability must be derived from components.
func (v *ProductVariant) IsVirtualBundle() bool {
	return v.IsBundle && v.BundleStockMode == BundleModeVirtual
}

// IsKitBundle reports whether the variant is an independently stocked bundle.
func (v *ProductVariant) IsKitBundle() bool {
	return v.IsBundle && v.BundleStockMode == BundleModeKit
}

// BundleItem is one bill-of-materials line of a bundle. Composition is a
// single level deep: components must not themselves be bundles.
type BundleItem struct {
	BundleVariantID    int64 `json:"bundle_variant_id"`
	ComponentVariantID int64 `json:"component_variant_id"`
	ComponentQty       int   `json:"component_qty"`
}

// ComponentStock pairs a bill-of-materials line with the component's current
// stock, as loaded for virtual availability computation.
type ComponentStock struct {
	ComponentVariantID int64
	ComponentQty       int
	Stock              int
}

// VirtualBundleStock derives a VIRTUAL bundle's availability: the minimum
// over bill-of-materials lines of floor(componentStock / componentQty).
// An empty bill of materials yields zero.
func VirtualBundleStock(components []ComponentStock) int {
	if len(components) == 0 {
		return 0
	}

	available := -1
	for _, c := range components {
		if c.ComponentQty <= 0 {
			return 0
		}
		n := c.Stock / c.ComponentQty
		if available < 0 || n < available {
			available = n
		}
	}
	if available < 0 {
		available = 0
	}
	return available
}
