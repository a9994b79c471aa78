package domain

// Discount target type constants. A discount owns a set of tagged target
// rows; the tag says what kind of catalog entity the id points at.
const (
	TargetCategory       = "CATEGORY"
	TargetBrand          = "BRAND"
	TargetProduct        = "PRODUCT"
	TargetVariant        = "VARIANT"
	TargetAttributeValue = "ATTRIBUTE_VALUE"
)

// DiscountTarget is one polymorphic target row of a discount.
type DiscountTarget struct {
	DiscountID int64  `json:"discount_id"`
	Type       string `json:"type"`
	TargetID   int64  `json:"target_id"`
}

// ValidTargetTypes returns the set of valid target types.
func ValidTargetTypes() []string {
	return []string{TargetCategory, TargetBrand, TargetProduct, TargetVariant, TargetAttributeValue}
}

// IsValidTargetType checks whether the given target type is valid.
func IsValidTargetType(t string) bool {
	for _, v := range ValidTargetTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// DiscountVariantItem is a per-variant pricing override for a discount. When
// any override rows exist for a discount they supersede the legacy
// target-derived variant mapping for that discount entirely; the two sources
// are never merged.
type DiscountVariantItem struct {
	DiscountID  int64  `json:"discount_id"`
	VariantID   int64  `json:"variant_id"`
	ProductID   int64  `json:"product_id"`
	ValueType   string `json:"value_type"`
	Value       int64  `json:"value"`
	MaxDiscount int64  `json:"max_discount"`
	PromoStock  int    `json:"promo_stock"`
	IsActive    bool   `json:"is_active"`
}
