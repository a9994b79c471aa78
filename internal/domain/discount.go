package domain

import (
	"time"
)

// Discount value type constants.
const (
	ValueTypePercent = "PERCENT"
	ValueTypeFixed   = "FIXED"
)

// Discount scope (applies_to) constants.
const (
	AppliesToAll      = "ALL"
	AppliesToMinOrder = "MIN_ORDER"
	AppliesToCategory = "CATEGORY"
	AppliesToVariant  = "VARIANT"
	AppliesToBrand    = "BRAND"
	AppliesToProduct  = "PRODUCT"
)

// Discount eligibility type constants.
const (
	EligibilityAll    = "ALL"
	EligibilityUsers  = "USERS"
	EligibilityGroups = "GROUPS"
)

// Sales channel constants.
const (
	ChannelEcommerce = "ecommerce"
	ChannelPos       = "pos"
)

// Discount represents a discount campaign configured through the CMS.
// Amounts are in the smallest currency unit; Value is a plain percentage
// (0-100) when ValueType is PERCENT.
type Discount struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	ValueType       string     `json:"value_type"`
	Value           int64      `json:"value"`
	MaxDiscount     int64      `json:"max_discount"`
	AppliesTo       string     `json:"applies_to"`
	MinOrderAmount  int64      `json:"min_order_amount"`
	MinOrderQty     int        `json:"min_order_qty"`
	EligibilityType string     `json:"eligibility_type"`
	UsageLimit      *int       `json:"usage_limit,omitempty"`
	UsageCount      int        `json:"usage_count"`
	ReservedCount   int        `json:"reserved_count"`
	IsActive        bool       `json:"is_active"`
	IsEcommerce     bool       `json:"is_ecommerce"`
	IsPos           bool       `json:"is_pos"`
	IsAuto          bool       `json:"is_auto"`
	StartedAt       time.Time  `json:"started_at"`
	ExpiredAt       time.Time  `json:"expired_at"`
	DaysOfWeekMask  int        `json:"days_of_week_mask"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// ValidValueTypes returns the set of valid discount value types.
func ValidValueTypes() []string {
	return []string{ValueTypePercent, ValueTypeFixed}
}

// ValidAppliesTo returns the set of valid discount scopes.
func ValidAppliesTo() []string {
	return []string{
		AppliesToAll,
		AppliesToMinOrder,
		AppliesToCategory,
		AppliesToVariant,
		AppliesToBrand,
		AppliesToProduct,
	}
}

// IsValidAppliesTo checks whether the given scope string is valid.
func IsValidAppliesTo(s string) bool {
	for _, v := range ValidAppliesTo() {
		if v == s {
			return true
		}
	}
	return false
}

// WeekdayMask builds a days-of-week bitmask from time.Weekday values
// (bit 0 = Sunday). A zero mask means the discount runs every day.
func WeekdayMask(days []time.Weekday) int {
	mask := 0
	for _, d := range days {
		mask |= 1 << int(d)
	}
	return mask
}

// RunsOn reports whether the discount's weekday mask enables the given day.
func (d *Discount) RunsOn(day time.Weekday) bool {
	if d.DaysOfWeekMask == 0 {
		return true
	}
	return d.DaysOfWeekMask&(1<<int(day)) != 0
}

// IsScheduleActive reports whether the discount is live at the given instant:
// active, not deleted, inside its date window, and enabled for the weekday.
func (d *Discount) IsScheduleActive(now time.Time) bool {
	if !d.IsActive || d.DeletedAt != nil {
		return false
	}
	if now.Before(d.StartedAt) || now.After(d.ExpiredAt) {
		return false
	}
	return d.RunsOn(now.Weekday())
}

// HasUsageAvailable reports whether reserved+used is still below the usage
// limit. A nil limit means unlimited.
func (d *Discount) HasUsageAvailable() bool {
	if d.UsageLimit == nil {
		return true
	}
	return d.UsageCount+d.ReservedCount < *d.UsageLimit
}

// EnabledForChannel reports whether the discount is switched on for the channel.
func (d *Discount) EnabledForChannel(channel string) bool {
	switch channel {
	case ChannelEcommerce:
		return d.IsEcommerce
	case ChannelPos:
		return d.IsPos
	default:
		return false
	}
}

// Amount computes the discount amount for the given price using the
// discount's top-level value and cap.
func (d *Discount) Amount(price int64) int64 {
	return DiscountAmount(d.ValueType, d.Value, d.MaxDiscount, price)
}

// DiscountAmount computes a discount amount for a price. PERCENT values are
// capped by maxDiscount (when set); FIXED values are capped at the price so a
// discounted price can never go negative.
func DiscountAmount(valueType string, value, maxDiscount, price int64) int64 {
	var amount int64
	switch valueType {
	case ValueTypePercent:
		amount = price * value / 100
		if maxDiscount > 0 && amount > maxDiscount {
			amount = maxDiscount
		}
	case ValueTypeFixed:
		amount = value
	default:
		return 0
	}

	if amount > price {
		amount = price
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
