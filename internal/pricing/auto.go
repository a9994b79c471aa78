package pricing

import (
	"github.com/utafrali/PromotionGo/internal/domain"
)

// AutoLine is a cart line enriched with the catalog facts auto-discount
// matching needs.
type AutoLine struct {
	domain.CartLine
	BrandID    int64
	CategoryID int64
}

// AutoResult names the automatic discount chosen for a cart and the amount
// it takes off the order total.
type AutoResult struct {
	Discount domain.Discount
	Amount   int64
}

// SelectAutoDiscount picks the automatic discount with the largest positive
// amount for the cart, or nil when none applies. Only isAuto discounts open
// to all users and enabled for the channel compete; the snapshot already
// guarantees schedule validity and usage availability.
//
// Targeted scopes count only lines that carry no prior per-unit discount, so
// a flash-sale line never also feeds an automatic discount.
func SelectAutoDiscount(snap *Snapshot, lines []AutoLine, channel string) *AutoResult {
	var best *AutoResult
	for i := range snap.Discounts {
		d := snap.Discounts[i]
		if !d.IsAuto || d.EligibilityType != domain.EligibilityAll || !d.EnabledForChannel(channel) {
			continue
		}

		amount := DiscountAmountForCart(&d, snap, lines)
		if amount <= 0 {
			continue
		}
		if best == nil || amount > best.Amount ||
			(amount == best.Amount && d.ID > best.Discount.ID) {
			best = &AutoResult{Discount: d, Amount: amount}
		}
	}
	return best
}

// DiscountAmountForCart computes how much a discount takes off a cart:
// the eligible subtotal under the discount's scope, run through the
// discount's value and cap. Zero means the cart does not qualify.
func DiscountAmountForCart(d *domain.Discount, snap *Snapshot, lines []AutoLine) int64 {
	var (
		subtotal int64
		totalQty int
	)
	for i := range lines {
		subtotal += lines[i].Subtotal()
		totalQty += lines[i].Qty
	}

	eligible := eligibleSubtotal(d, snap, lines, subtotal, totalQty)
	if eligible <= 0 {
		return 0
	}
	return domain.DiscountAmount(d.ValueType, d.Value, d.MaxDiscount, eligible)
}

func eligibleSubtotal(d *domain.Discount, snap *Snapshot, lines []AutoLine, subtotal int64, totalQty int) int64 {
	switch d.AppliesTo {
	case domain.AppliesToAll:
		return subtotal
	case domain.AppliesToMinOrder:
		if subtotal < d.MinOrderAmount || totalQty < d.MinOrderQty {
			return 0
		}
		return subtotal
	}

	var eligible int64
	for i := range lines {
		l := &lines[i]
		if l.UnitDiscount != 0 {
			continue
		}
		if lineMatches(d, snap, l) {
			eligible += l.Subtotal()
		}
	}
	return eligible
}

func lineMatches(d *domain.Discount, snap *Snapshot, l *AutoLine) bool {
	switch d.AppliesTo {
	case domain.AppliesToCategory:
		_, ok := snap.CategoryTargets[d.ID][l.CategoryID]
		return ok
	case domain.AppliesToBrand:
		_, ok := snap.BrandTargets[d.ID][l.BrandID]
		return ok
	case domain.AppliesToProduct:
		_, ok := snap.ProductTargets[d.ID][l.ProductID]
		return ok
	case domain.AppliesToVariant:
		return snap.VariantEligible(d.ID, l.VariantID)
	}
	return false
}
