package pricing

import (
	"github.com/utafrali/PromotionGo/internal/domain"
)

// ProductPricing is the listing-time view of a product the resolver works on.
// Min/Max span the product's variant prices.
type ProductPricing struct {
	ProductID  int64
	BrandID    int64
	CategoryID int64
	MinPrice   int64
	MaxPrice   int64
}

// ExtraDiscount is the single best discount a product qualifies for at
// listing time. Eligible bounds span only the variants the discount reaches;
// Final bounds are those prices after the discount.
type ExtraDiscount struct {
	DiscountID           int64                 `json:"discount_id"`
	Code                 string                `json:"code"`
	Label                string                `json:"label"`
	ValueType            string                `json:"value_type"`
	Value                int64                 `json:"value"`
	MaxDiscount          int64                 `json:"max_discount,omitempty"`
	AppliesTo            string                `json:"applies_to"`
	RulesByVariantID     map[int64]VariantRule `json:"rules_by_variant_id,omitempty"`
	BaseMin              int64                 `json:"base_min"`
	BaseMax              int64                 `json:"base_max"`
	EligibleMin          int64                 `json:"eligible_min"`
	EligibleMax          int64                 `json:"eligible_max"`
	FinalMin             int64                 `json:"final_min"`
	FinalMax             int64                 `json:"final_max"`
	EligibleVariantCount int                   `json:"eligible_variant_count,omitempty"`

	saving int64
}

// ResolveExtraDiscount picks the best discount for a product from the
// snapshot. Products inside a live flash-sale or sale only qualify for
// storewide (ALL) discounts; every targeted scope is suppressed for them.
// Ties on saving go to the higher discount id.
func ResolveExtraDiscount(p ProductPricing, snap *Snapshot) *ExtraDiscount {
	var best *ExtraDiscount
	blocked := snap.Blocked(p.ProductID)

	for i := range snap.Discounts {
		d := &snap.Discounts[i]
		if blocked && d.AppliesTo != domain.AppliesToAll {
			continue
		}

		var cand *ExtraDiscount
		switch d.AppliesTo {
		case domain.AppliesToAll:
			cand = wholeRangeCandidate(d, p)
		case domain.AppliesToMinOrder:
			// Listing time has no cart, so only promise the discount when a
			// single cheapest unit already clears the thresholds.
			if p.MinPrice >= d.MinOrderAmount && d.MinOrderQty <= 1 {
				cand = wholeRangeCandidate(d, p)
			}
		case domain.AppliesToCategory:
			if _, ok := snap.CategoryTargets[d.ID][p.CategoryID]; ok {
				cand = wholeRangeCandidate(d, p)
			}
		case domain.AppliesToBrand:
			if _, ok := snap.BrandTargets[d.ID][p.BrandID]; ok {
				cand = wholeRangeCandidate(d, p)
			}
		case domain.AppliesToProduct:
			if _, ok := snap.ProductTargets[d.ID][p.ProductID]; ok {
				cand = wholeRangeCandidate(d, p)
			}
		case domain.AppliesToVariant:
			cand = variantCandidate(d, p, snap.VariantRules[d.ID][p.ProductID])
		}

		if cand == nil {
			continue
		}
		if best == nil || cand.saving > best.saving ||
			(cand.saving == best.saving && cand.DiscountID > best.DiscountID) {
			best = cand
		}
	}
	return best
}

func wholeRangeCandidate(d *domain.Discount, p ProductPricing) *ExtraDiscount {
	finalMin := p.MinPrice - d.Amount(p.MinPrice)
	finalMax := p.MaxPrice - d.Amount(p.MaxPrice)
	return &ExtraDiscount{
		DiscountID:  d.ID,
		Code:        d.Code,
		Label:       d.Name,
		ValueType:   d.ValueType,
		Value:       d.Value,
		MaxDiscount: d.MaxDiscount,
		AppliesTo:   d.AppliesTo,
		BaseMin:     p.MinPrice,
		BaseMax:     p.MaxPrice,
		EligibleMin: p.MinPrice,
		EligibleMax: p.MaxPrice,
		FinalMin:    finalMin,
		FinalMax:    finalMax,
		saving:      d.Amount(p.MaxPrice),
	}
}

func variantCandidate(d *domain.Discount, p ProductPricing, rules []VariantRule) *ExtraDiscount {
	if len(rules) == 0 {
		return nil
	}

	cand := &ExtraDiscount{
		DiscountID:           d.ID,
		Code:                 d.Code,
		Label:                d.Name,
		ValueType:            d.ValueType,
		Value:                d.Value,
		MaxDiscount:          d.MaxDiscount,
		AppliesTo:            d.AppliesTo,
		RulesByVariantID:     make(map[int64]VariantRule, len(rules)),
		BaseMin:              p.MinPrice,
		BaseMax:              p.MaxPrice,
		EligibleVariantCount: len(rules),
	}

	first := true
	for _, r := range rules {
		amount := ruleAmount(d, r)
		final := r.Price - amount
		cand.RulesByVariantID[r.VariantID] = r

		if first {
			cand.EligibleMin, cand.EligibleMax = r.Price, r.Price
			cand.FinalMin, cand.FinalMax = final, final
			cand.saving = amount
			first = false
			continue
		}
		if r.Price < cand.EligibleMin {
			cand.EligibleMin = r.Price
		}
		if r.Price > cand.EligibleMax {
			cand.EligibleMax = r.Price
		}
		if final < cand.FinalMin {
			cand.FinalMin = final
		}
		if final > cand.FinalMax {
			cand.FinalMax = final
		}
		if amount > cand.saving {
			cand.saving = amount
		}
	}
	return cand
}

// ruleAmount computes a per-variant discount amount, falling back to the
// discount's top-level value when the rule carries no override of its own.
func ruleAmount(d *domain.Discount, r VariantRule) int64 {
	if r.ValueType == "" {
		return d.Amount(r.Price)
	}
	return domain.DiscountAmount(r.ValueType, r.Value, r.MaxDiscount, r.Price)
}
