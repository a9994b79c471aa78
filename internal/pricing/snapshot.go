package pricing

import (
	"time"

	"github.com/utafrali/PromotionGo/internal/domain"
)

// VariantRule is one per-variant pricing rule inside a snapshot. An empty
// ValueType means the rule has no override of its own and the discount's
// top-level value applies.
type VariantRule struct {
	VariantID   int64  `json:"variant_id"`
	ProductID   int64  `json:"product_id"`
	ValueType   string `json:"value_type,omitempty"`
	Value       int64  `json:"value,omitempty"`
	MaxDiscount int64  `json:"max_discount,omitempty"`
	Price       int64  `json:"price"`
}

// Snapshot is an immutable view of every discount relevant to listing-time
// pricing: schedule-valid, usage-available discounts, their target sets, the
// per-discount per-product variant rule maps, and the products blocked by a
// live flash-sale or sale. Snapshots are display-only; checkout re-reads and
// locks authoritative rows.
type Snapshot struct {
	Discounts       []domain.Discount
	CategoryTargets map[int64]map[int64]struct{}
	BrandTargets    map[int64]map[int64]struct{}
	ProductTargets  map[int64]map[int64]struct{}
	VariantRules    map[int64]map[int64][]VariantRule
	BlockedProducts map[int64]struct{}
	BuiltAt         time.Time

	variantSets map[int64]map[int64]struct{}
}

// BuildInput carries the raw rows a snapshot is assembled from. OverrideRules
// come from discount_variant_items joined to variant prices; LegacyRules are
// derived from VARIANT and ATTRIBUTE_VALUE target rows. Both are keyed by
// discount id.
type BuildInput struct {
	Now               time.Time
	Discounts         []domain.Discount
	Targets           []domain.DiscountTarget
	OverrideRules     map[int64][]VariantRule
	LegacyRules       map[int64][]VariantRule
	BlockedProductIDs []int64
}

// BuildSnapshot assembles a snapshot from raw rows. Discounts that are not
// schedule-valid or have exhausted their usage limit are dropped here so the
// resolver never sees them. When a discount has any override rules its legacy
// rules are ignored entirely; the two sources are never merged.
func BuildSnapshot(in BuildInput) *Snapshot {
	snap := &Snapshot{
		CategoryTargets: make(map[int64]map[int64]struct{}),
		BrandTargets:    make(map[int64]map[int64]struct{}),
		ProductTargets:  make(map[int64]map[int64]struct{}),
		VariantRules:    make(map[int64]map[int64][]VariantRule),
		BlockedProducts: make(map[int64]struct{}, len(in.BlockedProductIDs)),
		BuiltAt:         in.Now,
		variantSets:     make(map[int64]map[int64]struct{}),
	}

	live := make(map[int64]struct{}, len(in.Discounts))
	for _, d := range in.Discounts {
		if !d.IsScheduleActive(in.Now) || !d.HasUsageAvailable() {
			continue
		}
		snap.Discounts = append(snap.Discounts, d)
		live[d.ID] = struct{}{}
	}

	for _, t := range in.Targets {
		if _, ok := live[t.DiscountID]; !ok {
			continue
		}
		var set map[int64]map[int64]struct{}
		switch t.Type {
		case domain.TargetCategory:
			set = snap.CategoryTargets
		case domain.TargetBrand:
			set = snap.BrandTargets
		case domain.TargetProduct:
			set = snap.ProductTargets
		default:
			continue
		}
		if set[t.DiscountID] == nil {
			set[t.DiscountID] = make(map[int64]struct{})
		}
		set[t.DiscountID][t.TargetID] = struct{}{}
	}

	for id := range live {
		rules := in.OverrideRules[id]
		if len(rules) == 0 {
			rules = in.LegacyRules[id]
		}
		if len(rules) == 0 {
			continue
		}
		byProduct := make(map[int64][]VariantRule)
		variantSet := make(map[int64]struct{}, len(rules))
		for _, r := range rules {
			byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
			variantSet[r.VariantID] = struct{}{}
		}
		snap.VariantRules[id] = byProduct
		snap.variantSets[id] = variantSet
	}

	for _, pid := range in.BlockedProductIDs {
		snap.BlockedProducts[pid] = struct{}{}
	}
	return snap
}

// Blocked reports whether the product is inside a live flash-sale or sale.
func (s *Snapshot) Blocked(productID int64) bool {
	_, ok := s.BlockedProducts[productID]
	return ok
}

// VariantEligible reports whether a variant appears in the discount's rule
// map.
func (s *Snapshot) VariantEligible(discountID, variantID int64) bool {
	_, ok := s.variantSets[discountID][variantID]
	return ok
}
