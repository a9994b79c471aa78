package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/pricing"
	"github.com/utafrali/PromotionGo/pkg/database"
)

// PricingRepository gathers the rows a pricing snapshot is built from. It
// implements pricing.Loader; schedule and usage filtering happen in
// pricing.BuildSnapshot so queries stay simple.
type PricingRepository struct {
	pool database.DBTX
	now  func() time.Time
}

// NewPricingRepository creates a new snapshot loader. A nil clock falls back
// to time.Now.
func NewPricingRepository(pool database.DBTX, now func() time.Time) *PricingRepository {
	if now == nil {
		now = time.Now
	}
	return &PricingRepository{pool: pool, now: now}
}

// LoadSnapshot assembles a fresh pricing snapshot from the store.
func (r *PricingRepository) LoadSnapshot(ctx context.Context) (*pricing.Snapshot, error) {
	now := r.now()

	discounts, err := r.listCandidateDiscounts(ctx, now)
	if err != nil {
		return nil, err
	}

	targets, err := r.listAllTargets(ctx)
	if err != nil {
		return nil, err
	}

	overrides, err := r.listOverrideRules(ctx)
	if err != nil {
		return nil, err
	}

	legacy, err := r.listLegacyRules(ctx)
	if err != nil {
		return nil, err
	}

	blocked, err := r.listBlockedProductIDs(ctx, now)
	if err != nil {
		return nil, err
	}

	return pricing.BuildSnapshot(pricing.BuildInput{
		Now:               now,
		Discounts:         discounts,
		Targets:           targets,
		OverrideRules:     overrides,
		LegacyRules:       legacy,
		BlockedProductIDs: blocked,
	}), nil
}

// listCandidateDiscounts narrows to rows that can possibly be live at now;
// the weekday mask and usage limit are checked in BuildSnapshot.
func (r *PricingRepository) listCandidateDiscounts(ctx context.Context, now time.Time) ([]domain.Discount, error) {
	query := `
		SELECT` + discountColumns + `
		FROM discounts
		WHERE deleted_at IS NULL AND is_active = true
		  AND started_at <= $1 AND expired_at >= $1
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list candidate discounts: %w", err)
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(
			&d.ID, &d.Code, &d.Name, &d.ValueType, &d.Value, &d.MaxDiscount, &d.AppliesTo,
			&d.MinOrderAmount, &d.MinOrderQty, &d.EligibilityType,
			&d.UsageLimit, &d.UsageCount, &d.ReservedCount,
			&d.IsActive, &d.IsEcommerce, &d.IsPos, &d.IsAuto,
			&d.StartedAt, &d.ExpiredAt, &d.DaysOfWeekMask,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate discount row: %w", err)
		}
		discounts = append(discounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate discount rows: %w", err)
	}
	return discounts, nil
}

func (r *PricingRepository) listAllTargets(ctx context.Context) ([]domain.DiscountTarget, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT dt.discount_id, dt.type, dt.target_id
		 FROM discount_targets dt
		 JOIN discounts d ON d.id = dt.discount_id
		 WHERE d.deleted_at IS NULL AND d.is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("list snapshot targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.DiscountTarget
	for rows.Next() {
		var t domain.DiscountTarget
		if err := rows.Scan(&t.DiscountID, &t.Type, &t.TargetID); err != nil {
			return nil, fmt.Errorf("scan snapshot target row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot target rows: %w", err)
	}
	return targets, nil
}

// listOverrideRules loads active per-variant override rows joined with the
// variant's current price.
func (r *PricingRepository) listOverrideRules(ctx context.Context) (map[int64][]pricing.VariantRule, error) {
	query := `
		SELECT dvi.discount_id, dvi.variant_id, dvi.product_id,
		       dvi.value_type, dvi.value, dvi.max_discount, pv.price
		FROM discount_variant_items dvi
		JOIN product_variants pv ON pv.id = dvi.variant_id
		WHERE dvi.is_active = true AND pv.deleted_at IS NULL`

	return r.collectRules(ctx, query, "override")
}

// listLegacyRules derives rules from VARIANT target rows. These carry no
// value of their own; the discount's top-level value applies.
func (r *PricingRepository) listLegacyRules(ctx context.Context) (map[int64][]pricing.VariantRule, error) {
	query := `
		SELECT dt.discount_id, pv.id, pv.product_id,
		       '', 0::bigint, 0::bigint, pv.price
		FROM discount_targets dt
		JOIN product_variants pv ON pv.id = dt.target_id
		WHERE dt.type = 'VARIANT' AND pv.deleted_at IS NULL`

	return r.collectRules(ctx, query, "legacy")
}

func (r *PricingRepository) collectRules(ctx context.Context, query, kind string) (map[int64][]pricing.VariantRule, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s variant rules: %w", kind, err)
	}
	defer rows.Close()

	rules := make(map[int64][]pricing.VariantRule)
	for rows.Next() {
		var (
			discountID int64
			rule       pricing.VariantRule
		)
		if err := rows.Scan(&discountID, &rule.VariantID, &rule.ProductID, &rule.ValueType, &rule.Value, &rule.MaxDiscount, &rule.Price); err != nil {
			return nil, fmt.Errorf("scan %s variant rule row: %w", kind, err)
		}
		rules[discountID] = append(rules[discountID], rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s variant rule rows: %w", kind, err)
	}
	return rules, nil
}

func (r *PricingRepository) listBlockedProductIDs(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		SELECT DISTINCT ci.product_id
		FROM campaign_items ci
		JOIN campaigns c ON c.id = ci.campaign_id
		WHERE c.status = $1 AND c.starts_at <= $2 AND c.ends_at >= $2`

	rows, err := r.pool.Query(ctx, query, domain.CampaignPublished, now)
	if err != nil {
		return nil, fmt.Errorf("list blocked product ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blocked product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked product ids: %w", err)
	}
	return ids, nil
}

// ListProductPricing returns the listing-time price spans for the given
// products, used by the pricing handler to resolve extra discounts.
func (r *PricingRepository) ListProductPricing(ctx context.Context, productIDs []int64) ([]pricing.ProductPricing, error) {
	if len(productIDs) == 0 {
		return []pricing.ProductPricing{}, nil
	}

	query := `
		SELECT p.id, p.brand_id, p.category_id, MIN(pv.price), MAX(pv.price)
		FROM products p
		JOIN product_variants pv ON pv.product_id = p.id AND pv.deleted_at IS NULL
		WHERE p.id = ANY($1) AND p.deleted_at IS NULL
		GROUP BY p.id, p.brand_id, p.category_id
		ORDER BY p.id ASC`

	rows, err := r.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list product pricing: %w", err)
	}
	defer rows.Close()

	var out []pricing.ProductPricing
	for rows.Next() {
		var pp pricing.ProductPricing
		if err := rows.Scan(&pp.ProductID, &pp.BrandID, &pp.CategoryID, &pp.MinPrice, &pp.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan product pricing row: %w", err)
		}
		out = append(out, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product pricing rows: %w", err)
	}

	if out == nil {
		out = []pricing.ProductPricing{}
	}
	return out, nil
}
