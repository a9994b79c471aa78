package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/event"
	"github.com/utafrali/PromotionGo/internal/pricing"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
	"github.com/utafrali/PromotionGo/pkg/validator"
)

// DiscountService implements the CMS write side of discount campaigns. A
// write replaces the discount's whole target set; it never merges with the
// previous one.
type DiscountService struct {
	db        database.TxStarter
	discounts repository.DiscountRepository
	campaigns repository.CampaignRepository
	cache     *pricing.Cache
	producer  *event.Producer
	logger    *slog.Logger
	now       func() time.Time
}

// NewDiscountService creates a new discount service. A nil clock falls back
// to time.Now.
func NewDiscountService(
	db database.TxStarter,
	discounts repository.DiscountRepository,
	campaigns repository.CampaignRepository,
	cache *pricing.Cache,
	producer *event.Producer,
	logger *slog.Logger,
	now func() time.Time,
) *DiscountService {
	if now == nil {
		now = time.Now
	}
	return &DiscountService{
		db:        db,
		discounts: discounts,
		campaigns: campaigns,
		cache:     cache,
		producer:  producer,
		logger:    logger,
		now:       now,
	}
}

// DiscountTargetsInput is the polymorphic target set of a CMS payload.
type DiscountTargetsInput struct {
	BrandIDs    []int64 `json:"brand_ids"`
	ProductIDs  []int64 `json:"product_ids"`
	VariantIDs  []int64 `json:"variant_ids"`
	CategoryIDs []int64 `json:"category_ids"`
}

// VariantItemInput is one per-variant override row of a CMS payload.
type VariantItemInput struct {
	VariantID   int64  `json:"variant_id" validate:"required,gt=0"`
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	ValueType   string `json:"value_type" validate:"required,oneof=PERCENT FIXED"`
	Value       int64  `json:"value" validate:"required,gt=0"`
	MaxDiscount int64  `json:"max_discount" validate:"gte=0"`
	PromoStock  int    `json:"promo_stock" validate:"gte=0"`
}

// DiscountInput is the CMS create/update payload.
type DiscountInput struct {
	Name            string               `json:"name" validate:"required"`
	Code            string               `json:"code" validate:"required,alphanum,uppercase"`
	ValueType       string               `json:"value_type" validate:"required,oneof=PERCENT FIXED"`
	Value           int64                `json:"value" validate:"required,gt=0"`
	MaxDiscount     int64                `json:"max_discount" validate:"gte=0"`
	AppliesTo       string               `json:"applies_to" validate:"required,oneof=ALL MIN_ORDER CATEGORY VARIANT BRAND PRODUCT"`
	MinOrderAmount  int64                `json:"min_order_amount" validate:"gte=0"`
	MinOrderQty     int                  `json:"min_order_qty" validate:"gte=0"`
	EligibilityType string               `json:"eligibility_type" validate:"required,oneof=ALL USERS GROUPS"`
	UsageLimit      *int                 `json:"usage_limit" validate:"omitempty,gt=0"`
	IsActive        bool                 `json:"is_active"`
	IsEcommerce     bool                 `json:"is_ecommerce"`
	IsPos           bool                 `json:"is_pos"`
	IsAuto          bool                 `json:"is_auto"`
	StartedAt       time.Time            `json:"started_at" validate:"required"`
	ExpiredAt       time.Time            `json:"expired_at" validate:"required"`
	DaysOfWeek      []int                `json:"days_of_week" validate:"dive,gte=0,lte=6"`
	Targets         DiscountTargetsInput `json:"targets"`
	VariantItems    []VariantItemInput   `json:"variant_items" validate:"dive"`
	CustomerIDs     []int64              `json:"customer_ids"`
	GroupIDs        []int64              `json:"customer_group_ids"`
	Transfer        bool                 `json:"transfer"`
}

func (in *DiscountInput) validate() error {
	if err := validator.Validate(in); err != nil {
		return err
	}
	if !in.ExpiredAt.After(in.StartedAt) {
		return apperrors.InvalidInput("expired_at must be after started_at")
	}
	if in.ValueType == domain.ValueTypePercent && in.Value > 100 {
		return apperrors.InvalidInput("percent value must not exceed 100")
	}

	// A VARIANT discount carrying both override rows and a diverging legacy
	// variant target set is a configuration error, not something to resolve
	// by silently preferring one source.
	if len(in.VariantItems) > 0 && len(in.Targets.VariantIDs) > 0 {
		override := make(map[int64]struct{}, len(in.VariantItems))
		for _, it := range in.VariantItems {
			override[it.VariantID] = struct{}{}
		}
		if len(override) != len(in.Targets.VariantIDs) {
			return apperrors.InvalidInput("variant_items and targets.variant_ids diverge")
		}
		for _, id := range in.Targets.VariantIDs {
			if _, ok := override[id]; !ok {
				return apperrors.InvalidInput("variant_items and targets.variant_ids diverge")
			}
		}
	}
	return nil
}

func (in *DiscountInput) toDomain() (*domain.Discount, *repository.DiscountAssociations) {
	days := make([]time.Weekday, 0, len(in.DaysOfWeek))
	for _, d := range in.DaysOfWeek {
		days = append(days, time.Weekday(d))
	}

	d := &domain.Discount{
		Name:            in.Name,
		Code:            in.Code,
		ValueType:       in.ValueType,
		Value:           in.Value,
		MaxDiscount:     in.MaxDiscount,
		AppliesTo:       in.AppliesTo,
		MinOrderAmount:  in.MinOrderAmount,
		MinOrderQty:     in.MinOrderQty,
		EligibilityType: in.EligibilityType,
		UsageLimit:      in.UsageLimit,
		IsActive:        in.IsActive,
		IsEcommerce:     in.IsEcommerce,
		IsPos:           in.IsPos,
		IsAuto:          in.IsAuto,
		StartedAt:       in.StartedAt,
		ExpiredAt:       in.ExpiredAt,
		DaysOfWeekMask:  domain.WeekdayMask(days),
	}

	assoc := &repository.DiscountAssociations{
		CustomerIDs: in.CustomerIDs,
		GroupIDs:    in.GroupIDs,
	}
	for _, id := range in.Targets.BrandIDs {
		assoc.Targets = append(assoc.Targets, domain.DiscountTarget{Type: domain.TargetBrand, TargetID: id})
	}
	for _, id := range in.Targets.ProductIDs {
		assoc.Targets = append(assoc.Targets, domain.DiscountTarget{Type: domain.TargetProduct, TargetID: id})
	}
	for _, id := range in.Targets.CategoryIDs {
		assoc.Targets = append(assoc.Targets, domain.DiscountTarget{Type: domain.TargetCategory, TargetID: id})
	}
	for _, id := range in.Targets.VariantIDs {
		assoc.Targets = append(assoc.Targets, domain.DiscountTarget{Type: domain.TargetVariant, TargetID: id})
	}
	for _, it := range in.VariantItems {
		assoc.VariantItems = append(assoc.VariantItems, domain.DiscountVariantItem{
			VariantID:   it.VariantID,
			ProductID:   it.ProductID,
			ValueType:   it.ValueType,
			Value:       it.Value,
			MaxDiscount: it.MaxDiscount,
			PromoStock:  it.PromoStock,
			IsActive:    true,
		})
	}
	return d, assoc
}

// targetProductIDs collects the product ids a discount's targets reach,
// which is what campaign conflict detection checks against.
func (in *DiscountInput) targetProductIDs() []int64 {
	set := make(map[int64]struct{})
	for _, id := range in.Targets.ProductIDs {
		set[id] = struct{}{}
	}
	for _, it := range in.VariantItems {
		set[it.ProductID] = struct{}{}
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Create validates the payload, resolves campaign conflicts, and writes the
// discount with its full association set.
func (s *DiscountService) Create(ctx context.Context, in *DiscountInput) (*domain.Discount, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.resolveConflicts(ctx, in); err != nil {
		return nil, err
	}

	d, assoc := in.toDomain()
	created, err := s.discounts.Create(ctx, d, assoc)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	s.producer.PublishDiscountChanged(ctx, created, "created")
	s.logger.InfoContext(ctx, "discount created",
		slog.Int64("discount_id", created.ID),
		slog.String("code", created.Code))
	return created, nil
}

// Update validates the payload, resolves campaign conflicts, and replaces
// the discount and its association rows wholesale.
func (s *DiscountService) Update(ctx context.Context, id int64, in *DiscountInput) (*domain.Discount, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.discounts.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.resolveConflicts(ctx, in); err != nil {
		return nil, err
	}

	d, assoc := in.toDomain()
	d.ID = id
	if err := s.discounts.Update(ctx, d, assoc); err != nil {
		return nil, err
	}

	updated, err := s.discounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	s.producer.PublishDiscountChanged(ctx, updated, "updated")
	return updated, nil
}

// resolveConflicts rejects target products that sit inside a live flash-sale
// or sale. When the payload opts in with transfer=true, the products are
// evicted from the conflicting campaign pivots instead and the write
// proceeds. The eviction is an explicit caller decision, never implicit.
func (s *DiscountService) resolveConflicts(ctx context.Context, in *DiscountInput) error {
	productIDs := in.targetProductIDs()
	if len(productIDs) == 0 {
		return nil
	}

	now := s.now()
	conflicts, err := s.campaigns.ListConflicts(ctx, productIDs, now)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}

	if !in.Transfer {
		details := make([]apperrors.PromoConflictDetail, 0, len(conflicts))
		for _, c := range conflicts {
			details = append(details, apperrors.PromoConflictDetail{
				ProductID:  c.ProductID,
				VariantID:  c.VariantID,
				CampaignID: c.CampaignID,
			})
		}
		return apperrors.PromoConflict(details, true)
	}

	var evicted int64
	err = database.WithinTx(ctx, s.db, func(tx pgx.Tx) error {
		evicted, err = s.campaigns.EvictProducts(ctx, tx, productIDs, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("transfer products out of campaigns: %w", err)
	}

	s.logger.InfoContext(ctx, "transferred products out of live campaigns",
		slog.Int("products", len(productIDs)),
		slog.Int64("evicted_rows", evicted))
	return nil
}

// Get returns a discount together with its association rows.
func (s *DiscountService) Get(ctx context.Context, id int64) (*domain.Discount, []domain.DiscountTarget, []domain.DiscountVariantItem, error) {
	d, err := s.discounts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	targets, err := s.discounts.ListTargets(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := s.discounts.ListVariantItems(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, targets, items, nil
}

// List returns a page of discounts.
func (s *DiscountService) List(ctx context.Context, page, perPage int) ([]domain.Discount, int, error) {
	return s.discounts.List(ctx, page, perPage)
}

// Delete soft-deletes a discount and drops it from the pricing snapshot.
func (s *DiscountService) Delete(ctx context.Context, id int64) error {
	d, err := s.discounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.discounts.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate()
	s.producer.PublishDiscountChanged(ctx, d, "deleted")
	return nil
}
