package service

import (
	"context"

	"github.com/utafrali/PromotionGo/internal/pricing"
)

// ProductPricingSource supplies the price spans the listing resolver works on.
type ProductPricingSource interface {
	ListProductPricing(ctx context.Context, productIDs []int64) ([]pricing.ProductPricing, error)
}

// ListingService resolves the display-only extraDiscount object per product.
// It reads the cached snapshot; nothing here locks rows or is consulted at
// checkout time.
type ListingService struct {
	cache    *pricing.Cache
	products ProductPricingSource
}

// NewListingService creates a new listing pricing service.
func NewListingService(cache *pricing.Cache, products ProductPricingSource) *ListingService {
	return &ListingService{cache: cache, products: products}
}

// ExtraDiscounts resolves the best discount per product, keyed by product
// id. Products with no eligible discount are absent from the result.
func (s *ListingService) ExtraDiscounts(ctx context.Context, productIDs []int64) (map[int64]*pricing.ExtraDiscount, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	pricings, err := s.products.ListProductPricing(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*pricing.ExtraDiscount, len(pricings))
	for _, pp := range pricings {
		if extra := pricing.ResolveExtraDiscount(pp, snap); extra != nil {
			out[pp.ProductID] = extra
		}
	}
	return out, nil
}
