package service

import (
	"context"
	"errors"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// InventoryService answers availability questions across the three stock
// representations: plain variants and KIT bundles carry their own stock,
// VIRTUAL bundles derive it from components at read time.
type InventoryService struct {
	db      database.DBTX
	catalog repository.CatalogRepository
}

// NewInventoryService creates a new inventory resolver.
func NewInventoryService(db database.DBTX, catalog repository.CatalogRepository) *InventoryService {
	return &InventoryService{db: db, catalog: catalog}
}

// AvailableStock returns the sellable quantity of a variant. For VIRTUAL
// bundles the value is derived from component stock and never read from the
// variant row, which only holds a denormalized display copy.
func (s *InventoryService) AvailableStock(ctx context.Context, variantID int64) (int, error) {
	v, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return 0, err
	}
	return s.availableStock(ctx, v)
}

// ChannelAvailableStock returns the unreserved stock of a variant's channel
// partition, or the plain availability when the variant is not partitioned.
func (s *InventoryService) ChannelAvailableStock(ctx context.Context, variantID int64, channel string) (int, error) {
	cs, err := s.catalog.GetChannelStock(ctx, variantID, channel)
	if err == nil {
		return cs.Available(), nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.AvailableStock(ctx, variantID)
	}
	return 0, err
}

func (s *InventoryService) availableStock(ctx context.Context, v *domain.ProductVariant) (int, error) {
	if !v.IsVirtualBundle() {
		return v.Stock, nil
	}

	components, err := s.catalog.ListComponents(ctx, s.db, v.ID)
	if err != nil {
		return 0, err
	}
	return domain.VirtualBundleStock(components), nil
}
