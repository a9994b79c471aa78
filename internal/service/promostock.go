package service

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// PromoStockPool manages campaign-scoped stock pools. Pool stock is
// independent of the variant's base stock; a pivot row with promo_stock <= 0
// means the pool is unlimited and only base stock constrains the sale.
type PromoStockPool struct {
	campaigns repository.CampaignRepository
	now       func() time.Time
}

// NewPromoStockPool creates a new promo stock pool. A nil clock falls back
// to time.Now.
func NewPromoStockPool(campaigns repository.CampaignRepository, now func() time.Time) *PromoStockPool {
	if now == nil {
		now = time.Now
	}
	return &PromoStockPool{campaigns: campaigns, now: now}
}

// Consume debits the campaign pool for a promo-priced cart line inside the
// caller's transaction. The returned snapshot records whether a decrement
// actually happened; Restore trusts only that snapshot.
func (p *PromoStockPool) Consume(ctx context.Context, q database.DBTX, meta *domain.PromoMeta, variantID int64, qty int) (*domain.PromoSnapshot, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidInput("qty must be positive")
	}

	campaign, err := p.campaigns.GetByID(ctx, meta.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsLive(p.now()) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("campaign %d is not live", meta.CampaignID))
	}

	item, err := p.campaigns.GetItemForUpdate(ctx, q, meta.CampaignID, variantID)
	if err != nil {
		return nil, err
	}

	snap := &domain.PromoSnapshot{Kind: meta.Kind, CampaignID: meta.CampaignID}

	// promo_stock <= 0 means unlimited pool: nothing to debit.
	if item.PromoStock <= 0 {
		return snap, nil
	}

	if item.PromoStock < qty {
		return nil, apperrors.InsufficientStock(fmt.Sprintf("promo stock for variant %d", variantID), qty, item.PromoStock)
	}
	if err := p.campaigns.AdjustItemPromoStock(ctx, q, meta.CampaignID, variantID, -qty); err != nil {
		return nil, err
	}
	snap.StockDecremented = true
	return snap, nil
}

// Restore credits the pool back for a cancelled line. It is a no-op unless
// the persisted snapshot says the consume actually decremented.
func (p *PromoStockPool) Restore(ctx context.Context, q database.DBTX, snap *domain.PromoSnapshot, variantID int64, qty int) error {
	if snap == nil || !snap.StockDecremented {
		return nil
	}
	return p.campaigns.AdjustItemPromoStock(ctx, q, snap.CampaignID, variantID, qty)
}
