package domain

import "time"

// Campaign kind constants. Flash sales and sales are time-boxed campaigns
// whose member products are excluded from targeted discounts (anti-stacking).
const (
	CampaignFlashSale = "flash_sale"
	CampaignSale      = "sale"
)

// Campaign status constants.
const (
	CampaignDraft     = "draft"
	CampaignPublished = "published"
	CampaignArchived  = "archived"
)

// Campaign is a time-boxed flash-sale or sale.
type Campaign struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Status   string    `json:"status"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// IsLive reports whether the campaign is published and inside its window.
func (c *Campaign) IsLive(now time.Time) bool {
	return c.Status == CampaignPublished && !now.Before(c.StartsAt) && !now.After(c.EndsAt)
}

// CampaignItem is a campaign pivot row: a variant sold at a promo price with
// an optional campaign-scoped stock pool. PromoStock <= 0 means unlimited
// (the variant's base stock is the only constraint).
type CampaignItem struct {
	CampaignID int64 `json:"campaign_id"`
	ProductID  int64 `json:"product_id"`
	VariantID  int64 `json:"variant_id"`
	PromoPrice int64 `json:"promo_price"`
	PromoStock int   `json:"promo_stock"`
}
