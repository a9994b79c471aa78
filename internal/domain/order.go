package domain

import "time"

// Order status constants.
const (
	OrderReserved  = "reserved"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
)

// CartLine is one line of a checkout request. PromoMeta is present when the
// line was added from a flash-sale or sale listing.
type CartLine struct {
	VariantID    int64      `json:"variant_id"`
	ProductID    int64      `json:"product_id"`
	Qty          int        `json:"qty"`
	UnitPrice    int64      `json:"unit_price"`
	UnitDiscount int64      `json:"unit_discount"`
	Promo        *PromoMeta `json:"promo,omitempty"`
}

// Subtotal returns the line's effective subtotal after per-unit discount.
func (l *CartLine) Subtotal() int64 {
	return (l.UnitPrice - l.UnitDiscount) * int64(l.Qty)
}

// PromoMeta links a cart line to the campaign pivot it was priced from.
type PromoMeta struct {
	Kind       string `json:"kind"`
	CampaignID int64  `json:"campaign_id"`
}

// PromoSnapshot records what the promo pool consumption actually did, so the
// restore path can reverse exactly that and nothing else.
type PromoSnapshot struct {
	Kind             string `json:"kind"`
	CampaignID       int64  `json:"campaign_id"`
	StockDecremented bool   `json:"stock_decremented"`
}

// ComponentDebit records one component decrement of a VIRTUAL bundle
// consumption.
type ComponentDebit struct {
	ComponentVariantID int64 `json:"component_variant_id"`
	QtyDebited         int   `json:"qty_debited"`
}

// ReservationMeta is the per-line metadata snapshot persisted with the order
// line. It is the sole source of truth for compensation: restoration replays
// this snapshot and never re-derives amounts from current state.
type ReservationMeta struct {
	Promo            *PromoSnapshot   `json:"promo,omitempty"`
	BundleMode       string           `json:"bundle_mode,omitempty"`
	BundleComponents []ComponentDebit `json:"bundle_components,omitempty"`
	StockDecremented int              `json:"stock_decremented"`
	ChannelStock     *ChannelDebit    `json:"channel_stock,omitempty"`
}

// ChannelDebit records a channel-stock decrement made during checkout.
type ChannelDebit struct {
	Channel    string `json:"channel"`
	QtyDebited int    `json:"qty_debited"`
}

// OrderLine is a persisted reservation line.
type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	VariantID int64           `json:"variant_id"`
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice int64           `json:"unit_price"`
	Meta      ReservationMeta `json:"meta"`
	Restored  bool            `json:"restored"`
	CreatedAt time.Time       `json:"created_at"`
}

// Order is the checkout attempt the reservation belongs to. Its ID doubles
// as the redemption transaction id.
type Order struct {
	ID             string     `json:"id"`
	UserID         int64      `json:"user_id"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	DiscountID     *int64     `json:"discount_id,omitempty"`
	DiscountAmount int64      `json:"discount_amount"`
	AutoCode       string     `json:"auto_discount_code,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}
