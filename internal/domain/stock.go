package domain

import "time"

// ChannelStock partitions a variant's sellable stock per sales channel.
type ChannelStock struct {
	ID            int64  `json:"id"`
	VariantID     int64  `json:"variant_id"`
	Channel       string `json:"channel"`
	Stock         int    `json:"stock"`
	ReservedStock int    `json:"reserved_stock"`
}

// Available returns the channel stock not held by reservations.
func (c *ChannelStock) Available() int {
	return c.Stock - c.ReservedStock
}

// Stock movement type constants. The ledger is append-only; the sum of
// movements per variant reconciles to the variant's current stock.
const (
	MovementOrder                      = "order"
	MovementOrderCancel                = "order_cancel"
	MovementBundleAssemble             = "bundle_assemble"
	MovementBundleAssembleComponent    = "bundle_assemble_component"
	MovementBundleDisassemble          = "bundle_disassemble"
	MovementBundleDisassembleComponent = "bundle_disassemble_component"
	MovementBundleConsumeComponent     = "bundle_consume_component"
	MovementBundleRestoreComponent     = "bundle_restore_component"
	MovementAdjustment                 = "adjustment"
)

// StockMovement is one append-only ledger entry for a variant.
type StockMovement struct {
	ID        int64     `json:"id"`
	VariantID int64     `json:"variant_id"`
	Change    int       `json:"change"`
	Type      string    `json:"type"`
	RelatedID string    `json:"related_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
