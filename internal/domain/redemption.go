package domain

import "time"

// Redemption status constants. The only legal transitions are
// RESERVED -> USED and RESERVED -> CANCELLED.
const (
	RedemptionReserved  = "RESERVED"
	RedemptionUsed      = "USED"
	RedemptionCancelled = "CANCELLED"
)

// Redemption is a soft lock on a discount's usage quota, keyed uniquely by
// the checkout transaction id.
type Redemption struct {
	ID            int64      `json:"id"`
	DiscountID    int64      `json:"discount_id"`
	TransactionID string     `json:"transaction_id"`
	UserID        int64      `json:"user_id"`
	DiscountCode  string     `json:"discount_code"`
	Status        string     `json:"status"`
	ReservedAt    time.Time  `json:"reserved_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// IsReserved reports whether the redemption can still transition.
func (r *Redemption) IsReserved() bool {
	return r.Status == RedemptionReserved
}
