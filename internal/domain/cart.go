package domain

import "time"

// Cart is the user's pending cart, kept in Redis until checkout reserves it.
type Cart struct {
	UserID    int64      `json:"user_id"`
	Channel   string     `json:"channel"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RemoveLines drops the lines for the given variant ids, returning how many
// were removed. Checkout calls this after a successful reservation.
func (c *Cart) RemoveLines(variantIDs []int64) int {
	drop := make(map[int64]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		drop[id] = struct{}{}
	}

	kept := c.Lines[:0]
	removed := 0
	for _, l := range c.Lines {
		if _, ok := drop[l.VariantID]; ok {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	c.Lines = kept
	return removed
}
