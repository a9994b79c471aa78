package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// RedemptionRepository implements repository.RedemptionRepository using
// PostgreSQL. The unique index on transaction_id enforces at most one
// redemption per checkout attempt.
type RedemptionRepository struct {
	pool database.DBTX
}

// NewRedemptionRepository creates a new PostgreSQL-backed redemption repository.
func NewRedemptionRepository(pool database.DBTX) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Insert writes a new redemption row inside the caller's transaction.
func (r *RedemptionRepository) Insert(ctx context.Context, q database.DBTX, red *domain.Redemption) error {
	_, err := q.Exec(ctx,
		`INSERT INTO discount_redemptions (discount_id, transaction_id, user_id, discount_code, status, reserved_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		red.DiscountID, red.TransactionID, red.UserID, red.DiscountCode, red.Status, red.ReservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// GetByTransactionForUpdate locks and returns the redemption row for a
// transaction inside the caller's transaction.
func (r *RedemptionRepository) GetByTransactionForUpdate(ctx context.Context, q database.DBTX, transactionID string) (*domain.Redemption, error) {
	query := `
		SELECT id, discount_id, transaction_id, user_id, discount_code, status, reserved_at, used_at, cancelled_at
		FROM discount_redemptions
		WHERE transaction_id = $1
		FOR UPDATE`

	var red domain.Redemption
	err := q.QueryRow(ctx, query, transactionID).Scan(
		&red.ID, &red.DiscountID, &red.TransactionID, &red.UserID, &red.DiscountCode,
		&red.Status, &red.ReservedAt, &red.UsedAt, &red.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get redemption for update: %w", err)
	}
	return &red, nil
}

// SetStatus moves a redemption to USED or CANCELLED, stamping the matching
// timestamp column.
func (r *RedemptionRepository) SetStatus(ctx context.Context, q database.DBTX, id int64, status string, at time.Time) error {
	var query string
	switch status {
	case domain.RedemptionUsed:
		query = `UPDATE discount_redemptions SET status = $1, used_at = $2 WHERE id = $3`
	case domain.RedemptionCancelled:
		query = `UPDATE discount_redemptions SET status = $1, cancelled_at = $2 WHERE id = $3`
	default:
		return apperrors.InvalidInput(fmt.Sprintf("invalid redemption status %q", status))
	}

	ct, err := q.Exec(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("set redemption status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("redemption", fmt.Sprint(id))
	}
	return nil
}
