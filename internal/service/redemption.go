package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// RedemptionLedger runs the reserve/use/cancel state machine over discount
// usage quotas. Every transition locks the discount row first, so the
// invariant usage_count + reserved_count <= usage_limit holds under any
// interleaving of concurrent checkouts.
//
// MarkUsed and CancelReserve are idempotent: a transaction already outside
// RESERVED is success, because payment webhooks deliver duplicates.
type RedemptionLedger struct {
	db          database.TxStarter
	discounts   repository.DiscountRepository
	redemptions repository.RedemptionRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewRedemptionLedger creates a new redemption ledger. A nil clock falls
// back to time.Now.
func NewRedemptionLedger(
	db database.TxStarter,
	discounts repository.DiscountRepository,
	redemptions repository.RedemptionRepository,
	logger *slog.Logger,
	now func() time.Time,
) *RedemptionLedger {
	if now == nil {
		now = time.Now
	}
	return &RedemptionLedger{
		db:          db,
		discounts:   discounts,
		redemptions: redemptions,
		logger:      logger,
		now:         now,
	}
}

// ReserveTx reserves one usage of a discount for a transaction, inside the
// caller's transaction. Fails with DISCOUNT_LIMIT_REACHED when the quota is
// exhausted; the unique index on transaction_id rejects double reservation.
func (l *RedemptionLedger) ReserveTx(ctx context.Context, q database.DBTX, discountID int64, transactionID string, userID int64) error {
	d, err := l.discounts.GetForUpdate(ctx, q, discountID)
	if err != nil {
		return err
	}
	if !d.HasUsageAvailable() {
		return apperrors.DiscountLimitReached(d.Code)
	}

	if err := l.discounts.AdjustCounters(ctx, q, discountID, 1, 0); err != nil {
		return err
	}
	return l.redemptions.Insert(ctx, q, &domain.Redemption{
		DiscountID:    discountID,
		TransactionID: transactionID,
		UserID:        userID,
		DiscountCode:  d.Code,
		Status:        domain.RedemptionReserved,
		ReservedAt:    l.now(),
	})
}

// MarkUsedTx moves a reservation to USED inside the caller's transaction,
// shifting the reserved count into the usage count. Missing or already
// settled reservations are a no-op.
func (l *RedemptionLedger) MarkUsedTx(ctx context.Context, q database.DBTX, transactionID string) error {
	red, err := l.redemptions.GetByTransactionForUpdate(ctx, q, transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if !red.IsReserved() {
		l.logger.DebugContext(ctx, "redemption already settled",
			slog.String("transaction_id", transactionID),
			slog.String("status", red.Status))
		return nil
	}

	if _, err := l.discounts.GetForUpdate(ctx, q, red.DiscountID); err != nil {
		return err
	}
	if err := l.discounts.AdjustCounters(ctx, q, red.DiscountID, -1, 1); err != nil {
		return err
	}
	return l.redemptions.SetStatus(ctx, q, red.ID, domain.RedemptionUsed, l.now())
}

// CancelReserveTx releases a reservation inside the caller's transaction,
// decrementing the reserved count. Missing or already settled reservations
// are a no-op.
func (l *RedemptionLedger) CancelReserveTx(ctx context.Context, q database.DBTX, transactionID string) error {
	red, err := l.redemptions.GetByTransactionForUpdate(ctx, q, transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if !red.IsReserved() {
		return nil
	}

	if _, err := l.discounts.GetForUpdate(ctx, q, red.DiscountID); err != nil {
		return err
	}
	if err := l.discounts.AdjustCounters(ctx, q, red.DiscountID, -1, 0); err != nil {
		return err
	}
	return l.redemptions.SetStatus(ctx, q, red.ID, domain.RedemptionCancelled, l.now())
}

// Reserve runs ReserveTx in its own transaction.
func (l *RedemptionLedger) Reserve(ctx context.Context, discountID int64, transactionID string, userID int64) error {
	return database.WithinTx(ctx, l.db, func(tx pgx.Tx) error {
		return l.ReserveTx(ctx, tx, discountID, transactionID, userID)
	})
}

// MarkUsed runs MarkUsedTx in its own transaction.
func (l *RedemptionLedger) MarkUsed(ctx context.Context, transactionID string) error {
	return database.WithinTx(ctx, l.db, func(tx pgx.Tx) error {
		return l.MarkUsedTx(ctx, tx, transactionID)
	})
}

// CancelReserve runs CancelReserveTx in its own transaction.
func (l *RedemptionLedger) CancelReserve(ctx context.Context, transactionID string) error {
	return database.WithinTx(ctx, l.db, func(tx pgx.Tx) error {
		return l.CancelReserveTx(ctx, tx, transactionID)
	})
}
