package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Order lines embed a JSONB metadata snapshot that the cancellation path
// replays verbatim.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts an order row inside the caller's transaction.
func (r *OrderRepository) Create(ctx context.Context, q database.DBTX, o *domain.Order) error {
	_, err := q.Exec(ctx,
		`INSERT INTO orders (id, user_id, channel, status, discount_id, discount_amount, auto_discount_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, o.Channel, o.Status, o.DiscountID, o.DiscountAmount, o.AutoCode,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// AddLine inserts an order line with its metadata snapshot and returns the
// new line id.
func (r *OrderRepository) AddLine(ctx context.Context, q database.DBTX, line *domain.OrderLine) (int64, error) {
	meta, err := json.Marshal(line.Meta)
	if err != nil {
		return 0, fmt.Errorf("marshal reservation meta: %w", err)
	}

	var id int64
	err = q.QueryRow(ctx,
		`INSERT INTO order_lines (order_id, variant_id, product_id, qty, unit_price, meta, restored)
		 VALUES ($1, $2, $3, $4, $5, $6, false)
		 RETURNING id`,
		line.OrderID, line.VariantID, line.ProductID, line.Qty, line.UnitPrice, meta,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add order line: %w", err)
	}
	return id, nil
}

// GetByID retrieves an order without locking.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetForUpdate locks and returns the order row inside the caller's
// transaction. Cancellation serializes on this lock so duplicate webhook
// deliveries cannot restore twice.
func (r *OrderRepository) GetForUpdate(ctx context.Context, q database.DBTX, id string) (*domain.Order, error) {
	return r.get(ctx, q, id, true)
}

func (r *OrderRepository) get(ctx context.Context, q database.DBTX, id string, lock bool) (*domain.Order, error) {
	query := `
		SELECT id, user_id, channel, status, discount_id, discount_amount, auto_discount_code, created_at, cancelled_at
		FROM orders
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var o domain.Order
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.Channel, &o.Status,
		&o.DiscountID, &o.DiscountAmount, &o.AutoCode,
		&o.CreatedAt, &o.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ListLines returns all lines of an order with their metadata snapshots
// unmarshalled.
func (r *OrderRepository) ListLines(ctx context.Context, q database.DBTX, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, variant_id, product_id, qty, unit_price, meta, restored, created_at
		 FROM order_lines
		 WHERE order_id = $1
		 ORDER BY id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var (
			l    domain.OrderLine
			meta []byte
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.ProductID, &l.Qty, &l.UnitPrice, &meta, &l.Restored, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &l.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal reservation meta: %w", err)
			}
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order line rows: %w", err)
	}

	if lines == nil {
		lines = []domain.OrderLine{}
	}
	return lines, nil
}

// MarkLineRestored flags a line so a second restore pass skips it.
func (r *OrderRepository) MarkLineRestored(ctx context.Context, q database.DBTX, lineID int64) error {
	ct, err := q.Exec(ctx,
		`UPDATE order_lines SET restored = true WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("mark order line restored: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order line", fmt.Sprint(lineID))
	}
	return nil
}

// SetStatus moves the order to a new status, stamping cancelled_at when the
// status is cancelled.
func (r *OrderRepository) SetStatus(ctx context.Context, q database.DBTX, id, status string, at time.Time) error {
	var (
		query string
		args  []any
	)
	if status == domain.OrderCancelled {
		query = `UPDATE orders SET status = $1, cancelled_at = $2 WHERE id = $3`
		args = []any{status, at, id}
	} else {
		query = `UPDATE orders SET status = $1 WHERE id = $2`
		args = []any{status, id}
	}

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
