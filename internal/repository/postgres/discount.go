package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

const discountColumns = `
	id, code, name, value_type, value, max_discount, applies_to,
	min_order_amount, min_order_qty, eligibility_type,
	usage_limit, usage_count, reserved_count,
	is_active, is_ecommerce, is_pos, is_auto,
	started_at, expired_at, days_of_week_mask,
	created_at, updated_at, deleted_at`

// DiscountRepository implements repository.DiscountRepository using PostgreSQL.
type DiscountRepository struct {
	pool database.TxStarter
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(pool database.TxStarter) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

func scanDiscount(row pgx.Row) (*domain.Discount, error) {
	var d domain.Discount
	err := row.Scan(
		&d.ID, &d.Code, &d.Name, &d.ValueType, &d.Value, &d.MaxDiscount, &d.AppliesTo,
		&d.MinOrderAmount, &d.MinOrderQty, &d.EligibilityType,
		&d.UsageLimit, &d.UsageCount, &d.ReservedCount,
		&d.IsActive, &d.IsEcommerce, &d.IsPos, &d.IsAuto,
		&d.StartedAt, &d.ExpiredAt, &d.DaysOfWeekMask,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a discount and all of its association rows in one
// transaction.
func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount, assoc *repository.DiscountAssociations) (*domain.Discount, error) {
	query := `
		INSERT INTO discounts (
			code, name, value_type, value, max_discount, applies_to,
			min_order_amount, min_order_qty, eligibility_type,
			usage_limit, is_active, is_ecommerce, is_pos, is_auto,
			started_at, expired_at, days_of_week_mask
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	created := *d
	err := database.WithinTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			d.Code, d.Name, d.ValueType, d.Value, d.MaxDiscount, d.AppliesTo,
			d.MinOrderAmount, d.MinOrderQty, d.EligibilityType,
			d.UsageLimit, d.IsActive, d.IsEcommerce, d.IsPos, d.IsAuto,
			d.StartedAt, d.ExpiredAt, d.DaysOfWeekMask,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert discount: %w", err)
		}
		return r.insertAssociations(ctx, tx, created.ID, assoc)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update rewrites the discount row and replaces every association row
// wholesale. The previous target set is never merged with the new one.
func (r *DiscountRepository) Update(ctx context.Context, d *domain.Discount, assoc *repository.DiscountAssociations) error {
	query := `
		UPDATE discounts SET
			code = $1, name = $2, value_type = $3, value = $4, max_discount = $5,
			applies_to = $6, min_order_amount = $7, min_order_qty = $8,
			eligibility_type = $9, usage_limit = $10,
			is_active = $11, is_ecommerce = $12, is_pos = $13, is_auto = $14,
			started_at = $15, expired_at = $16, days_of_week_mask = $17,
			updated_at = NOW()
		WHERE id = $18 AND deleted_at IS NULL`

	return database.WithinTx(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, query,
			d.Code, d.Name, d.ValueType, d.Value, d.MaxDiscount,
			d.AppliesTo, d.MinOrderAmount, d.MinOrderQty,
			d.EligibilityType, d.UsageLimit,
			d.IsActive, d.IsEcommerce, d.IsPos, d.IsAuto,
			d.StartedAt, d.ExpiredAt, d.DaysOfWeekMask,
			d.ID,
		)
		if err != nil {
			return fmt.Errorf("update discount: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("discount", fmt.Sprint(d.ID))
		}

		if err := r.deleteAssociations(ctx, tx, d.ID); err != nil {
			return err
		}
		return r.insertAssociations(ctx, tx, d.ID, assoc)
	})
}

func (r *DiscountRepository) insertAssociations(ctx context.Context, tx pgx.Tx, discountID int64, assoc *repository.DiscountAssociations) error {
	if assoc == nil {
		return nil
	}

	for _, t := range assoc.Targets {
		_, err := tx.Exec(ctx,
			`INSERT INTO discount_targets (discount_id, type, target_id) VALUES ($1, $2, $3)`,
			discountID, t.Type, t.TargetID,
		)
		if err != nil {
			return fmt.Errorf("insert discount target: %w", err)
		}
	}

	for _, it := range assoc.VariantItems {
		_, err := tx.Exec(ctx,
			`INSERT INTO discount_variant_items
				(discount_id, variant_id, product_id, value_type, value, max_discount, promo_stock, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			discountID, it.VariantID, it.ProductID, it.ValueType, it.Value, it.MaxDiscount, it.PromoStock, it.IsActive,
		)
		if err != nil {
			return fmt.Errorf("insert discount variant item: %w", err)
		}
	}

	for _, id := range assoc.CustomerIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO discount_customers (discount_id, customer_id) VALUES ($1, $2)`,
			discountID, id,
		)
		if err != nil {
			return fmt.Errorf("insert discount customer: %w", err)
		}
	}

	for _, id := range assoc.GroupIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO discount_groups (discount_id, group_id) VALUES ($1, $2)`,
			discountID, id,
		)
		if err != nil {
			return fmt.Errorf("insert discount group: %w", err)
		}
	}

	return nil
}

func (r *DiscountRepository) deleteAssociations(ctx context.Context, tx pgx.Tx, discountID int64) error {
	for _, table := range []string{"discount_targets", "discount_variant_items", "discount_customers", "discount_groups"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE discount_id = $1`, discountID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// GetByID retrieves a discount by id, excluding soft-deleted rows.
func (r *DiscountRepository) GetByID(ctx context.Context, id int64) (*domain.Discount, error) {
	query := `SELECT` + discountColumns + ` FROM discounts WHERE id = $1 AND deleted_at IS NULL`

	d, err := scanDiscount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get discount by id: %w", err)
	}
	return d, nil
}

// GetByCode retrieves a discount by its unique code.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	query := `SELECT` + discountColumns + ` FROM discounts WHERE code = $1 AND deleted_at IS NULL`

	d, err := scanDiscount(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get discount by code: %w", err)
	}
	return d, nil
}

// List returns a page of discounts ordered by newest first.
func (r *DiscountRepository) List(ctx context.Context, page, perPage int) ([]domain.Discount, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT` + discountColumns + `, count(*) OVER() AS total_count
		FROM discounts
		WHERE deleted_at IS NULL
		ORDER BY id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	var (
		discounts  []domain.Discount
		totalCount int
	)
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(
			&d.ID, &d.Code, &d.Name, &d.ValueType, &d.Value, &d.MaxDiscount, &d.AppliesTo,
			&d.MinOrderAmount, &d.MinOrderQty, &d.EligibilityType,
			&d.UsageLimit, &d.UsageCount, &d.ReservedCount,
			&d.IsActive, &d.IsEcommerce, &d.IsPos, &d.IsAuto,
			&d.StartedAt, &d.ExpiredAt, &d.DaysOfWeekMask,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan discount row: %w", err)
		}
		discounts = append(discounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate discount rows: %w", err)
	}

	if discounts == nil {
		discounts = []domain.Discount{}
	}
	return discounts, totalCount, nil
}

// SoftDelete marks a discount as deleted without removing its rows.
func (r *DiscountRepository) SoftDelete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE discounts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete discount: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", fmt.Sprint(id))
	}
	return nil
}

// ListTargets returns the polymorphic target rows of a discount.
func (r *DiscountRepository) ListTargets(ctx context.Context, discountID int64) ([]domain.DiscountTarget, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT discount_id, type, target_id FROM discount_targets WHERE discount_id = $1 ORDER BY type, target_id`,
		discountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list discount targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.DiscountTarget
	for rows.Next() {
		var t domain.DiscountTarget
		if err := rows.Scan(&t.DiscountID, &t.Type, &t.TargetID); err != nil {
			return nil, fmt.Errorf("scan discount target row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discount target rows: %w", err)
	}
	return targets, nil
}

// ListVariantItems returns the per-variant override rows of a discount.
func (r *DiscountRepository) ListVariantItems(ctx context.Context, discountID int64) ([]domain.DiscountVariantItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT discount_id, variant_id, product_id, value_type, value, max_discount, promo_stock, is_active
		 FROM discount_variant_items WHERE discount_id = $1 ORDER BY variant_id`,
		discountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list discount variant items: %w", err)
	}
	defer rows.Close()

	var items []domain.DiscountVariantItem
	for rows.Next() {
		var it domain.DiscountVariantItem
		if err := rows.Scan(&it.DiscountID, &it.VariantID, &it.ProductID, &it.ValueType, &it.Value, &it.MaxDiscount, &it.PromoStock, &it.IsActive); err != nil {
			return nil, fmt.Errorf("scan discount variant item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discount variant item rows: %w", err)
	}
	return items, nil
}

// IsCustomerListed reports whether the customer appears on the discount's
// per-user allow list.
func (r *DiscountRepository) IsCustomerListed(ctx context.Context, discountID, customerID int64) (bool, error) {
	var listed bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM discount_customers WHERE discount_id = $1 AND customer_id = $2)`,
		discountID, customerID,
	).Scan(&listed)
	if err != nil {
		return false, fmt.Errorf("check discount customer: %w", err)
	}
	return listed, nil
}

// GetForUpdate locks and returns the discount row inside the caller's
// transaction. The ledger serializes counter updates on this lock.
func (r *DiscountRepository) GetForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.Discount, error) {
	query := `SELECT` + discountColumns + ` FROM discounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	d, err := scanDiscount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get discount for update: %w", err)
	}
	return d, nil
}

// AdjustCounters shifts the reservation and usage counters by the given
// deltas. Callers must hold the discount row lock.
func (r *DiscountRepository) AdjustCounters(ctx context.Context, q database.DBTX, id int64, reservedDelta, usageDelta int) error {
	ct, err := q.Exec(ctx,
		`UPDATE discounts
		 SET reserved_count = reserved_count + $1, usage_count = usage_count + $2, updated_at = NOW()
		 WHERE id = $3`,
		reservedDelta, usageDelta, id,
	)
	if err != nil {
		return fmt.Errorf("adjust discount counters: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", fmt.Sprint(id))
	}
	return nil
}
