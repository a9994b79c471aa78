package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

const variantColumns = `
	id, product_id, sku, price, stock, is_bundle, bundle_stock_mode, deleted_at`

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func scanVariant(row pgx.Row) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	var mode *string
	err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Stock, &v.IsBundle, &mode, &v.DeletedAt)
	if err != nil {
		return nil, err
	}
	if mode != nil {
		v.BundleStockMode = *mode
	}
	return &v, nil
}

// GetProduct retrieves a product by id.
func (r *CatalogRepository) GetProduct(ctx context.Context, q database.DBTX, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, brand_id, category_id, popularity, deleted_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL`

	var p domain.Product
	err := q.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.BrandID, &p.CategoryID, &p.Popularity, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetVariant retrieves a variant by id without locking.
func (r *CatalogRepository) GetVariant(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	query := `SELECT` + variantColumns + ` FROM product_variants WHERE id = $1 AND deleted_at IS NULL`

	v, err := scanVariant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// GetVariantForUpdate locks and returns the variant row inside the caller's
// transaction.
func (r *CatalogRepository) GetVariantForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.ProductVariant, error) {
	query := `SELECT` + variantColumns + ` FROM product_variants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	v, err := scanVariant(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get variant for update: %w", err)
	}
	return v, nil
}

// LockVariants locks the given variant rows in ascending id order. The fixed
// order keeps concurrent multi-variant transactions from deadlocking.
func (r *CatalogRepository) LockVariants(ctx context.Context, q database.DBTX, ids []int64) ([]domain.ProductVariant, error) {
	if len(ids) == 0 {
		return []domain.ProductVariant{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := `
		SELECT` + variantColumns + `
		FROM product_variants
		WHERE id IN (` + strings.Join(placeholders, ", ") + `) AND deleted_at IS NULL
		ORDER BY id ASC
		FOR UPDATE`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.ProductVariant
	for rows.Next() {
		var v domain.ProductVariant
		var mode *string
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Stock, &v.IsBundle, &mode, &v.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		if mode != nil {
			v.BundleStockMode = *mode
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}
	return variants, nil
}

// ListBundleItems returns the bill of materials of a bundle.
func (r *CatalogRepository) ListBundleItems(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.BundleItem, error) {
	rows, err := q.Query(ctx,
		`SELECT bundle_variant_id, component_variant_id, component_qty
		 FROM bundle_items
		 WHERE bundle_variant_id = $1
		 ORDER BY component_variant_id ASC`,
		bundleVariantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bundle items: %w", err)
	}
	defer rows.Close()

	var items []domain.BundleItem
	for rows.Next() {
		var it domain.BundleItem
		if err := rows.Scan(&it.BundleVariantID, &it.ComponentVariantID, &it.ComponentQty); err != nil {
			return nil, fmt.Errorf("scan bundle item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle item rows: %w", err)
	}
	return items, nil
}

// ListComponents returns a bundle's components joined with their current
// stock, without locking.
func (r *CatalogRepository) ListComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error) {
	query := `
		SELECT bi.component_variant_id, bi.component_qty, pv.stock
		FROM bundle_items bi
		JOIN product_variants pv ON pv.id = bi.component_variant_id
		WHERE bi.bundle_variant_id = $1 AND pv.deleted_at IS NULL
		ORDER BY pv.id ASC`

	return r.queryComponents(ctx, q, query, bundleVariantID)
}

// LockComponents locks a bundle's component rows in ascending id order and
// returns them joined with their bill-of-materials quantities.
func (r *CatalogRepository) LockComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error) {
	query := `
		SELECT bi.component_variant_id, bi.component_qty, pv.stock
		FROM bundle_items bi
		JOIN product_variants pv ON pv.id = bi.component_variant_id
		WHERE bi.bundle_variant_id = $1 AND pv.deleted_at IS NULL
		ORDER BY pv.id ASC
		FOR UPDATE OF pv`

	return r.queryComponents(ctx, q, query, bundleVariantID)
}

func (r *CatalogRepository) queryComponents(ctx context.Context, q database.DBTX, query string, bundleVariantID int64) ([]domain.ComponentStock, error) {
	rows, err := q.Query(ctx, query, bundleVariantID)
	if err != nil {
		return nil, fmt.Errorf("query bundle components: %w", err)
	}
	defer rows.Close()

	var components []domain.ComponentStock
	for rows.Next() {
		var c domain.ComponentStock
		if err := rows.Scan(&c.ComponentVariantID, &c.ComponentQty, &c.Stock); err != nil {
			return nil, fmt.Errorf("scan component row: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate component rows: %w", err)
	}
	return components, nil
}

// AdjustStock shifts a variant's stock by delta. Callers must hold the row
// lock; the check constraint on stock rejects negative results regardless.
func (r *CatalogRepository) AdjustStock(ctx context.Context, q database.DBTX, variantID int64, delta int) error {
	ct, err := q.Exec(ctx,
		`UPDATE product_variants SET stock = stock + $1 WHERE id = $2 AND deleted_at IS NULL`,
		delta, variantID,
	)
	if err != nil {
		return fmt.Errorf("adjust variant stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", fmt.Sprint(variantID))
	}
	return nil
}

// SetStock overwrites a variant's stock field. Only the derived display
// value of VIRTUAL bundles goes through here.
func (r *CatalogRepository) SetStock(ctx context.Context, q database.DBTX, variantID int64, stock int) error {
	ct, err := q.Exec(ctx,
		`UPDATE product_variants SET stock = $1 WHERE id = $2 AND deleted_at IS NULL`,
		stock, variantID,
	)
	if err != nil {
		return fmt.Errorf("set variant stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", fmt.Sprint(variantID))
	}
	return nil
}

// InsertMovement appends one entry to the stock movement ledger.
func (r *CatalogRepository) InsertMovement(ctx context.Context, q database.DBTX, m *domain.StockMovement) error {
	_, err := q.Exec(ctx,
		`INSERT INTO stock_movements (variant_id, change, type, related_id, note)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.VariantID, m.Change, m.Type, m.RelatedID, m.Note,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// AdjustPopularity shifts a product's popularity counter, flooring at zero.
func (r *CatalogRepository) AdjustPopularity(ctx context.Context, q database.DBTX, productID int64, delta int) error {
	_, err := q.Exec(ctx,
		`UPDATE products SET popularity = GREATEST(popularity + $1, 0) WHERE id = $2`,
		delta, productID,
	)
	if err != nil {
		return fmt.Errorf("adjust product popularity: %w", err)
	}
	return nil
}

// GetChannelStock returns the channel stock row for a variant without
// locking, or ErrNotFound when the variant has no channel partition.
func (r *CatalogRepository) GetChannelStock(ctx context.Context, variantID int64, channel string) (*domain.ChannelStock, error) {
	query := `
		SELECT id, variant_id, channel, stock, reserved_stock
		FROM channel_stocks
		WHERE variant_id = $1 AND channel = $2`

	return scanChannelStock(r.pool.QueryRow(ctx, query, variantID, channel))
}

// GetChannelStockForUpdate locks and returns the channel stock row for a
// variant, or ErrNotFound when the variant has no channel partition.
func (r *CatalogRepository) GetChannelStockForUpdate(ctx context.Context, q database.DBTX, variantID int64, channel string) (*domain.ChannelStock, error) {
	query := `
		SELECT id, variant_id, channel, stock, reserved_stock
		FROM channel_stocks
		WHERE variant_id = $1 AND channel = $2
		FOR UPDATE`

	return scanChannelStock(q.QueryRow(ctx, query, variantID, channel))
}

func scanChannelStock(row pgx.Row) (*domain.ChannelStock, error) {
	var cs domain.ChannelStock
	err := row.Scan(&cs.ID, &cs.VariantID, &cs.Channel, &cs.Stock, &cs.ReservedStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get channel stock: %w", err)
	}
	return &cs, nil
}

// AdjustChannelStock shifts a channel stock row's stock and reserved counts.
func (r *CatalogRepository) AdjustChannelStock(ctx context.Context, q database.DBTX, variantID int64, channel string, stockDelta, reservedDelta int) error {
	ct, err := q.Exec(ctx,
		`UPDATE channel_stocks
		 SET stock = stock + $1, reserved_stock = reserved_stock + $2
		 WHERE variant_id = $3 AND channel = $4`,
		stockDelta, reservedDelta, variantID, channel,
	)
	if err != nil {
		return fmt.Errorf("adjust channel stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("channel stock", fmt.Sprint(variantID))
	}
	return nil
}
