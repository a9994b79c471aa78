package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

func setupCatalogRepo(t *testing.T) (*CatalogRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewCatalogRepository(mock)
	return repo, mock
}

var variantCols = []string{
	"id", "product_id", "sku", "price", "stock", "is_bundle", "bundle_stock_mode", "deleted_at",
}

func TestCatalogRepository_GetVariantForUpdate_Success(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mode := domain.BundleModeKit
	mock.ExpectQuery("SELECT .+ FROM product_variants WHERE id = .+ FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(variantCols).
			AddRow(int64(5), int64(100), "KIT-5", int64(250000), 8, true, &mode, nil))

	v, err := repo.GetVariantForUpdate(context.Background(), mock, 5)
	require.NoError(t, err)
	assert.True(t, v.IsKitBundle())
	assert.Equal(t, 8, v.Stock)
}

func TestCatalogRepository_GetVariant_NotFound(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM product_variants").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(variantCols))

	_, err := repo.GetVariant(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogRepository_LockComponents(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT bi.component_variant_id, bi.component_qty, pv.stock").
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"component_variant_id", "component_qty", "stock"}).
			AddRow(int64(1), 2, 10).
			AddRow(int64(2), 1, 10))

	components, err := repo.LockComponents(context.Background(), mock, 9)
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, int64(1), components[0].ComponentVariantID)
	assert.Equal(t, 2, components[0].ComponentQty)
}

func TestCatalogRepository_AdjustStock_NotFound(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE product_variants SET stock = stock").
		WithArgs(-2, int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.AdjustStock(context.Background(), mock, 404, -2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogRepository_InsertMovement(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO stock_movements").
		WithArgs(int64(5), -2, domain.MovementOrder, "order-1", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertMovement(context.Background(), mock, &domain.StockMovement{
		VariantID: 5, Change: -2, Type: domain.MovementOrder, RelatedID: "order-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_GetChannelStockForUpdate(t *testing.T) {
	repo, mock := setupCatalogRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM channel_stocks").
		WithArgs(int64(5), domain.ChannelEcommerce).
		WillReturnRows(pgxmock.NewRows([]string{"id", "variant_id", "channel", "stock", "reserved_stock"}).
			AddRow(int64(1), int64(5), domain.ChannelEcommerce, 20, 3))

	cs, err := repo.GetChannelStockForUpdate(context.Background(), mock, 5, domain.ChannelEcommerce)
	require.NoError(t, err)
	assert.Equal(t, 17, cs.Available())
}
