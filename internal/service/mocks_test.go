package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/pricing"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
)

// --- Mock Repositories ---

type mockDiscountRepository struct {
	mock.Mock
}

func (m *mockDiscountRepository) Create(ctx context.Context, d *domain.Discount, assoc *repository.DiscountAssociations) (*domain.Discount, error) {
	args := m.Called(ctx, d, assoc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Discount), args.Error(1)
}

func (m *mockDiscountRepository) Update(ctx context.Context, d *domain.Discount, assoc *repository.DiscountAssociations) error {
	args := m.Called(ctx, d, assoc)
	return args.Error(0)
}

func (m *mockDiscountRepository) GetByID(ctx context.Context, id int64) (*domain.Discount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Discount), args.Error(1)
}

func (m *mockDiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Discount), args.Error(1)
}

func (m *mockDiscountRepository) List(ctx context.Context, page, perPage int) ([]domain.Discount, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.Discount), args.Int(1), args.Error(2)
}

func (m *mockDiscountRepository) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDiscountRepository) ListTargets(ctx context.Context, discountID int64) ([]domain.DiscountTarget, error) {
	args := m.Called(ctx, discountID)
	return args.Get(0).([]domain.DiscountTarget), args.Error(1)
}

func (m *mockDiscountRepository) ListVariantItems(ctx context.Context, discountID int64) ([]domain.DiscountVariantItem, error) {
	args := m.Called(ctx, discountID)
	return args.Get(0).([]domain.DiscountVariantItem), args.Error(1)
}

func (m *mockDiscountRepository) IsCustomerListed(ctx context.Context, discountID, customerID int64) (bool, error) {
	args := m.Called(ctx, discountID, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDiscountRepository) GetForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.Discount, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Discount), args.Error(1)
}

func (m *mockDiscountRepository) AdjustCounters(ctx context.Context, q database.DBTX, id int64, reservedDelta, usageDelta int) error {
	args := m.Called(ctx, q, id, reservedDelta, usageDelta)
	return args.Error(0)
}

type mockCampaignRepository struct {
	mock.Mock
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepository) GetItemForUpdate(ctx context.Context, q database.DBTX, campaignID, variantID int64) (*domain.CampaignItem, error) {
	args := m.Called(ctx, q, campaignID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignItem), args.Error(1)
}

func (m *mockCampaignRepository) AdjustItemPromoStock(ctx context.Context, q database.DBTX, campaignID, variantID int64, delta int) error {
	args := m.Called(ctx, q, campaignID, variantID, delta)
	return args.Error(0)
}

func (m *mockCampaignRepository) ListConflicts(ctx context.Context, productIDs []int64, now time.Time) ([]repository.CampaignConflict, error) {
	args := m.Called(ctx, productIDs, now)
	return args.Get(0).([]repository.CampaignConflict), args.Error(1)
}

func (m *mockCampaignRepository) EvictProducts(ctx context.Context, q database.DBTX, productIDs []int64, now time.Time) (int64, error) {
	args := m.Called(ctx, q, productIDs, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, q database.DBTX, id int64) (*domain.Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) GetVariant(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) GetVariantForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.ProductVariant, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) LockVariants(ctx context.Context, q database.DBTX, ids []int64) ([]domain.ProductVariant, error) {
	args := m.Called(ctx, q, ids)
	return args.Get(0).([]domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) ListBundleItems(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.BundleItem, error) {
	args := m.Called(ctx, q, bundleVariantID)
	return args.Get(0).([]domain.BundleItem), args.Error(1)
}

func (m *mockCatalogRepository) ListComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error) {
	args := m.Called(ctx, q, bundleVariantID)
	return args.Get(0).([]domain.ComponentStock), args.Error(1)
}

func (m *mockCatalogRepository) LockComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error) {
	args := m.Called(ctx, q, bundleVariantID)
	return args.Get(0).([]domain.ComponentStock), args.Error(1)
}

func (m *mockCatalogRepository) AdjustStock(ctx context.Context, q database.DBTX, variantID int64, delta int) error {
	args := m.Called(ctx, q, variantID, delta)
	return args.Error(0)
}

func (m *mockCatalogRepository) SetStock(ctx context.Context, q database.DBTX, variantID int64, stock int) error {
	args := m.Called(ctx, q, variantID, stock)
	return args.Error(0)
}

func (m *mockCatalogRepository) InsertMovement(ctx context.Context, q database.DBTX, mv *domain.StockMovement) error {
	args := m.Called(ctx, q, mv)
	return args.Error(0)
}

func (m *mockCatalogRepository) AdjustPopularity(ctx context.Context, q database.DBTX, productID int64, delta int) error {
	args := m.Called(ctx, q, productID, delta)
	return args.Error(0)
}

func (m *mockCatalogRepository) GetChannelStock(ctx context.Context, variantID int64, channel string) (*domain.ChannelStock, error) {
	args := m.Called(ctx, variantID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelStock), args.Error(1)
}

func (m *mockCatalogRepository) GetChannelStockForUpdate(ctx context.Context, q database.DBTX, variantID int64, channel string) (*domain.ChannelStock, error) {
	args := m.Called(ctx, q, variantID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelStock), args.Error(1)
}

func (m *mockCatalogRepository) AdjustChannelStock(ctx context.Context, q database.DBTX, variantID int64, channel string, stockDelta, reservedDelta int) error {
	args := m.Called(ctx, q, variantID, channel, stockDelta, reservedDelta)
	return args.Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, q database.DBTX, o *domain.Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *mockOrderRepository) AddLine(ctx context.Context, q database.DBTX, line *domain.OrderLine) (int64, error) {
	args := m.Called(ctx, q, line)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetForUpdate(ctx context.Context, q database.DBTX, id string) (*domain.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListLines(ctx context.Context, q database.DBTX, orderID string) ([]domain.OrderLine, error) {
	args := m.Called(ctx, q, orderID)
	return args.Get(0).([]domain.OrderLine), args.Error(1)
}

func (m *mockOrderRepository) MarkLineRestored(ctx context.Context, q database.DBTX, lineID int64) error {
	args := m.Called(ctx, q, lineID)
	return args.Error(0)
}

func (m *mockOrderRepository) SetStatus(ctx context.Context, q database.DBTX, id, status string, at time.Time) error {
	args := m.Called(ctx, q, id, status, at)
	return args.Error(0)
}

type mockRedemptionRepository struct {
	mock.Mock
}

func (m *mockRedemptionRepository) Insert(ctx context.Context, q database.DBTX, r *domain.Redemption) error {
	args := m.Called(ctx, q, r)
	return args.Error(0)
}

func (m *mockRedemptionRepository) GetByTransactionForUpdate(ctx context.Context, q database.DBTX, transactionID string) (*domain.Redemption, error) {
	args := m.Called(ctx, q, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Redemption), args.Error(1)
}

func (m *mockRedemptionRepository) SetStatus(ctx context.Context, q database.DBTX, id int64, status string, at time.Time) error {
	args := m.Called(ctx, q, id, status, at)
	return args.Error(0)
}

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Test Helpers ---

type stubSnapshotLoader struct {
	snap *pricing.Snapshot
}

func (l *stubSnapshotLoader) LoadSnapshot(context.Context) (*pricing.Snapshot, error) {
	return l.snap, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testNow is a fixed Monday so weekday-masked discounts behave predictably.
var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

func newTestCache(snap *pricing.Snapshot) *pricing.Cache {
	if snap == nil {
		snap = pricing.BuildSnapshot(pricing.BuildInput{Now: testNow})
	}
	return pricing.NewCache(&stubSnapshotLoader{snap: snap}, pricing.DefaultTTL, fixedClock)
}

func intPtr(i int) *int {
	return &i
}
