package repository

import (
	"context"
	"time"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/pkg/database"
)

// DiscountAssociations carries the target rows written alongside a discount.
// CMS writes replace all of them wholesale; there is no partial merge.
type DiscountAssociations struct {
	Targets      []domain.DiscountTarget
	VariantItems []domain.DiscountVariantItem
	CustomerIDs  []int64
	GroupIDs     []int64
}

// DiscountRepository persists discounts and their association rows.
//
// Methods taking a database.DBTX run against the caller's transaction; the
// redemption ledger relies on GetForUpdate + AdjustCounters being serialized
// by the discount row lock.
type DiscountRepository interface {
	Create(ctx context.Context, d *domain.Discount, assoc *DiscountAssociations) (*domain.Discount, error)
	Update(ctx context.Context, d *domain.Discount, assoc *DiscountAssociations) error
	GetByID(ctx context.Context, id int64) (*domain.Discount, error)
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)
	List(ctx context.Context, page, perPage int) ([]domain.Discount, int, error)
	SoftDelete(ctx context.Context, id int64) error

	ListTargets(ctx context.Context, discountID int64) ([]domain.DiscountTarget, error)
	ListVariantItems(ctx context.Context, discountID int64) ([]domain.DiscountVariantItem, error)
	// IsCustomerListed reports whether the customer appears on the
	// discount's per-user allow list.
	IsCustomerListed(ctx context.Context, discountID, customerID int64) (bool, error)

	GetForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.Discount, error)
	AdjustCounters(ctx context.Context, q database.DBTX, id int64, reservedDelta, usageDelta int) error
}

// CampaignConflict names one product caught in a live flash-sale or sale.
type CampaignConflict struct {
	ProductID  int64
	VariantID  int64
	CampaignID int64
}

// CampaignRepository reads campaign pivots and manages promo-scoped stock.
type CampaignRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
	GetItemForUpdate(ctx context.Context, q database.DBTX, campaignID, variantID int64) (*domain.CampaignItem, error)
	AdjustItemPromoStock(ctx context.Context, q database.DBTX, campaignID, variantID int64, delta int) error

	// ListConflicts returns live-campaign memberships for the given products.
	ListConflicts(ctx context.Context, productIDs []int64, now time.Time) ([]CampaignConflict, error)
	// EvictProducts removes the given products from live campaign pivots
	// (the CMS transfer flow). Returns the number of pivot rows removed.
	EvictProducts(ctx context.Context, q database.DBTX, productIDs []int64, now time.Time) (int64, error)
}

// CatalogRepository reads and mutates products, variants, bundles, channel
// stock and the stock-movement ledger. All stock mutations run against the
// caller's transaction.
type CatalogRepository interface {
	GetProduct(ctx context.Context, q database.DBTX, id int64) (*domain.Product, error)
	GetVariant(ctx context.Context, id int64) (*domain.ProductVariant, error)
	GetVariantForUpdate(ctx context.Context, q database.DBTX, id int64) (*domain.ProductVariant, error)
	// LockVariants locks the given variant rows in ascending id order.
	LockVariants(ctx context.Context, q database.DBTX, ids []int64) ([]domain.ProductVariant, error)

	ListBundleItems(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.BundleItem, error)
	// ListComponents returns a bundle's components joined with their current
	// stock, without locking. Display-path reads only.
	ListComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error)
	// LockComponents locks a bundle's component variant rows in ascending id
	// order and returns them joined with their bill-of-materials quantities.
	LockComponents(ctx context.Context, q database.DBTX, bundleVariantID int64) ([]domain.ComponentStock, error)

	AdjustStock(ctx context.Context, q database.DBTX, variantID int64, delta int) error
	SetStock(ctx context.Context, q database.DBTX, variantID int64, stock int) error
	InsertMovement(ctx context.Context, q database.DBTX, m *domain.StockMovement) error
	AdjustPopularity(ctx context.Context, q database.DBTX, productID int64, delta int) error

	GetChannelStock(ctx context.Context, variantID int64, channel string) (*domain.ChannelStock, error)
	GetChannelStockForUpdate(ctx context.Context, q database.DBTX, variantID int64, channel string) (*domain.ChannelStock, error)
	AdjustChannelStock(ctx context.Context, q database.DBTX, variantID int64, channel string, stockDelta, reservedDelta int) error
}

// OrderRepository persists reservation orders and their metadata-bearing lines.
type OrderRepository interface {
	Create(ctx context.Context, q database.DBTX, o *domain.Order) error
	AddLine(ctx context.Context, q database.DBTX, line *domain.OrderLine) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, q database.DBTX, id string) (*domain.Order, error)
	ListLines(ctx context.Context, q database.DBTX, orderID string) ([]domain.OrderLine, error)
	MarkLineRestored(ctx context.Context, q database.DBTX, lineID int64) error
	SetStatus(ctx context.Context, q database.DBTX, id, status string, at time.Time) error
}

// RedemptionRepository persists the reserve/use/cancel rows of the ledger.
type RedemptionRepository interface {
	Insert(ctx context.Context, q database.DBTX, r *domain.Redemption) error
	GetByTransactionForUpdate(ctx context.Context, q database.DBTX, transactionID string) (*domain.Redemption, error)
	SetStatus(ctx context.Context, q database.DBTX, id int64, status string, at time.Time) error
}

// CartRepository holds pending carts keyed by user.
type CartRepository interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID int64) error
}
