package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/event"
	"github.com/utafrali/PromotionGo/internal/pricing"
	"github.com/utafrali/PromotionGo/internal/repository"
	"github.com/utafrali/PromotionGo/pkg/database"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
	"github.com/utafrali/PromotionGo/pkg/validator"
)

// lowStockThreshold triggers a stock.low event when a reservation drops a
// variant to or under this quantity.
const lowStockThreshold = 5

// CheckoutService coordinates a cart reservation: discount selection and
// reservation, promo pool consumption, stock decrements across bundle modes,
// metadata persistence, and the compensating restore on cancellation.
//
// One transaction per checkout attempt. Any failure after partial work rolls
// the whole attempt back; nothing asynchronous participates in the commit.
type CheckoutService struct {
	db        database.TxStarter
	catalog   repository.CatalogRepository
	orders    repository.OrderRepository
	discounts repository.DiscountRepository
	carts     repository.CartRepository
	ledger    *RedemptionLedger
	bundles   *BundleEngine
	promo     *PromoStockPool
	cache     *pricing.Cache
	producer  *event.Producer
	logger    *slog.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout coordinator. A nil clock falls
// back to time.Now.
func NewCheckoutService(
	db database.TxStarter,
	catalog repository.CatalogRepository,
	orders repository.OrderRepository,
	discounts repository.DiscountRepository,
	carts repository.CartRepository,
	ledger *RedemptionLedger,
	bundles *BundleEngine,
	promo *PromoStockPool,
	cache *pricing.Cache,
	producer *event.Producer,
	logger *slog.Logger,
	now func() time.Time,
) *CheckoutService {
	if now == nil {
		now = time.Now
	}
	return &CheckoutService{
		db:        db,
		catalog:   catalog,
		orders:    orders,
		discounts: discounts,
		carts:     carts,
		ledger:    ledger,
		bundles:   bundles,
		promo:     promo,
		cache:     cache,
		producer:  producer,
		logger:    logger,
		now:       now,
	}
}

// ReserveCartInput holds the parameters of a checkout reservation.
type ReserveCartInput struct {
	UserID       int64             `json:"user_id" validate:"required,gt=0"`
	Channel      string            `json:"channel" validate:"required,oneof=ecommerce pos"`
	DiscountCode string            `json:"discount_code"`
	Lines        []domain.CartLine `json:"lines" validate:"required,min=1"`
}

// ReservationResult is the outcome of a successful reservation.
type ReservationResult struct {
	OrderID          string             `json:"order_id"`
	DiscountID       *int64             `json:"discount_id,omitempty"`
	DiscountAmount   int64              `json:"discount_amount"`
	AutoDiscountCode string             `json:"auto_discount_code,omitempty"`
	Lines            []domain.OrderLine `json:"lines"`
}

type lowStockAlert struct {
	variantID int64
	sku       string
	stock     int
}

// ReserveCart reserves stock and discount usage for a cart in one
// transaction. Each order line persists a metadata snapshot that is the sole
// source of truth for the compensating restore.
func (s *CheckoutService) ReserveCart(ctx context.Context, in *ReserveCartInput) (*ReservationResult, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	for i := range in.Lines {
		l := &in.Lines[i]
		if l.VariantID <= 0 || l.ProductID <= 0 {
			return nil, apperrors.InvalidInput("lines must carry variant_id and product_id")
		}
		if l.Qty <= 0 {
			return nil, apperrors.InvalidInput("line qty must be positive")
		}
		if l.UnitPrice < 0 || l.UnitDiscount < 0 || l.UnitDiscount > l.UnitPrice {
			return nil, apperrors.InvalidInput("line prices are inconsistent")
		}
	}

	orderID := uuid.New().String()
	order := domain.Order{
		ID:      orderID,
		UserID:  in.UserID,
		Channel: in.Channel,
		Status:  domain.OrderReserved,
	}

	var (
		lines  []domain.OrderLine
		alerts []lowStockAlert
	)

	ctx, end := database.TraceQuery(ctx, "ReserveCart")
	err := database.WithinTx(ctx, s.db, func(tx pgx.Tx) error {
		products, autoLines, err := s.loadProducts(ctx, tx, in.Lines)
		if err != nil {
			return err
		}

		if err := s.applyDiscount(ctx, tx, in, autoLines, &order); err != nil {
			return err
		}

		if err := s.orders.Create(ctx, tx, &order); err != nil {
			return err
		}

		lines = lines[:0]
		alerts = alerts[:0]
		for i := range in.Lines {
			line, alert, err := s.reserveLine(ctx, tx, &order, &in.Lines[i], products[in.Lines[i].ProductID])
			if err != nil {
				return err
			}
			lines = append(lines, *line)
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
		return nil
	})
	end(err)
	if err != nil {
		return nil, err
	}

	s.detachCartLines(ctx, in)
	s.producer.PublishOrderReserved(ctx, &order, len(lines))
	for _, a := range alerts {
		s.producer.PublishLowStock(ctx, a.variantID, a.sku, a.stock)
	}

	s.logger.InfoContext(ctx, "cart reserved",
		slog.String("order_id", orderID),
		slog.Int64("user_id", in.UserID),
		slog.Int("lines", len(lines)))

	return &ReservationResult{
		OrderID:          orderID,
		DiscountID:       order.DiscountID,
		DiscountAmount:   order.DiscountAmount,
		AutoDiscountCode: order.AutoCode,
		Lines:            lines,
	}, nil
}

func (s *CheckoutService) loadProducts(ctx context.Context, tx pgx.Tx, cartLines []domain.CartLine) (map[int64]*domain.Product, []pricing.AutoLine, error) {
	products := make(map[int64]*domain.Product)
	autoLines := make([]pricing.AutoLine, 0, len(cartLines))

	for _, l := range cartLines {
		p, ok := products[l.ProductID]
		if !ok {
			var err error
			p, err = s.catalog.GetProduct(ctx, tx, l.ProductID)
			if err != nil {
				return nil, nil, err
			}
			products[l.ProductID] = p
		}
		autoLines = append(autoLines, pricing.AutoLine{
			CartLine:   l,
			BrandID:    p.BrandID,
			CategoryID: p.CategoryID,
		})
	}
	return products, autoLines, nil
}

// applyDiscount resolves the manual code or the best automatic discount and
// reserves its usage. The ledger re-checks the quota under the discount row
// lock; the cached snapshot only nominates candidates.
func (s *CheckoutService) applyDiscount(ctx context.Context, tx pgx.Tx, in *ReserveCartInput, autoLines []pricing.AutoLine, order *domain.Order) error {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return err
	}

	if in.DiscountCode != "" {
		d, err := s.discounts.GetByCode(ctx, in.DiscountCode)
		if err != nil {
			return err
		}
		if !d.IsScheduleActive(s.now()) || !d.EnabledForChannel(in.Channel) {
			return apperrors.InvalidInput(fmt.Sprintf("discount %s is not available", in.DiscountCode))
		}
		if d.EligibilityType == domain.EligibilityUsers {
			listed, err := s.discounts.IsCustomerListed(ctx, d.ID, in.UserID)
			if err != nil {
				return err
			}
			if !listed {
				return apperrors.InvalidInput(fmt.Sprintf("discount %s is not available for this user", in.DiscountCode))
			}
		}

		amount := pricing.DiscountAmountForCart(d, snap, autoLines)
		if amount <= 0 {
			return apperrors.InvalidInput(fmt.Sprintf("cart does not qualify for discount %s", in.DiscountCode))
		}
		if err := s.ledger.ReserveTx(ctx, tx, d.ID, order.ID, in.UserID); err != nil {
			return err
		}
		order.DiscountID = &d.ID
		order.DiscountAmount = amount
		return nil
	}

	res := pricing.SelectAutoDiscount(snap, autoLines, in.Channel)
	if res == nil {
		return nil
	}
	if err := s.ledger.ReserveTx(ctx, tx, res.Discount.ID, order.ID, in.UserID); err != nil {
		// An exhausted automatic discount must not fail the checkout.
		if errors.Is(err, apperrors.ErrDiscountLimit) {
			s.logger.WarnContext(ctx, "auto discount exhausted, proceeding without",
				slog.String("code", res.Discount.Code))
			return nil
		}
		return err
	}
	id := res.Discount.ID
	order.DiscountID = &id
	order.DiscountAmount = res.Amount
	order.AutoCode = res.Discount.Code
	return nil
}

func (s *CheckoutService) reserveLine(ctx context.Context, tx pgx.Tx, order *domain.Order, cartLine *domain.CartLine, product *domain.Product) (*domain.OrderLine, *lowStockAlert, error) {
	meta := domain.ReservationMeta{}

	if cartLine.Promo != nil {
		snap, err := s.promo.Consume(ctx, tx, cartLine.Promo, cartLine.VariantID, cartLine.Qty)
		if err != nil {
			return nil, nil, err
		}
		meta.Promo = snap
	}

	v, err := s.catalog.GetVariantForUpdate(ctx, tx, cartLine.VariantID)
	if err != nil {
		return nil, nil, err
	}

	var alert *lowStockAlert
	if v.IsVirtualBundle() {
		debits, err := s.bundles.Consume(ctx, tx, v.ID, cartLine.Qty, order.ID)
		if err != nil {
			return nil, nil, err
		}
		meta.BundleMode = domain.BundleModeVirtual
		meta.BundleComponents = debits
		// The variant row keeps a denormalized copy for listings.
		if err := s.bundles.RefreshDerivedStock(ctx, tx, v.ID); err != nil {
			return nil, nil, err
		}
	} else {
		if v.Stock < cartLine.Qty {
			return nil, nil, apperrors.InsufficientStock(product.Name, cartLine.Qty, v.Stock)
		}
		if err := s.catalog.AdjustStock(ctx, tx, v.ID, -cartLine.Qty); err != nil {
			return nil, nil, err
		}
		if err := s.catalog.InsertMovement(ctx, tx, &domain.StockMovement{
			VariantID: v.ID,
			Change:    -cartLine.Qty,
			Type:      domain.MovementOrder,
			RelatedID: order.ID,
		}); err != nil {
			return nil, nil, err
		}
		meta.StockDecremented = cartLine.Qty
		if v.IsKitBundle() {
			meta.BundleMode = domain.BundleModeKit
		}
		if remaining := v.Stock - cartLine.Qty; remaining <= lowStockThreshold {
			alert = &lowStockAlert{variantID: v.ID, sku: v.SKU, stock: remaining}
		}
	}

	if err := s.debitChannelStock(ctx, tx, order.Channel, cartLine, product, &meta); err != nil {
		return nil, nil, err
	}

	line := &domain.OrderLine{
		OrderID:   order.ID,
		VariantID: cartLine.VariantID,
		ProductID: cartLine.ProductID,
		Qty:       cartLine.Qty,
		UnitPrice: cartLine.UnitPrice - cartLine.UnitDiscount,
		Meta:      meta,
	}
	lineID, err := s.orders.AddLine(ctx, tx, line)
	if err != nil {
		return nil, nil, err
	}
	line.ID = lineID

	if err := s.catalog.AdjustPopularity(ctx, tx, product.ID, 1); err != nil {
		return nil, nil, err
	}
	return line, alert, nil
}

// debitChannelStock debits the variant's per-channel partition when one
// exists. Variants without a partition sell from base stock alone.
func (s *CheckoutService) debitChannelStock(ctx context.Context, tx pgx.Tx, channel string, cartLine *domain.CartLine, product *domain.Product, meta *domain.ReservationMeta) error {
	cs, err := s.catalog.GetChannelStockForUpdate(ctx, tx, cartLine.VariantID, channel)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if cs.Stock < cartLine.Qty {
		return apperrors.InsufficientStock(product.Name, cartLine.Qty, cs.Stock)
	}
	if err := s.catalog.AdjustChannelStock(ctx, tx, cartLine.VariantID, channel, -cartLine.Qty, 0); err != nil {
		return err
	}
	meta.ChannelStock = &domain.ChannelDebit{Channel: channel, QtyDebited: cartLine.Qty}
	return nil
}

// detachCartLines removes reserved lines from the user's Redis cart.
// Best-effort: the reservation already committed.
func (s *CheckoutService) detachCartLines(ctx context.Context, in *ReserveCartInput) {
	if s.carts == nil {
		return
	}

	cart, err := s.carts.Get(ctx, in.UserID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "load cart after reservation", slog.Any("error", err))
		}
		return
	}

	ids := make([]int64, 0, len(in.Lines))
	for _, l := range in.Lines {
		ids = append(ids, l.VariantID)
	}
	if cart.RemoveLines(ids) == 0 {
		return
	}

	cart.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, cart); err != nil {
		s.logger.WarnContext(ctx, "save cart after reservation", slog.Any("error", err))
	}
}

// CancelOrder restores everything a reservation consumed, replaying only the
// persisted per-line metadata. Calling it again after success is a no-op, so
// duplicate webhook deliveries are harmless.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID string) error {
	var order *domain.Order

	ctx, end := database.TraceQuery(ctx, "CancelOrder")
	err := database.WithinTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderCancelled {
			order = nil
			return nil
		}

		lines, err := s.orders.ListLines(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for i := range lines {
			if lines[i].Restored {
				continue
			}
			if err := s.restoreLine(ctx, tx, orderID, &lines[i]); err != nil {
				return err
			}
		}

		if err := s.ledger.CancelReserveTx(ctx, tx, orderID); err != nil {
			return err
		}

		now := s.now()
		if err := s.orders.SetStatus(ctx, tx, orderID, domain.OrderCancelled, now); err != nil {
			return err
		}
		order.Status = domain.OrderCancelled
		order.CancelledAt = &now
		return nil
	})
	end(err)
	if err != nil {
		return err
	}
	if order == nil {
		// Already cancelled earlier.
		return nil
	}

	s.producer.PublishOrderSettled(ctx, order)
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", orderID))
	return nil
}

func (s *CheckoutService) restoreLine(ctx context.Context, tx pgx.Tx, orderID string, line *domain.OrderLine) error {
	meta := line.Meta

	if meta.Promo != nil {
		if err := s.promo.Restore(ctx, tx, meta.Promo, line.VariantID, line.Qty); err != nil {
			return err
		}
	}

	switch {
	case meta.BundleMode == domain.BundleModeVirtual:
		if err := s.bundles.Restore(ctx, tx, meta.BundleComponents, orderID); err != nil {
			return err
		}
		if err := s.bundles.RefreshDerivedStock(ctx, tx, line.VariantID); err != nil {
			return err
		}
	case meta.StockDecremented > 0:
		if _, err := s.catalog.GetVariantForUpdate(ctx, tx, line.VariantID); err != nil {
			return err
		}
		if err := s.catalog.AdjustStock(ctx, tx, line.VariantID, meta.StockDecremented); err != nil {
			return err
		}
		if err := s.catalog.InsertMovement(ctx, tx, &domain.StockMovement{
			VariantID: line.VariantID,
			Change:    meta.StockDecremented,
			Type:      domain.MovementOrderCancel,
			RelatedID: orderID,
		}); err != nil {
			return err
		}
	}

	if meta.ChannelStock != nil {
		if err := s.catalog.AdjustChannelStock(ctx, tx, line.VariantID, meta.ChannelStock.Channel, meta.ChannelStock.QtyDebited, 0); err != nil {
			return err
		}
	}

	if err := s.catalog.AdjustPopularity(ctx, tx, line.ProductID, -1); err != nil {
		return err
	}
	return s.orders.MarkLineRestored(ctx, tx, line.ID)
}

// ConfirmPayment settles a reservation after the payment gateway confirms.
// The discount reservation moves to USED exactly once; repeated calls are
// no-ops.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderID string) error {
	var order *domain.Order

	err := database.WithinTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case domain.OrderPaid:
			order = nil
			return nil
		case domain.OrderCancelled:
			return fmt.Errorf("order %s is cancelled: %w", orderID, apperrors.ErrConflict)
		}

		if err := s.ledger.MarkUsedTx(ctx, tx, orderID); err != nil {
			return err
		}
		if err := s.orders.SetStatus(ctx, tx, orderID, domain.OrderPaid, s.now()); err != nil {
			return err
		}
		order.Status = domain.OrderPaid
		return nil
	})
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}

	s.producer.PublishOrderSettled(ctx, order)
	s.logger.InfoContext(ctx, "order paid", slog.String("order_id", orderID))
	return nil
}

// GetOrder returns an order with its lines.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*domain.Order, []domain.OrderLine, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.orders.ListLines(ctx, s.db, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}
