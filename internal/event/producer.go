package event

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/utafrali/PromotionGo/internal/domain"
	pkgkafka "github.com/utafrali/PromotionGo/pkg/kafka"
	"github.com/utafrali/PromotionGo/pkg/logger"
)

// Kafka topic constants for promotion and reservation domain events.
const (
	TopicOrderReserved   = "promotion.order.reserved"
	TopicOrderPaid       = "promotion.order.paid"
	TopicOrderCancelled  = "promotion.order.cancelled"
	TopicDiscountChanged = "promotion.discount.changed"
	TopicLowStock        = "promotion.stock.low"
)

// Aggregate type constants.
const (
	AggregateTypeOrder    = "order"
	AggregateTypeDiscount = "discount"
	AggregateTypeVariant  = "variant"
)

// Source identifier for events originating from this service.
const SourcePromotionService = "promotion-service"

// OrderReservedData is the payload for an order.reserved event.
type OrderReservedData struct {
	OrderID        string `json:"order_id"`
	UserID         int64  `json:"user_id"`
	Channel        string `json:"channel"`
	LineCount      int    `json:"line_count"`
	DiscountID     *int64 `json:"discount_id,omitempty"`
	DiscountAmount int64  `json:"discount_amount"`
	AutoCode       string `json:"auto_discount_code,omitempty"`
}

// OrderSettledData is the payload for order.paid and order.cancelled events.
type OrderSettledData struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status"`
}

// DiscountChangedData is the payload for a discount.changed event.
type DiscountChangedData struct {
	DiscountID int64  `json:"discount_id"`
	Code       string `json:"code"`
	Action     string `json:"action"`
}

// LowStockData is the payload for a stock.low event.
type LowStockData struct {
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
}

// Producer publishes promotion domain events to Kafka. Publishing is
// best-effort after commit; failures are logged, never rolled into the
// transaction outcome.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishOrderReserved publishes an order.reserved event.
func (p *Producer) PublishOrderReserved(ctx context.Context, o *domain.Order, lineCount int) {
	data := OrderReservedData{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Channel:        o.Channel,
		LineCount:      lineCount,
		DiscountID:     o.DiscountID,
		DiscountAmount: o.DiscountAmount,
		AutoCode:       o.AutoCode,
	}
	p.publish(ctx, TopicOrderReserved, "order.reserved", o.ID, AggregateTypeOrder, data)
}

// PublishOrderSettled publishes order.paid or order.cancelled depending on
// the order's status.
func (p *Producer) PublishOrderSettled(ctx context.Context, o *domain.Order) {
	topic := TopicOrderPaid
	eventType := "order.paid"
	if o.Status == domain.OrderCancelled {
		topic = TopicOrderCancelled
		eventType = "order.cancelled"
	}
	p.publish(ctx, topic, eventType, o.ID, AggregateTypeOrder, OrderSettledData{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  o.Status,
	})
}

// PublishDiscountChanged publishes a discount.changed event after a CMS write.
func (p *Producer) PublishDiscountChanged(ctx context.Context, d *domain.Discount, action string) {
	p.publish(ctx, TopicDiscountChanged, "discount."+action, strconv.FormatInt(d.ID, 10), AggregateTypeDiscount, DiscountChangedData{
		DiscountID: d.ID,
		Code:       d.Code,
		Action:     action,
	})
}

// PublishLowStock publishes a stock.low event when a reservation drops a
// variant under its threshold.
func (p *Producer) PublishLowStock(ctx context.Context, variantID int64, sku string, stock int) {
	p.publish(ctx, TopicLowStock, "stock.low", strconv.FormatInt(variantID, 10), AggregateTypeVariant, LowStockData{
		VariantID: variantID,
		SKU:       sku,
		Stock:     stock,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) {
	if p == nil || p.kafka == nil {
		return
	}

	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourcePromotionService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "build event", slog.String("event_type", eventType), slog.Any("error", err))
		return
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		p.logger.ErrorContext(ctx, "publish event", slog.String("event_type", eventType), slog.Any("error", err))
	}
}
