package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/gateway"
	"github.com/utafrali/PromotionGo/internal/service"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
	"github.com/utafrali/PromotionGo/pkg/httputil"
)

// CheckoutHandler handles reservation and order lifecycle endpoints.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	payments gateway.PaymentGateway
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(checkout *service.CheckoutService, payments gateway.PaymentGateway, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, payments: payments, logger: logger}
}

// Reserve handles POST /api/v1/checkout/reserve
func (h *CheckoutHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req service.ReserveCartInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.checkout.ReserveCart(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// statusMessage is the body for endpoints that only report an outcome.
type statusMessage struct {
	Message string `json:"message"`
}

// orderDetail is the GET response carrying the order's lines.
type orderDetail struct {
	*domain.Order
	Lines []domain.OrderLine `json:"lines"`
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("order id is required"), h.logger)
		return
	}

	order, lines, err := h.checkout.GetOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orderDetail{Order: order, Lines: lines}})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *CheckoutHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("order id is required"), h.logger)
		return
	}

	if err := h.checkout.CancelOrder(r.Context(), orderID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: statusMessage{Message: "order cancelled"}})
}

// paymentNotificationRequest is the webhook body. Only the order id is used;
// the status is re-verified against the provider.
type paymentNotificationRequest struct {
	OrderID string `json:"order_id"`
}

// PaymentNotification handles POST /api/v1/payments/notifications
func (h *CheckoutHandler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req paymentNotificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.OrderID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("order_id is required"), h.logger)
		return
	}

	n, err := h.payments.VerifyNotification(r.Context(), req.OrderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch n.Status {
	case gateway.StatusPaid:
		err = h.checkout.ConfirmPayment(r.Context(), n.OrderID)
	case gateway.StatusCancelled:
		err = h.checkout.CancelOrder(r.Context(), n.OrderID)
	default:
		httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: statusMessage{Message: "notification pending"}})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "payment notification processed",
		slog.String("order_id", n.OrderID),
		slog.String("status", n.Status))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: statusMessage{Message: "notification processed"}})
}
