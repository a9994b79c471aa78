package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

// Verified payment statuses, normalized from the provider's vocabulary.
const (
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Notification is a payment status callback after server-side verification.
type Notification struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// PaymentGateway authenticates payment status callbacks. Webhook payloads are
// never trusted directly; the status is re-read from the provider's API
// before any order transition happens.
type PaymentGateway interface {
	VerifyNotification(ctx context.Context, orderID string) (*Notification, error)
}

// HTTPDoer executes an HTTP request. The circuit-broken httpclient.Client
// satisfies this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPGateway verifies notifications against the payment provider's
// transaction status endpoint.
type HTTPGateway struct {
	client    HTTPDoer
	baseURL   string
	serverKey string
	logger    *slog.Logger
}

// NewHTTPGateway creates a payment gateway client.
func NewHTTPGateway(client HTTPDoer, baseURL, serverKey string, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		client:    client,
		baseURL:   baseURL,
		serverKey: serverKey,
		logger:    logger,
	}
}

// transactionStatusResponse is the provider's wire format.
type transactionStatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	GrossAmount       int64  `json:"gross_amount"`
}

// VerifyNotification re-reads the transaction status for an order from the
// provider. The webhook body itself is only a hint to call this.
func (g *HTTPGateway) VerifyNotification(ctx context.Context, orderID string) (*Notification, error) {
	url := fmt.Sprintf("%s/v2/%s/status", g.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.SetBasicAuth(g.serverKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call payment provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound("transaction", orderID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var status transactionStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	if status.OrderID != orderID {
		return nil, fmt.Errorf("provider returned status for order %s, expected %s", status.OrderID, orderID)
	}

	n := &Notification{
		OrderID: status.OrderID,
		Status:  normalizeStatus(status.TransactionStatus),
		Amount:  status.GrossAmount,
	}
	g.logger.DebugContext(ctx, "verified payment notification",
		slog.String("order_id", n.OrderID),
		slog.String("status", n.Status))
	return n, nil
}

// normalizeStatus maps the provider's transaction statuses onto the three
// transitions the order lifecycle understands.
func normalizeStatus(s string) string {
	switch s {
	case "settlement", "capture":
		return StatusPaid
	case "cancel", "deny", "expire", "failure":
		return StatusCancelled
	default:
		return StatusPending
	}
}
