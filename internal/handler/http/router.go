package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/PromotionGo/internal/gateway"
	"github.com/utafrali/PromotionGo/internal/service"
	"github.com/utafrali/PromotionGo/pkg/health"
	"github.com/utafrali/PromotionGo/pkg/middleware"
)

// RouterDeps carries everything the router wires up.
type RouterDeps struct {
	Discounts *service.DiscountService
	Checkout  *service.CheckoutService
	Listing   *service.ListingService
	Inventory *service.InventoryService
	Assembler *service.KitAssembler
	Payments  gateway.PaymentGateway
	Health    *health.Handler
	Logger    *slog.Logger
}

// NewRouter creates a chi router with all promotion service routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics("promotion"))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	discountHandler := NewDiscountHandler(deps.Discounts, deps.Logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Payments, deps.Logger)
	catalogHandler := NewCatalogHandler(deps.Listing, deps.Inventory, deps.Assembler, deps.Logger)

	r.Route("/api/v1/discounts", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", discountHandler.Create)
		r.Get("/", discountHandler.List)
		r.Get("/{id}", discountHandler.Get)
		r.Put("/{id}", discountHandler.Update)
		r.Delete("/{id}", discountHandler.Delete)
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/reserve", checkoutHandler.Reserve)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/{id}", checkoutHandler.GetOrder)
		r.Post("/{id}/cancel", checkoutHandler.CancelOrder)
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/notifications", checkoutHandler.PaymentNotification)
	})

	r.Route("/api/v1/pricing", func(r chi.Router) {
		r.Get("/extra-discounts", catalogHandler.ExtraDiscounts)
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/{variantId}/availability", catalogHandler.Availability)
	})

	r.Route("/api/v1/bundles", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/{variantId}/assemble", catalogHandler.Assemble)
		r.Post("/{variantId}/disassemble", catalogHandler.Disassemble)
	})

	return r
}
