package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/PromotionGo/internal/service"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
	"github.com/utafrali/PromotionGo/pkg/httputil"
)

// CatalogHandler handles the read-side pricing and inventory endpoints plus
// the CMS kit assembly operations.
type CatalogHandler struct {
	listing   *service.ListingService
	inventory *service.InventoryService
	assembler *service.KitAssembler
	logger    *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(listing *service.ListingService, inventory *service.InventoryService, assembler *service.KitAssembler, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		listing:   listing,
		inventory: inventory,
		assembler: assembler,
		logger:    logger,
	}
}

// ExtraDiscounts handles GET /api/v1/pricing/extra-discounts?product_ids=1,2,3
func (h *CatalogHandler) ExtraDiscounts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("product_ids")
	if raw == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("product_ids is required"), h.logger)
		return
	}

	parts := strings.Split(raw, ",")
	if len(parts) > 100 {
		httputil.WriteError(w, r, apperrors.InvalidInput("at most 100 product ids per request"), h.logger)
		return
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			httputil.WriteError(w, r, apperrors.InvalidInput("product_ids must be positive integers"), h.logger)
			return
		}
		ids = append(ids, id)
	}

	extras, err := h.listing.ExtraDiscounts(r.Context(), ids)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: extras})
}

// availabilityResponse reports a variant's sellable quantity.
type availabilityResponse struct {
	VariantID int64  `json:"variant_id"`
	Channel   string `json:"channel,omitempty"`
	Stock     int    `json:"stock"`
}

// Availability handles GET /api/v1/inventory/{variantId}/availability?channel=pos
func (h *CatalogHandler) Availability(w http.ResponseWriter, r *http.Request) {
	variantID, err := parseID(r, "variantId")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	channel := r.URL.Query().Get("channel")
	var stock int
	if channel != "" {
		stock, err = h.inventory.ChannelAvailableStock(r.Context(), variantID, channel)
	} else {
		stock, err = h.inventory.AvailableStock(r.Context(), variantID)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: availabilityResponse{
		VariantID: variantID,
		Channel:   channel,
		Stock:     stock,
	}})
}

// assembleRequest is the body for kit assembly operations.
type assembleRequest struct {
	Qty int `json:"qty"`
}

// Assemble handles POST /api/v1/bundles/{variantId}/assemble
func (h *CatalogHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	h.runAssembly(w, r, h.assembler.Assemble, "bundle assembled")
}

// Disassemble handles POST /api/v1/bundles/{variantId}/disassemble
func (h *CatalogHandler) Disassemble(w http.ResponseWriter, r *http.Request) {
	h.runAssembly(w, r, h.assembler.Disassemble, "bundle disassembled")
}

func (h *CatalogHandler) runAssembly(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, bundleID int64, qty int) error, message string) {
	bundleID, err := parseID(r, "variantId")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req assembleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.Qty <= 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("qty must be positive"), h.logger)
		return
	}

	if err := op(r.Context(), bundleID, req.Qty); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: statusMessage{Message: message}})
}
