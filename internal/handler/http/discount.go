package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/service"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
	"github.com/utafrali/PromotionGo/pkg/httputil"
)

// DiscountHandler handles the CMS discount endpoints.
type DiscountHandler struct {
	service *service.DiscountService
	logger  *slog.Logger
}

// NewDiscountHandler creates a new discount HTTP handler.
func NewDiscountHandler(svc *service.DiscountService, logger *slog.Logger) *DiscountHandler {
	return &DiscountHandler{service: svc, logger: logger}
}

// DiscountRequest is the JSON body for creating or updating a discount.
type DiscountRequest struct {
	Name            string                       `json:"name"`
	Code            string                       `json:"code"`
	ValueType       string                       `json:"value_type"`
	Value           int64                        `json:"value"`
	MaxDiscount     int64                        `json:"max_discount"`
	AppliesTo       string                       `json:"applies_to"`
	MinOrderAmount  int64                        `json:"min_order_amount"`
	MinOrderQty     int                          `json:"min_order_qty"`
	EligibilityType string                       `json:"eligibility_type"`
	UsageLimit      *int                         `json:"usage_limit"`
	IsActive        bool                         `json:"is_active"`
	IsEcommerce     bool                         `json:"is_ecommerce"`
	IsPos           bool                         `json:"is_pos"`
	IsAuto          bool                         `json:"is_auto"`
	StartedAt       time.Time                    `json:"started_at"`
	ExpiredAt       time.Time                    `json:"expired_at"`
	DaysOfWeek      []int                        `json:"days_of_week"`
	Targets         service.DiscountTargetsInput `json:"targets"`
	VariantItems    []service.VariantItemInput   `json:"variant_items"`
	CustomerIDs     []int64                      `json:"customer_ids"`
	GroupIDs        []int64                      `json:"customer_group_ids"`
	Transfer        bool                         `json:"transfer"`
}

func (req *DiscountRequest) toInput() *service.DiscountInput {
	return &service.DiscountInput{
		Name:            req.Name,
		Code:            req.Code,
		ValueType:       req.ValueType,
		Value:           req.Value,
		MaxDiscount:     req.MaxDiscount,
		AppliesTo:       req.AppliesTo,
		MinOrderAmount:  req.MinOrderAmount,
		MinOrderQty:     req.MinOrderQty,
		EligibilityType: req.EligibilityType,
		UsageLimit:      req.UsageLimit,
		IsActive:        req.IsActive,
		IsEcommerce:     req.IsEcommerce,
		IsPos:           req.IsPos,
		IsAuto:          req.IsAuto,
		StartedAt:       req.StartedAt,
		ExpiredAt:       req.ExpiredAt,
		DaysOfWeek:      req.DaysOfWeek,
		Targets:         req.Targets,
		VariantItems:    req.VariantItems,
		CustomerIDs:     req.CustomerIDs,
		GroupIDs:        req.GroupIDs,
		Transfer:        req.Transfer,
	}
}

// discountDetail is the GET response carrying the association rows.
type discountDetail struct {
	*domain.Discount
	Targets      []domain.DiscountTarget      `json:"targets"`
	VariantItems []domain.DiscountVariantItem `json:"variant_items"`
}

// Create handles POST /api/v1/discounts
func (h *DiscountHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req DiscountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	d, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: d})
}

// Update handles PUT /api/v1/discounts/{id}
func (h *DiscountHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id, err := parseID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req DiscountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	d, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: d})
}

// Get handles GET /api/v1/discounts/{id}
func (h *DiscountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	d, targets, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: discountDetail{
		Discount:     d,
		Targets:      targets,
		VariantItems: items,
	}})
}

// List handles GET /api/v1/discounts
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}

	discounts, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Data:       discounts,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
	})
}

// Delete handles DELETE /api/v1/discounts/{id}
func (h *DiscountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listResponse is the paginated list envelope.
type listResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(param + " must be a positive integer")
	}
	return id, nil
}
