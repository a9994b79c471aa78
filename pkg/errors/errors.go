package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDiscountLimit     = errors.New("discount usage limit reached")
	ErrPromoConflict     = errors.New("promotion conflict")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InsufficientStock creates a 422 error carrying the product name and the
// quantity that is actually available.
func InsufficientStock(productName string, requested, available int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for %s: requested %d, available %d", productName, requested, available),
		Details: map[string]any{
			"product_name": productName,
			"requested":    requested,
			"available":    available,
		},
		Status: http.StatusUnprocessableEntity,
		Err:    ErrInsufficientStock,
	}
}

// DiscountLimitReached creates a 422 error for an exhausted usage quota.
func DiscountLimitReached(code string) *AppError {
	return &AppError{
		Code:    "DISCOUNT_LIMIT_REACHED",
		Message: fmt.Sprintf("discount %s has reached its usage limit", code),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrDiscountLimit,
	}
}

// PromoConflictDetail describes one product that clashes with an active campaign.
type PromoConflictDetail struct {
	ProductID  int64 `json:"product_id"`
	VariantID  int64 `json:"variant_id,omitempty"`
	CampaignID int64 `json:"campaign_id"`
}

// PromoConflict creates a 409 error listing the conflicting products and
// whether the caller can resolve the conflict by setting the transfer flag.
func PromoConflict(conflicts []PromoConflictDetail, transferable bool) *AppError {
	return &AppError{
		Code:    "PROMO_CONFLICT",
		Message: fmt.Sprintf("%d product(s) already belong to an active campaign", len(conflicts)),
		Details: map[string]any{
			"conflicts":    conflicts,
			"transferable": transferable,
		},
		Status: http.StatusConflict,
		Err:    ErrPromoConflict,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict), errors.Is(err, ErrPromoConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrDiscountLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
