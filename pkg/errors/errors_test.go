package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := NotFound("discount", "42")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, http.StatusNotFound, err.Status)
}

func TestInsufficientStockCarriesDetails(t *testing.T) {
	err := InsufficientStock("Kopi Gayo 250g", 6, 5)

	require.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Contains(t, err.Message, "Kopi Gayo 250g")
	assert.Contains(t, err.Message, "requested 6")
	assert.Contains(t, err.Message, "available 5")

	details, ok := err.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, details["available"])
}

func TestPromoConflictPayload(t *testing.T) {
	err := PromoConflict([]PromoConflictDetail{
		{ProductID: 10, CampaignID: 3},
		{ProductID: 11, VariantID: 110, CampaignID: 3},
	}, true)

	assert.Equal(t, "PROMO_CONFLICT", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)

	details, ok := err.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, details["transferable"])
	assert.Len(t, details["conflicts"], 2)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"insufficient stock", ErrInsufficientStock, http.StatusUnprocessableEntity},
		{"discount limit", ErrDiscountLimit, http.StatusUnprocessableEntity},
		{"promo conflict", ErrPromoConflict, http.StatusConflict},
		{"app error status wins", DiscountLimitReached("HEMAT10"), http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
