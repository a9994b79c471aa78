package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PromotionGo/internal/domain"
)

func autoDiscount(id int64, appliesTo string) domain.Discount {
	d := liveDiscount(id, appliesTo)
	d.IsAuto = true
	d.EligibilityType = domain.EligibilityAll
	d.IsEcommerce = true
	return d
}

func cartLine(variantID, productID int64, qty int, unitPrice, unitDiscount int64) AutoLine {
	return AutoLine{CartLine: domain.CartLine{
		VariantID: variantID, ProductID: productID, Qty: qty,
		UnitPrice: unitPrice, UnitDiscount: unitDiscount,
	}}
}

func TestSelectAutoDiscountAll(t *testing.T) {
	d := autoDiscount(1, domain.AppliesToAll)
	snap := BuildSnapshot(BuildInput{Now: testNow, Discounts: []domain.Discount{d}})

	res := SelectAutoDiscount(snap, []AutoLine{
		cartLine(1, 10, 2, 50000, 0),
	}, domain.ChannelEcommerce)

	require.NotNil(t, res)
	assert.Equal(t, int64(1), res.Discount.ID)
	assert.Equal(t, int64(10000), res.Amount)
}

func TestSelectAutoDiscountSkipsManualAndWrongChannel(t *testing.T) {
	manual := autoDiscount(1, domain.AppliesToAll)
	manual.IsAuto = false
	posOnly := autoDiscount(2, domain.AppliesToAll)
	posOnly.IsEcommerce = false
	posOnly.IsPos = true

	snap := BuildSnapshot(BuildInput{Now: testNow, Discounts: []domain.Discount{manual, posOnly}})

	res := SelectAutoDiscount(snap, []AutoLine{cartLine(1, 10, 1, 50000, 0)}, domain.ChannelEcommerce)
	assert.Nil(t, res)
}

func TestSelectAutoDiscountMinOrderThresholds(t *testing.T) {
	d := autoDiscount(1, domain.AppliesToMinOrder)
	d.MinOrderAmount = 150000
	d.MinOrderQty = 3

	snap := BuildSnapshot(BuildInput{Now: testNow, Discounts: []domain.Discount{d}})

	under := SelectAutoDiscount(snap, []AutoLine{cartLine(1, 10, 2, 60000, 0)}, domain.ChannelEcommerce)
	assert.Nil(t, under, "amount threshold not met")

	met := SelectAutoDiscount(snap, []AutoLine{cartLine(1, 10, 3, 60000, 0)}, domain.ChannelEcommerce)
	require.NotNil(t, met)
	assert.Equal(t, int64(18000), met.Amount)
}

func TestSelectAutoDiscountLineAntiStacking(t *testing.T) {
	d := autoDiscount(1, domain.AppliesToBrand)
	snap := BuildSnapshot(BuildInput{
		Now:       testNow,
		Discounts: []domain.Discount{d},
		Targets:   []domain.DiscountTarget{{DiscountID: 1, Type: domain.TargetBrand, TargetID: 9}},
	})

	promoLine := cartLine(1, 10, 1, 50000, 10000)
	promoLine.BrandID = 9
	plainLine := cartLine(2, 11, 1, 30000, 0)
	plainLine.BrandID = 9

	res := SelectAutoDiscount(snap, []AutoLine{promoLine, plainLine}, domain.ChannelEcommerce)
	require.NotNil(t, res)
	assert.Equal(t, int64(3000), res.Amount, "discounted line must not feed the auto discount")

	only := SelectAutoDiscount(snap, []AutoLine{promoLine}, domain.ChannelEcommerce)
	assert.Nil(t, only, "no clean lines leaves nothing eligible")
}

func TestSelectAutoDiscountFixedCappedAtEligibleSubtotal(t *testing.T) {
	d := autoDiscount(1, domain.AppliesToAll)
	d.ValueType = domain.ValueTypeFixed
	d.Value = 90000

	snap := BuildSnapshot(BuildInput{Now: testNow, Discounts: []domain.Discount{d}})

	res := SelectAutoDiscount(snap, []AutoLine{cartLine(1, 10, 1, 40000, 0)}, domain.ChannelEcommerce)
	require.NotNil(t, res)
	assert.Equal(t, int64(40000), res.Amount)
}

func TestSelectAutoDiscountPicksLargest(t *testing.T) {
	five := autoDiscount(1, domain.AppliesToAll)
	five.Value = 5
	ten := autoDiscount(2, domain.AppliesToAll)
	ten.Value = 10

	snap := BuildSnapshot(BuildInput{Now: testNow, Discounts: []domain.Discount{five, ten}})

	res := SelectAutoDiscount(snap, []AutoLine{cartLine(1, 10, 1, 100000, 0)}, domain.ChannelEcommerce)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.Discount.ID)
	assert.Equal(t, int64(10000), res.Amount)
}
