package services

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// PriceLine is one cart line as seen by the pricing engine: the unit sale
// price (already reduced by the product's own sale percent) and a quantity.
type PriceLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// PriceBreakdown is the result of pricing a set of lines. The same breakdown
// is returned by the cart preview and persisted onto the order at checkout.
type PriceBreakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent int             `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FreeShipping    bool            `json:"free_shipping"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Total           decimal.Decimal `json:"total"`
}

// Price computes the order total for the given lines and coupon selection.
//
// subtotal = sum(unit sale price * quantity). A percent coupon discounts the
// subtotal only when it reaches the coupon's minimum spend; the discount is
// rounded half-up to a whole currency unit. A free-shipping coupon zeroes the
// shipping fee. The total is clamped at zero.
//
// Price is pure: it performs no I/O and both the cart preview and the
// checkout transaction call it with the same inputs to get identical results.
func Price(lines []PriceLine, percentCoupon, freeShipCoupon *models.Coupon, baseShippingFee decimal.Decimal) PriceBreakdown {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	discountPercent := 0
	discountAmount := decimal.Zero
	if percentCoupon != nil && subtotal.GreaterThanOrEqual(percentCoupon.MinSpend) {
		discountPercent = percentCoupon.PercentOff
		// Round half-up to a whole currency unit. decimal.Round rounds half
		// away from zero, which is the same thing for non-negative amounts.
		discountAmount = subtotal.
			Mul(decimal.NewFromInt(int64(discountPercent))).
			Div(decimal.NewFromInt(100)).
			Round(0)
	}

	freeShipping := freeShipCoupon != nil
	shippingFee := baseShippingFee
	if freeShipping {
		shippingFee = decimal.Zero
	}

	total := subtotal.Sub(discountAmount).Add(shippingFee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return PriceBreakdown{
		Subtotal:        subtotal.Round(2),
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount.Round(2),
		FreeShipping:    freeShipping,
		ShippingFee:     shippingFee.Round(2),
		Total:           total.Round(2),
	}
}
