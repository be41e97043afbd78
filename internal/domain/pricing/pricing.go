// Package pricing computes order totals from a cart subtotal and a discount
// decision. It is pure: all inputs arrive as arguments, including the tax and
// shipping configuration, and no call touches I/O or process-wide state.
package pricing

import "github.com/shopspring/decimal"

// Config carries the monetary knobs for a single computation. It is passed
// explicitly on every call rather than read from the environment.
type Config struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	StandardShippingCost  decimal.Decimal
}

// Quote is the result of a pricing computation. All values are rounded to
// two decimal places.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute derives tax, shipping, and total from a cart subtotal and an
// already-validated discount amount.
//
// Shipping is free only when the subtotal strictly exceeds the threshold; a
// cart exactly at the threshold still pays standard shipping. Tax applies to
// the discounted subtotal. The discount is clamped to [0, subtotal] before
// use, so a decision larger than the cart can never drive the total negative.
func Compute(cfg Config, subtotal, discount decimal.Decimal) Quote {
	subtotal = subtotal.Round(2)
	discount = clamp(discount, subtotal).Round(2)

	tax := subtotal.Sub(discount).Mul(cfg.TaxRate).Round(2)

	shipping := cfg.StandardShippingCost.Round(2)
	if subtotal.GreaterThan(cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := subtotal.Sub(discount).Add(tax).Add(shipping).Round(2)

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
	}
}

// clamp bounds d to the [0, max] range.
func clamp(d, max decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}
