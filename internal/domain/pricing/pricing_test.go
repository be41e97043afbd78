package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		StandardShippingCost:  decimal.NewFromInt(10),
	}
}

func assertDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestCompute_FreeShippingAboveThreshold(t *testing.T) {
	q := Compute(testConfig(), decimal.RequireFromString("120.00"), decimal.Zero)

	assertDecimalEqual(t, "0.00", q.Shipping)
	assertDecimalEqual(t, "12.00", q.Tax)
	assertDecimalEqual(t, "132.00", q.Total)
}

func TestCompute_DiscountedBelowThreshold(t *testing.T) {
	q := Compute(testConfig(), decimal.RequireFromString("80.00"), decimal.RequireFromString("20.00"))

	assertDecimalEqual(t, "10.00", q.Shipping)
	assertDecimalEqual(t, "6.00", q.Tax)
	assertDecimalEqual(t, "76.00", q.Total)
}

func TestCompute_SubtotalExactlyAtThresholdPaysShipping(t *testing.T) {
	q := Compute(testConfig(), decimal.NewFromInt(100), decimal.Zero)

	assertDecimalEqual(t, "10.00", q.Shipping)
}

func TestCompute_SubtotalJustAboveThreshold(t *testing.T) {
	q := Compute(testConfig(), decimal.RequireFromString("100.01"), decimal.Zero)

	assertDecimalEqual(t, "0.00", q.Shipping)
}

func TestCompute_DiscountClampedToSubtotal(t *testing.T) {
	q := Compute(testConfig(), decimal.NewFromInt(50), decimal.NewFromInt(999))

	assertDecimalEqual(t, "50.00", q.Discount)
	assertDecimalEqual(t, "0.00", q.Tax)
	// Only shipping remains.
	assertDecimalEqual(t, "10.00", q.Total)
}

func TestCompute_NegativeDiscountFlooredAtZero(t *testing.T) {
	q := Compute(testConfig(), decimal.NewFromInt(50), decimal.NewFromInt(-5))

	assertDecimalEqual(t, "0.00", q.Discount)
	assertDecimalEqual(t, "5.00", q.Tax)
	assertDecimalEqual(t, "65.00", q.Total)
}

func TestCompute_TotalIdentityHolds(t *testing.T) {
	cfg := testConfig()
	cases := []struct{ subtotal, discount string }{
		{"0.01", "0"},
		{"99.99", "10.00"},
		{"100.00", "0"},
		{"100.01", "100.01"},
		{"1234.56", "34.56"},
	}

	for _, tc := range cases {
		q := Compute(cfg, decimal.RequireFromString(tc.subtotal), decimal.RequireFromString(tc.discount))
		sum := q.Subtotal.Sub(q.Discount).Add(q.Tax).Add(q.Shipping)
		assert.True(t, q.Total.Equal(sum),
			"subtotal %s discount %s: total %s != components %s", tc.subtotal, tc.discount, q.Total, sum)
	}
}

func TestCompute_RoundsToTwoPlaces(t *testing.T) {
	cfg := Config{
		TaxRate:               decimal.RequireFromString("0.0825"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		StandardShippingCost:  decimal.RequireFromString("9.99"),
	}

	q := Compute(cfg, decimal.RequireFromString("33.33"), decimal.Zero)

	// 33.33 * 0.0825 = 2.749725 → 2.75
	assertDecimalEqual(t, "2.75", q.Tax)
	assertDecimalEqual(t, "46.07", q.Total)
}
