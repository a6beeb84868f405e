package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func standardConfig() Config {
	return Config{
		CGSTRatePct: 9,
		SGSTRatePct: 9,
		Tiers: []Tier{
			{StartKm: 0, EndKm: 5, Price: 30},
			{StartKm: 5, EndKm: 10, Price: 60},
			{StartKm: 10, EndKm: 20, Price: 100},
		},
	}
}

func TestCalculate_PercentageCouponWithCap(t *testing.T) {
	items := []Item{{UnitPrice: 250, Quantity: 2}} // 500
	coupon := &Coupon{Type: "percentage", Value: 10, MaxDiscountCap: ptr(40)}

	b := Calculate(items, coupon, 3, standardConfig()).Rounded()

	// 10% of 500 is 50, capped at 40; taxable 460; 9% each side; tier 0-5km.
	assert.Equal(t, 500.0, b.ItemTotal)
	assert.Equal(t, 40.0, b.Discount)
	assert.Equal(t, 460.0, b.TaxableAmount)
	assert.Equal(t, 41.4, b.CGST)
	assert.Equal(t, 41.4, b.SGST)
	assert.Equal(t, 30.0, b.DeliveryFee)
	assert.Equal(t, 572.8, b.Total)
}

func TestCalculate_FlatCouponClampedToItemTotal(t *testing.T) {
	items := []Item{{UnitPrice: 80, Quantity: 1}}
	coupon := &Coupon{Type: "flat", Value: 100}

	b := Calculate(items, coupon, 1, standardConfig())

	assert.Equal(t, 80.0, b.Discount)
	assert.Equal(t, 0.0, b.TaxableAmount)
	assert.Equal(t, 0.0, b.CGST)
	assert.Equal(t, 0.0, b.SGST)
}

func TestCalculate_MinOrderBoundaryIsInclusive(t *testing.T) {
	coupon := &Coupon{Type: "flat", Value: 50, MinOrder: 300}
	cfg := standardConfig()

	below := Calculate([]Item{{UnitPrice: 299.99, Quantity: 1}}, coupon, 1, cfg)
	assert.Equal(t, 0.0, below.Discount, "just under min order must not discount")

	exact := Calculate([]Item{{UnitPrice: 300.00, Quantity: 1}}, coupon, 1, cfg)
	assert.Equal(t, 50.0, exact.Discount, "exactly min order must discount")
}

func TestCalculate_NoCoupon(t *testing.T) {
	b := Calculate([]Item{{UnitPrice: 100, Quantity: 1}}, nil, 1, standardConfig())
	assert.Equal(t, 0.0, b.Discount)
	assert.Equal(t, 100.0, b.TaxableAmount)
}

func TestCalculate_UncappedPercentageCoupon(t *testing.T) {
	coupon := &Coupon{Type: "percentage", Value: 20}
	b := Calculate([]Item{{UnitPrice: 500, Quantity: 1}}, coupon, 1, standardConfig())
	assert.Equal(t, 100.0, b.Discount)
}

func TestDeliveryFee_Tiers(t *testing.T) {
	cfg := standardConfig()
	cases := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"zero distance uses first tier", 0, 30},
		{"negative distance uses first tier", -2, 30},
		{"inside first tier", 4.9, 30},
		{"tier boundary belongs to both, first match wins", 5, 30},
		{"inside second tier", 7, 60},
		{"inside third tier", 15, 100},
		{"beyond last tier charges farthest rate", 35, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Calculate([]Item{{UnitPrice: 100, Quantity: 1}}, nil, tc.distance, cfg)
			assert.Equal(t, tc.want, b.DeliveryFee)
		})
	}
}

func TestDeliveryFee_FreeDeliveryThresholdWinsOverTiers(t *testing.T) {
	cfg := standardConfig()
	cfg.FreeDeliveryThreshold = ptr(500)

	free := Calculate([]Item{{UnitPrice: 500, Quantity: 1}}, nil, 15, cfg)
	assert.Equal(t, 0.0, free.DeliveryFee)

	charged := Calculate([]Item{{UnitPrice: 499, Quantity: 1}}, nil, 15, cfg)
	assert.Equal(t, 100.0, charged.DeliveryFee)
}

func TestRounding_OnlyAtTheEdge(t *testing.T) {
	// 3 x 33.33 = 99.99; 9% of 99.99 = 8.9991 which must not be rounded
	// before entering the total.
	b := Calculate([]Item{{UnitPrice: 33.33, Quantity: 3}}, nil, 1, standardConfig())

	assert.InDelta(t, 8.9991, b.CGST, 1e-9)
	assert.InDelta(t, 99.99+8.9991+8.9991+30, b.Total, 1e-9)

	r := b.Rounded()
	assert.Equal(t, 9.0, r.CGST)
	assert.Equal(t, 147.99, r.Total)
}
