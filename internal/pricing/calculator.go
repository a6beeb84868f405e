// Package pricing computes checkout financials. Everything in here is pure:
// no I/O, no clock, deterministic for a given input.
package pricing

import "math"

// Item is a priced cart line.
type Item struct {
	UnitPrice float64
	Quantity  int
}

// Coupon mirrors the applied-coupon snapshot held by a checkout session.
type Coupon struct {
	Code           string
	Type           string // 'percentage' or 'flat'
	Value          float64
	MinOrder       float64
	MaxDiscountCap *float64 // percentage coupons only; nil = uncapped
}

// Tier is one row of the delivery fee table: startKm <= d <= endKm -> price.
// Tiers are ordered and non-overlapping.
type Tier struct {
	StartKm float64
	EndKm   float64
	Price   float64
}

// Config carries the merchant-configured rates and delivery rules.
type Config struct {
	CGSTRatePct           float64
	SGSTRatePct           float64
	FreeDeliveryThreshold *float64 // item total at or above this ships free
	Tiers                 []Tier
}

// Breakdown holds every computed financial figure for a checkout.
// Values carry full float64 precision; call Rounded before persisting or
// returning them, never in between additive steps.
type Breakdown struct {
	ItemTotal     float64 `json:"itemTotal"`
	Discount      float64 `json:"discount"`
	TaxableAmount float64 `json:"taxableAmount"`
	CGST          float64 `json:"cgst"`
	SGST          float64 `json:"sgst"`
	DeliveryFee   float64 `json:"deliveryFee"`
	Total         float64 `json:"total"`
}

// Calculate produces the full financial breakdown for a set of items.
// coupon may be nil (no discount). distanceKm <= 0 resolves to the first
// (cheapest) delivery tier.
func Calculate(items []Item, coupon *Coupon, distanceKm float64, cfg Config) Breakdown {
	var b Breakdown

	for _, it := range items {
		b.ItemTotal += it.UnitPrice * float64(it.Quantity)
	}

	b.Discount = DiscountFor(coupon, b.ItemTotal)

	b.TaxableAmount = b.ItemTotal - b.Discount
	if b.TaxableAmount < 0 {
		b.TaxableAmount = 0
	}

	// Both tax components apply to the post-discount amount.
	b.CGST = b.TaxableAmount * cfg.CGSTRatePct / 100
	b.SGST = b.TaxableAmount * cfg.SGSTRatePct / 100

	b.DeliveryFee = deliveryFeeFor(distanceKm, b.ItemTotal, cfg)

	b.Total = b.TaxableAmount + b.CGST + b.SGST + b.DeliveryFee
	return b
}

// DiscountFor returns the discount a coupon grants on an item total.
// Exposed separately so coupon validation can quote a discount without
// running the full breakdown.
func DiscountFor(coupon *Coupon, itemTotal float64) float64 {
	if coupon == nil {
		return 0
	}
	// Inclusive boundary: itemTotal == MinOrder qualifies.
	if itemTotal < coupon.MinOrder {
		return 0
	}

	switch coupon.Type {
	case "flat":
		return math.Min(coupon.Value, itemTotal)
	case "percentage":
		discount := itemTotal * coupon.Value / 100
		if coupon.MaxDiscountCap != nil {
			discount = math.Min(discount, *coupon.MaxDiscountCap)
		}
		return discount
	}
	return 0
}

func deliveryFeeFor(distanceKm, itemTotal float64, cfg Config) float64 {
	// Free delivery wins over the distance tiers when the threshold is met.
	if cfg.FreeDeliveryThreshold != nil && itemTotal >= *cfg.FreeDeliveryThreshold {
		return 0
	}
	if len(cfg.Tiers) == 0 {
		return 0
	}
	if distanceKm <= 0 {
		return cfg.Tiers[0].Price
	}
	for _, t := range cfg.Tiers {
		if distanceKm >= t.StartKm && distanceKm <= t.EndKm {
			return t.Price
		}
	}
	// Beyond the last tier: charge the farthest configured rate.
	return cfg.Tiers[len(cfg.Tiers)-1].Price
}

// Round2 rounds a monetary value to 2 decimal places. Used only at the
// persistence/response edge so intermediate arithmetic keeps full precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded returns a copy of the breakdown with every field at 2 decimal
// places, ready for persistence or display.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		ItemTotal:     Round2(b.ItemTotal),
		Discount:      Round2(b.Discount),
		TaxableAmount: Round2(b.TaxableAmount),
		CGST:          Round2(b.CGST),
		SGST:          Round2(b.SGST),
		DeliveryFee:   Round2(b.DeliveryFee),
		Total:         Round2(b.Total),
	}
}
