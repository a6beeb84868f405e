package models

import "time"

// PaymentStatus tracks a checkout session through the payment flow.
type PaymentStatus string

const (
	PaymentStatusIdle       PaymentStatus = "idle"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// CanTransitionTo enforces the forward-only lifecycle:
// idle -> processing -> paid, with failed -> processing allowed for retries.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusIdle:
		return next == PaymentStatusProcessing
	case PaymentStatusProcessing:
		return next == PaymentStatusPaid || next == PaymentStatusFailed
	case PaymentStatusFailed:
		return next == PaymentStatusProcessing
	default:
		// paid is terminal
		return false
	}
}

func (s PaymentStatus) String() string {
	return string(s)
}

// SessionItem is a frozen cart line inside a checkout session.
// It is a snapshot, not a live reference to the cart.
type SessionItem struct {
	ProductID      int64   `json:"productId"`
	Name           string  `json:"name"`
	ImageURL       string  `json:"imageUrl,omitempty"`
	UnitPrice      float64 `json:"unitPrice"`
	Quantity       int     `json:"quantity"`
	Variant        string  `json:"variant,omitempty"`
	Customizations string  `json:"customizations,omitempty"`
}

// AppliedCoupon is the coupon definition captured into the session at apply
// time, so later edits to the coupon do not change an in-flight checkout.
type AppliedCoupon struct {
	ID             int64    `json:"id"`
	Code           string   `json:"code"`
	Type           string   `json:"type"` // 'percentage' or 'flat'
	Value          float64  `json:"value"`
	MinOrder       float64  `json:"minOrder"`
	MaxDiscountCap *float64 `json:"maxDiscountCap,omitempty"`
}

// CheckoutSession is the short-lived server-side record spanning the
// multi-step checkout flow. It lives in Redis under a fixed TTL and is
// destroyed the moment its order is materialized.
type CheckoutSession struct {
	ID    string        `json:"id"`
	Items []SessionItem `json:"items"`

	UserID    *int64 `json:"userId,omitempty"` // nil for guest checkout
	UserEmail string `json:"userEmail"`

	SelectedAddressID *int64 `json:"selectedAddressId,omitempty"`
	ContactName       string `json:"contactName"`
	ContactPhone      string `json:"contactPhone"`
	Notes             string `json:"notes,omitempty"`

	AppliedCoupon *AppliedCoupon `json:"appliedCoupon,omitempty"`

	// Cached financials, recomputed on every relevant mutation.
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	DeliveryFee float64 `json:"deliveryFee"`
	CGST        float64 `json:"cgst"`
	SGST        float64 `json:"sgst"`
	Total       float64 `json:"total"`

	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	GatewayOrderID  string        `json:"gatewayOrderId,omitempty"`
	DatabaseOrderID *int64        `json:"databaseOrderId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session's TTL has elapsed. Redis evicts the
// key on its own, but the record also carries the deadline so a read that
// races eviction still treats the session as gone.
func (s *CheckoutSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
