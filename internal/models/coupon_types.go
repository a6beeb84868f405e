package models

import "time"

// Coupon is the model for the 'coupons' table
type Coupon struct {
	ID             int64      `json:"id" db:"id"`
	Code           string     `json:"code" db:"code"`
	Type           string     `json:"type" db:"type"` // 'percentage' or 'flat'
	Value          float64    `json:"value" db:"value"`
	MinOrder       float64    `json:"minOrder" db:"min_order"`
	MaxDiscountCap *float64   `json:"maxDiscountCap,omitempty" db:"max_discount_cap"`
	IsActive       bool       `json:"isActive" db:"is_active"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}
