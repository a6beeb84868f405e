package models

import "time"

// Address is the model for the 'addresses' table.
// DistanceKm is resolved once by the geocoding wrapper when the address is
// saved, and drives the tiered delivery fee at checkout.
type Address struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"userId" db:"user_id"`
	Label      string    `json:"label" db:"label"` // e.g. Home, Work
	Line1      string    `json:"line1" db:"line1"`
	Line2      *string   `json:"line2,omitempty" db:"line2"`
	City       string    `json:"city" db:"city"`
	State      string    `json:"state" db:"state"`
	Pincode    string    `json:"pincode" db:"pincode"`
	Phone      string    `json:"phone" db:"phone"`
	DistanceKm float64   `json:"distanceKm" db:"distance_km"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
