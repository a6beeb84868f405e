package models

import (
	"time"
)

// Product is the model for the 'products' table.
// Nullable columns use pointers for clean JSON serialization.
type Product struct {
	ID          int64  `json:"id" db:"id"`
	Slug        string `json:"slug" db:"slug"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // e.g. cakes, cookies, breads

	Price    float64 `json:"price" db:"price"`
	ImageURL *string `json:"imageUrl,omitempty" db:"image_url"`

	IsEggless   bool `json:"isEggless" db:"is_eggless"`
	IsAvailable bool `json:"isAvailable" db:"is_available"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (Not in DB table, populated manually)
	Variants []ProductVariant `json:"variants,omitempty" db:"-"`
}

// ProductVariant is the model for the 'product_variants' table.
// A variant is a size/weight option with its own price (e.g. "500g", "1kg").
type ProductVariant struct {
	ID        int64   `json:"id" db:"id"`
	ProductID int64   `json:"productId" db:"product_id"`
	Name      string  `json:"name" db:"name"`
	Price     float64 `json:"price" db:"price"`
}
