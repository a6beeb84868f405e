package models

import "time"

// Cart defines the struct for the 'carts' table
type Cart struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CartItem defines the struct for the 'cart_items' table
type CartItem struct {
	ID             int64     `json:"id" db:"id"`
	CartID         int64     `json:"cartId" db:"cart_id"`
	ProductID      int64     `json:"productId" db:"product_id"`
	VariantID      *int64    `json:"variantId,omitempty" db:"variant_id"`
	Quantity       int       `json:"quantity" db:"quantity"`
	Customizations *string   `json:"customizations,omitempty" db:"customizations"` // e.g. message on the cake
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// GuestCartItem is a cart line for a not-yet-authenticated visitor.
// Guest carts live in Redis under a client-issued anonymous id and are
// merged into the durable cart at login.
type GuestCartItem struct {
	ProductID      int64   `json:"productId"`
	VariantID      *int64  `json:"variantId,omitempty"`
	Quantity       int     `json:"quantity"`
	Customizations *string `json:"customizations,omitempty"`
}
