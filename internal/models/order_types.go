package models

import "time"

// Order status lifecycle values.
const (
	OrderStatusPending        = "pending"
	OrderStatusProcessing     = "processing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// Order is the model for the 'orders' table. Financial fields are frozen at
// materialization time and never change afterwards; only status and
// payment_status are mutated by later fulfillment actions.
type Order struct {
	ID          int64  `json:"id" db:"id"`
	OrderNumber string `json:"orderNumber" db:"order_number"`
	CheckoutID  string `json:"-" db:"checkout_id"`
	UserID      *int64 `json:"userId,omitempty" db:"user_id"`

	Status        string `json:"status" db:"status"`
	PaymentStatus string `json:"paymentStatus" db:"payment_status"` // pending | paid | failed

	// Financial snapshot
	ItemTotal      float64 `json:"itemTotal" db:"item_total"`
	DiscountAmount float64 `json:"discountAmount" db:"discount_amount"`
	DeliveryCharge float64 `json:"deliveryCharge" db:"delivery_charge"`
	CGST           float64 `json:"cgst" db:"cgst"`
	SGST           float64 `json:"sgst" db:"sgst"`
	TotalAmount    float64 `json:"totalAmount" db:"total_amount"`

	DeliveryAddressID *int64  `json:"deliveryAddressId,omitempty" db:"delivery_address_id"`
	ContactName       string  `json:"contactName" db:"contact_name"`
	ContactPhone      string  `json:"contactPhone" db:"contact_phone"`
	ContactEmail      string  `json:"contactEmail" db:"contact_email"`
	Notes             *string `json:"notes,omitempty" db:"notes"`
	CouponCode        *string `json:"couponCode,omitempty" db:"coupon_code"`

	PaymentMethod        string  `json:"paymentMethod" db:"payment_method"`
	PaymentTransactionID *string `json:"paymentTransactionId,omitempty" db:"payment_transaction_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	Items []OrderItem `json:"items,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table. Product name, image
// and price are captured at order time so historical orders stay intact
// when a product is later edited or deleted.
type OrderItem struct {
	ID             int64     `json:"id" db:"id"`
	OrderID        int64     `json:"orderId" db:"order_id"`
	ProductID      int64     `json:"productId" db:"product_id"`
	ProductName    string    `json:"productName" db:"product_name"`
	ProductImage   *string   `json:"productImage,omitempty" db:"product_image"`
	UnitPrice      float64   `json:"unitPrice" db:"unit_price"`
	Quantity       int       `json:"quantity" db:"quantity"`
	Variant        *string   `json:"variant,omitempty" db:"variant"`
	Customizations *string   `json:"customizations,omitempty" db:"customizations"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
