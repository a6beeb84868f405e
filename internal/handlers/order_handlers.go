package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Order Handlers (customer-facing) ---
//

// GetMyOrders is the handler for GET /v1/orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	userID, _ := currentUserID(c)

	rows, err := h.DB.Query(`
		SELECT id, order_number, status, payment_status, total_amount, payment_method, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query orders"})
		return
	}
	defer rows.Close()

	type orderSummary struct {
		ID            int64     `json:"id"`
		OrderNumber   string    `json:"orderNumber"`
		Status        string    `json:"status"`
		PaymentStatus string    `json:"paymentStatus"`
		TotalAmount   float64   `json:"totalAmount"`
		PaymentMethod string    `json:"paymentMethod"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	var orders []orderSummary
	for rows.Next() {
		var o orderSummary
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.PaymentMethod, &o.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	if orders == nil {
		orders = []orderSummary{}
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderDetails is the handler for GET /v1/orders/:id
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	userID, _ := currentUserID(c)
	orderID := c.Param("id")

	// 1. --- Load the order, scoped to the requesting user ---
	var order models.Order
	err := h.DB.QueryRow(`
		SELECT id, order_number, user_id, status, payment_status,
		       item_total, discount_amount, delivery_charge, cgst, sgst, total_amount,
		       delivery_address_id, contact_name, contact_phone, contact_email,
		       notes, coupon_code, payment_method, payment_transaction_id,
		       created_at, updated_at
		FROM orders WHERE id = ? AND user_id = ?`, orderID, userID,
	).Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Status, &order.PaymentStatus,
		&order.ItemTotal, &order.DiscountAmount, &order.DeliveryCharge, &order.CGST, &order.SGST, &order.TotalAmount,
		&order.DeliveryAddressID, &order.ContactName, &order.ContactPhone, &order.ContactEmail,
		&order.Notes, &order.CouponCode, &order.PaymentMethod, &order.PaymentTransactionID,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// 2. --- Load its items ---
	rows, err := h.DB.Query(`
		SELECT id, order_id, product_id, product_name, product_image, unit_price, quantity, variant, customizations, created_at
		FROM order_items WHERE order_id = ?`, order.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query order items"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.UnitPrice, &item.Quantity, &item.Variant, &item.Customizations, &item.CreatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order item"})
			return
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating order items"})
		return
	}

	c.JSON(http.StatusOK, order)
}
