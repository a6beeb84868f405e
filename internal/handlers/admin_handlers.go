package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Admin Handlers ---
//

// orderStatusTransitions is the allowed fulfillment state machine.
// Financials are frozen; only these two columns ever change on an order.
var orderStatusTransitions = map[string][]string{
	models.OrderStatusPending:        {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing:     {models.OrderStatusOutForDelivery, models.OrderStatusCancelled},
	models.OrderStatusOutForDelivery: {models.OrderStatusDelivered},
}

func canTransitionOrder(from, to string) bool {
	for _, allowed := range orderStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GetSettings is the handler for GET /v1/admin/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	rows, err := h.DB.Query("SELECT setting_key, setting_value FROM settings")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query settings"})
		return
	}
	defer rows.Close()

	settings := gin.H{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan setting"})
			return
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettingsInput defines the JSON for PATCH /v1/admin/settings.
// Only the whitelisted keys the pricing calculator reads are accepted.
type UpdateSettingsInput struct {
	CGSTRate              *float64 `json:"cgstRate"`
	SGSTRate              *float64 `json:"sgstRate"`
	FreeDeliveryThreshold *float64 `json:"freeDeliveryThreshold"`
}

// UpdateSettings is the handler for PATCH /v1/admin/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var input UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	updates := map[string]*float64{
		"cgst_rate":               input.CGSTRate,
		"sgst_rate":               input.SGSTRate,
		"free_delivery_threshold": input.FreeDeliveryThreshold,
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	changed := 0
	for key, value := range updates {
		if value == nil {
			continue
		}
		if *value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Settings cannot be negative"})
			return
		}
		_, err := tx.Exec(`
			INSERT INTO settings (setting_key, setting_value)
			VALUES (?, ?)
			ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`,
			key, fmt.Sprintf("%g", *value))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
			return
		}
		changed++
	}

	if changed == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings updated"})
}

// DeliveryTierInput is one row of the replacement fee table.
type DeliveryTierInput struct {
	StartKm float64 `json:"startKm"`
	EndKm   float64 `json:"endKm"`
	Price   float64 `json:"price"`
}

// PutDeliveryTiers is the handler for PUT /v1/admin/delivery-tiers.
// The table is replaced wholesale; tiers must be ordered and contiguous so
// the fee lookup stays unambiguous.
func (h *Handlers) PutDeliveryTiers(c *gin.Context) {
	var input struct {
		Tiers []DeliveryTierInput `json:"tiers" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	for i, tier := range input.Tiers {
		if tier.EndKm <= tier.StartKm || tier.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Each tier needs startKm < endKm and a non-negative price"})
			return
		}
		if i > 0 && tier.StartKm != input.Tiers[i-1].EndKm {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Tiers must be contiguous and ordered by distance"})
			return
		}
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM delivery_tiers"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear delivery tiers"})
		return
	}
	for _, tier := range input.Tiers {
		_, err := tx.Exec(
			"INSERT INTO delivery_tiers (start_km, end_km, price) VALUES (?, ?, ?)",
			tier.StartKm, tier.EndKm, tier.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to insert delivery tier"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Delivery tiers updated"})
}

// ListAllOrders is the handler for GET /v1/admin/orders
func (h *Handlers) ListAllOrders(c *gin.Context) {
	query := `
		SELECT id, order_number, user_id, status, payment_status, total_amount,
		       contact_name, contact_phone, payment_method, created_at
		FROM orders`
	args := []interface{}{}

	if status := c.Query("status"); status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT 200"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query orders"})
		return
	}
	defer rows.Close()

	type adminOrderRow struct {
		ID            int64     `json:"id"`
		OrderNumber   string    `json:"orderNumber"`
		UserID        *int64    `json:"userId,omitempty"`
		Status        string    `json:"status"`
		PaymentStatus string    `json:"paymentStatus"`
		TotalAmount   float64   `json:"totalAmount"`
		ContactName   string    `json:"contactName"`
		ContactPhone  string    `json:"contactPhone"`
		PaymentMethod string    `json:"paymentMethod"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	var out []adminOrderRow
	for rows.Next() {
		var row adminOrderRow
		if err := rows.Scan(
			&row.ID, &row.OrderNumber, &row.UserID, &row.Status, &row.PaymentStatus,
			&row.TotalAmount, &row.ContactName, &row.ContactPhone, &row.PaymentMethod, &row.CreatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	if out == nil {
		out = []adminOrderRow{}
	}
	c.JSON(http.StatusOK, out)
}

// UpdateOrderStatusInput defines the JSON for the status change form.
type UpdateOrderStatusInput struct {
	Status string `json:"status" binding:"required,oneof=pending processing out_for_delivery delivered cancelled"`
}

// UpdateOrderStatus is the handler for PATCH /v1/admin/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	// 1. --- Load the current state (locked for the transition check) ---
	var order models.Order
	err = tx.QueryRow(`
		SELECT id, order_number, user_id, status, contact_email, total_amount
		FROM orders WHERE id = ? FOR UPDATE`, orderID,
	).Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.Status, &order.ContactEmail, &order.TotalAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// 2. --- Validate the transition ---
	if !canTransitionOrder(order.Status, input.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Cannot move an order from '%s' to '%s'", order.Status, input.Status),
		})
		return
	}

	// 3. --- Apply it ---
	_, err = tx.Exec("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?", input.Status, time.Now(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	// 4. --- Notify the customer inside the same transaction ---
	if order.UserID != nil {
		message := fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, input.Status)
		link := fmt.Sprintf("/orders/%d", order.ID)
		if err := h.AddNotification(tx, *order.UserID, message, link); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record notification"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	// 5. --- Best-effort event for the email worker ---
	if input.Status == models.OrderStatusOutForDelivery && h.Events != nil {
		order.Status = input.Status
		if err := h.Events.OrderOutForDelivery(c.Request.Context(), &order); err != nil {
			log.Printf("WARNING: failed to publish out-for-delivery for order %s: %v", order.OrderNumber, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

// GetDashboardStats is the handler for GET /v1/admin/dashboard
func (h *Handlers) GetDashboardStats(c *gin.Context) {
	stats := gin.H{}

	var totalOrders int64
	var revenue sql.NullFloat64
	err := h.DB.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders WHERE status != 'cancelled'`).Scan(&totalOrders, &revenue)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query order stats"})
		return
	}
	stats["totalOrders"] = totalOrders
	stats["totalRevenue"] = revenue.Float64

	var pendingOrders int64
	if err := h.DB.QueryRow(
		"SELECT COUNT(*) FROM orders WHERE status IN ('pending', 'processing')").Scan(&pendingOrders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query pending orders"})
		return
	}
	stats["pendingOrders"] = pendingOrders

	var customers int64
	if err := h.DB.QueryRow(
		"SELECT COUNT(*) FROM users WHERE role = 'customer'").Scan(&customers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query customers"})
		return
	}
	stats["totalCustomers"] = customers

	var todaysOrders int64
	if err := h.DB.QueryRow(
		"SELECT COUNT(*) FROM orders WHERE DATE(created_at) = CURDATE()").Scan(&todaysOrders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query today's orders"})
		return
	}
	stats["todaysOrders"] = todaysOrders

	c.JSON(http.StatusOK, stats)
}
