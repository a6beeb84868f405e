package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
)

//
// --- Coupon Handlers ---
//

// findCoupon loads an active coupon by code. Codes are matched
// case-insensitively and stored uppercase.
func (h *Handlers) findCoupon(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := h.DB.QueryRow(`
		SELECT id, code, type, value, min_order, max_discount_cap, is_active, expires_at, created_at
		FROM coupons WHERE code = ?`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(
		&coupon.ID, &coupon.Code, &coupon.Type, &coupon.Value, &coupon.MinOrder,
		&coupon.MaxDiscountCap, &coupon.IsActive, &coupon.ExpiresAt, &coupon.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ValidateCouponInput defines the JSON for checking a coupon against a cart.
type ValidateCouponInput struct {
	Code      string  `json:"code" binding:"required"`
	ItemTotal float64 `json:"itemTotal" binding:"required,gt=0"`
}

// ValidateCoupon is the handler for POST /v1/coupons/validate
func (h *Handlers) ValidateCoupon(c *gin.Context) {
	var input ValidateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	coupon, err := h.findCoupon(input.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !coupon.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Coupon is no longer active"})
		return
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		c.JSON(http.StatusConflict, gin.H{"error": "Coupon has expired"})
		return
	}
	// Minimum order is an inclusive bound: a 300.00 cart clears a 300.00 minimum.
	if input.ItemTotal < coupon.MinOrder {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "Order total is below the coupon minimum",
			"minOrder": coupon.MinOrder,
		})
		return
	}

	discount := pricing.DiscountFor(&pricing.Coupon{
		Code:           coupon.Code,
		Type:           coupon.Type,
		Value:          coupon.Value,
		MinOrder:       coupon.MinOrder,
		MaxDiscountCap: coupon.MaxDiscountCap,
	}, input.ItemTotal)

	c.JSON(http.StatusOK, gin.H{
		"code":     coupon.Code,
		"type":     coupon.Type,
		"value":    coupon.Value,
		"discount": pricing.Round2(discount),
	})
}

// CreateCouponInput defines the JSON for the admin coupon form.
type CreateCouponInput struct {
	Code           string     `json:"code" binding:"required"`
	Type           string     `json:"type" binding:"required,oneof=percentage flat"`
	Value          float64    `json:"value" binding:"required,gt=0"`
	MinOrder       float64    `json:"minOrder" binding:"gte=0"`
	MaxDiscountCap *float64   `json:"maxDiscountCap"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

// CreateCoupon is the handler for POST /v1/admin/coupons
func (h *Handlers) CreateCoupon(c *gin.Context) {
	var input CreateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if input.Type == "percentage" && input.Value > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Percentage value cannot exceed 100"})
		return
	}

	result, err := h.DB.Exec(`
		INSERT INTO coupons (code, type, value, min_order, max_discount_cap, is_active, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, NOW())`,
		strings.ToUpper(strings.TrimSpace(input.Code)), input.Type, input.Value,
		input.MinOrder, input.MaxDiscountCap, input.ExpiresAt)
	if err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			c.JSON(http.StatusConflict, gin.H{"error": "A coupon with this code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create coupon"})
		return
	}

	id, _ := result.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"message": "Coupon created", "id": id})
}

// ListCoupons is the handler for GET /v1/admin/coupons
func (h *Handlers) ListCoupons(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, code, type, value, min_order, max_discount_cap, is_active, expires_at, created_at
		FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query coupons"})
		return
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		var coupon models.Coupon
		if err := rows.Scan(
			&coupon.ID, &coupon.Code, &coupon.Type, &coupon.Value, &coupon.MinOrder,
			&coupon.MaxDiscountCap, &coupon.IsActive, &coupon.ExpiresAt, &coupon.CreatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan coupon"})
			return
		}
		coupons = append(coupons, coupon)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating coupons"})
		return
	}

	if coupons == nil {
		coupons = []models.Coupon{}
	}
	c.JSON(http.StatusOK, coupons)
}

// UpdateCouponInput defines the JSON for toggling/retiring a coupon.
type UpdateCouponInput struct {
	IsActive  *bool      `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// UpdateCoupon is the handler for PATCH /v1/admin/coupons/:id
func (h *Handlers) UpdateCoupon(c *gin.Context) {
	var input UpdateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.IsActive == nil && input.ExpiresAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	// Build the SET clause from whichever fields were sent
	setClauses := []string{}
	args := []interface{}{}
	if input.IsActive != nil {
		setClauses = append(setClauses, "is_active = ?")
		args = append(args, *input.IsActive)
	}
	if input.ExpiresAt != nil {
		setClauses = append(setClauses, "expires_at = ?")
		args = append(args, *input.ExpiresAt)
	}
	args = append(args, c.Param("id"))

	result, err := h.DB.Exec(
		"UPDATE coupons SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update coupon"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon updated"})
}
