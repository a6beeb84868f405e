package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Guest Cart Handlers ---
//
// Guest carts live in Redis under a client-held cart id. No account is
// needed; on login/register the client calls MergeGuestCart to fold the
// guest items into the database-backed cart.
//

// CreateGuestCart is the handler for POST /v1/guest-cart
func (h *Handlers) CreateGuestCart(c *gin.Context) {
	id := checkout.NewGuestCartID()
	if err := h.GuestCarts.Set(c.Request.Context(), id, []models.GuestCartItem{}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create guest cart"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cartId": id})
}

// GetGuestCart is the handler for GET /v1/guest-cart/:cart_id
func (h *Handlers) GetGuestCart(c *gin.Context) {
	items, err := h.GuestCarts.Get(c.Request.Context(), c.Param("cart_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load guest cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GuestCartInput defines the JSON for replacing the guest cart contents.
type GuestCartInput struct {
	Items []models.GuestCartItem `json:"items" binding:"required"`
}

// PutGuestCart is the handler for PUT /v1/guest-cart/:cart_id
func (h *Handlers) PutGuestCart(c *gin.Context) {
	var input GuestCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	for _, item := range input.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Each item needs a product id and a positive quantity"})
			return
		}
	}

	if err := h.GuestCarts.Set(c.Request.Context(), c.Param("cart_id"), input.Items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save guest cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Guest cart saved"})
}

// MergeGuestCartInput defines the JSON for merging a guest cart after login.
type MergeGuestCartInput struct {
	CartID string `json:"cartId" binding:"required"`
}

// MergeGuestCart is the handler for POST /v1/cart/merge (authenticated).
// Guest items are added on top of the user's existing cart; quantities
// for the same product/variant pair are summed into one line.
func (h *Handlers) MergeGuestCart(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input MergeGuestCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	items, err := h.GuestCarts.Get(c.Request.Context(), input.CartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load guest cart"})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Nothing to merge", "merged": 0})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	cartID, err := h.getOrCreateCartID(tx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart initialization failed"})
		return
	}

	merged := 0
	for _, item := range items {
		// Skip products that vanished while the guest was browsing.
		var available bool
		err := tx.QueryRow("SELECT is_available FROM products WHERE id = ?", item.ProductID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if !available {
			continue
		}

		// NULL-safe compare so variant-less guest lines fold into
		// variant-less cart lines instead of inserting a duplicate.
		var lineID int64
		err = tx.QueryRow(
			"SELECT id FROM cart_items WHERE cart_id = ? AND product_id = ? AND variant_id <=> ?",
			cartID, item.ProductID, item.VariantID).Scan(&lineID)
		switch {
		case err == nil:
			_, err = tx.Exec(
				"UPDATE cart_items SET quantity = quantity + ?, updated_at = NOW() WHERE id = ?",
				item.Quantity, lineID)
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.Exec(`
				INSERT INTO cart_items (cart_id, product_id, variant_id, quantity, customizations, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, NOW(), NOW())`,
				cartID, item.ProductID, item.VariantID, item.Quantity, item.Customizations)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to merge cart item"})
			return
		}
		merged++
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	// Guest cart is spent once merged. A failed delete is non-fatal: the
	// key ages out on its own TTL.
	_ = h.GuestCarts.Delete(c.Request.Context(), input.CartID)

	c.JSON(http.StatusOK, gin.H{"message": "Guest cart merged", "merged": merged})
}
