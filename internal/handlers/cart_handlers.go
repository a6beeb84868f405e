package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

//
// --- Cart Handlers ---
//

// getOrCreateCartID finds a user's active cart or creates one.
// This is a helper function to be used within a transaction.
func (h *Handlers) getOrCreateCartID(tx *sql.Tx, userID int64) (int64, error) {
	var cartID int64

	// 1. Try to find an existing cart
	err := tx.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}

	// 2. If no cart exists, create one
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now()
		result, err := tx.Exec("INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)", userID, now, now)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	// 3. A real database error occurred
	return 0, err
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID      int64   `json:"productId" binding:"required"`
	VariantID      *int64  `json:"variantId"`
	Quantity       int     `json:"quantity" binding:"required,gt=0"`
	Customizations *string `json:"customizations"`
}

// AddToCart is the handler for POST /v1/cart/items
func (h *Handlers) AddToCart(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input AddToCartInput
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

	cartID, err := h.getOrCreateCartID(tx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart initialization failed"})
		return
	}

	// Product must still be on the storefront
	var available bool
	err = tx.QueryRow("SELECT is_available FROM products WHERE id = ?", input.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !available {
		c.JSON(http.StatusConflict, gin.H{"error": "Product is currently unavailable"})
		return
	}

	// Merge into an existing line or insert a new one. The NULL-safe
	// compare (<=>) is what matches variant-less lines; the unique key
	// alone would not, because MySQL treats NULLs in it as distinct.
	var lineID int64
	err = tx.QueryRow(
		"SELECT id FROM cart_items WHERE cart_id = ? AND product_id = ? AND variant_id <=> ?",
		cartID, input.ProductID, input.VariantID).Scan(&lineID)
	switch {
	case err == nil:
		_, err = tx.Exec(
			"UPDATE cart_items SET quantity = quantity + ?, customizations = ?, updated_at = NOW() WHERE id = ?",
			input.Quantity, input.Customizations, lineID)
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(`
			INSERT INTO cart_items (cart_id, product_id, variant_id, quantity, customizations, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, NOW(), NOW())`,
			cartID, input.ProductID, input.VariantID, input.Quantity, input.Customizations)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

// CartItemResponse is a helper struct for the GetCart handler
type CartItemResponse struct {
	ItemID         int64   `json:"itemId"`
	ProductID      int64   `json:"productId"`
	Name           string  `json:"name"`
	ImageURL       *string `json:"imageUrl,omitempty"`
	Variant        *string `json:"variant,omitempty"`
	Customizations *string `json:"customizations,omitempty"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
	LineTotal      float64 `json:"lineTotal"`
}

// GetCart is the handler for GET /v1/cart
func (h *Handlers) GetCart(c *gin.Context) {
	userID, _ := currentUserID(c)

	// 1. --- Find the Cart ---
	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusOK, gin.H{"items": []CartItemResponse{}, "subtotal": 0.0, "totalItems": 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	// 2. --- Query Cart Items + Product Details ---
	// The variant price overrides the base price when a variant is chosen.
	query := `
		SELECT ci.id, ci.product_id, p.name, p.image_url, pv.name,
		       ci.customizations, COALESCE(pv.price, p.price), ci.quantity
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		LEFT JOIN product_variants pv ON ci.variant_id = pv.id
		WHERE ci.cart_id = ? AND p.is_available = 1`

	rows, err := h.DB.Query(query, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query cart items"})
		return
	}
	defer rows.Close()

	// 3. --- Scan Rows and Calculate Totals ---
	var items []CartItemResponse
	var subtotal float64
	var totalItems int

	for rows.Next() {
		var item CartItemResponse
		var variantName sql.NullString
		if err := rows.Scan(
			&item.ItemID, &item.ProductID, &item.Name, &item.ImageURL,
			&variantName, &item.Customizations, &item.Price, &item.Quantity,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cart item"})
			return
		}
		if variantName.Valid {
			item.Variant = &variantName.String
		}
		item.LineTotal = item.Price * float64(item.Quantity)
		subtotal += item.LineTotal
		totalItems += item.Quantity
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating cart items"})
		return
	}

	if items == nil {
		items = []CartItemResponse{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"subtotal":   subtotal,
		"totalItems": totalItems,
	})
}

// UpdateCartItemInput defines the JSON for updating an item's quantity.
type UpdateCartItemInput struct {
	Quantity int `json:"quantity" binding:"gte=0"` // 0 means delete
}

// UpdateCartItem is the handler for PUT /v1/cart/items/:item_id
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	userID, _ := currentUserID(c)
	itemID := c.Param("item_id")

	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	if input.Quantity == 0 {
		h.deleteCartItem(c, cartID, itemID)
		return
	}

	result, err := h.DB.Exec(
		"UPDATE cart_items SET quantity = ?, updated_at = ? WHERE id = ? AND cart_id = ?",
		input.Quantity, time.Now(), itemID, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item quantity updated"})
}

// DeleteCartItem is the handler for DELETE /v1/cart/items/:item_id
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	userID, _ := currentUserID(c)
	itemID := c.Param("item_id")

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	h.deleteCartItem(c, cartID, itemID)
}

// deleteCartItem is a helper to DRY up the delete logic
func (h *Handlers) deleteCartItem(c *gin.Context, cartID int64, itemID string) {
	result, err := h.DB.Exec("DELETE FROM cart_items WHERE id = ? AND cart_id = ?", itemID, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item removed"})
}
