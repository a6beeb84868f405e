package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
)

//
// --- Favorite Handlers ---
//

// AddFavoriteInput defines the JSON for marking a product as a favorite.
type AddFavoriteInput struct {
	ProductID int64 `json:"productId" binding:"required"`
}

// AddFavorite is the handler for POST /v1/favorites
func (h *Handlers) AddFavorite(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input AddFavoriteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	_, err := h.DB.Exec(
		"INSERT INTO favorites (user_id, product_id, created_at) VALUES (?, ?, NOW())",
		userID, input.ProductID)
	if err != nil {
		// Re-favoriting is a no-op, not an error.
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			c.JSON(http.StatusOK, gin.H{"message": "Already in favorites"})
			return
		}
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1452 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add favorite"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Added to favorites"})
}

// RemoveFavorite is the handler for DELETE /v1/favorites/:product_id
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	userID, _ := currentUserID(c)
	productID := c.Param("product_id")

	result, err := h.DB.Exec(
		"DELETE FROM favorites WHERE user_id = ? AND product_id = ?", userID, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove favorite"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not in favorites"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Removed from favorites"})
}

// GetMyFavorites is the handler for GET /v1/favorites
func (h *Handlers) GetMyFavorites(c *gin.Context) {
	userID, _ := currentUserID(c)

	query := `
		SELECT p.id, p.name, p.slug, p.price, p.image_url, p.is_available
		FROM favorites f
		JOIN products p ON f.product_id = p.id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC`

	rows, err := h.DB.Query(query, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query favorites"})
		return
	}
	defer rows.Close()

	type favoriteResponse struct {
		ProductID   int64   `json:"productId"`
		Name        string  `json:"name"`
		Slug        string  `json:"slug"`
		Price       float64 `json:"price"`
		ImageURL    *string `json:"imageUrl,omitempty"`
		IsAvailable bool    `json:"isAvailable"`
	}

	var favorites []favoriteResponse
	for rows.Next() {
		var fav favoriteResponse
		if err := rows.Scan(&fav.ProductID, &fav.Name, &fav.Slug, &fav.Price, &fav.ImageURL, &fav.IsAvailable); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan favorite"})
			return
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating favorites"})
		return
	}

	if favorites == nil {
		favorites = []favoriteResponse{}
	}
	c.JSON(http.StatusOK, favorites)
}
