package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Address Handlers ---
//

// AddressInput defines the JSON for creating or replacing an address.
// DistanceKm comes from the client's map/geocoding step; the server only
// sanity-checks the range.
type AddressInput struct {
	Label      string  `json:"label" binding:"required"`
	Line1      string  `json:"line1" binding:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" binding:"required"`
	State      string  `json:"state" binding:"required"`
	Pincode    string  `json:"pincode" binding:"required,len=6"`
	Phone      string  `json:"phone" binding:"required"`
	DistanceKm float64 `json:"distanceKm" binding:"gte=0,lte=100"`
}

// CreateAddress is the handler for POST /v1/addresses
func (h *Handlers) CreateAddress(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	now := time.Now()
	result, err := h.DB.Exec(`
		INSERT INTO addresses (user_id, label, line1, line2, city, state, pincode, phone, distance_km, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, input.Label, input.Line1, input.Line2, input.City, input.State,
		input.Pincode, input.Phone, input.DistanceKm, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save address"})
		return
	}

	id, _ := result.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"message": "Address saved", "id": id})
}

// GetMyAddresses is the handler for GET /v1/addresses
func (h *Handlers) GetMyAddresses(c *gin.Context) {
	userID, _ := currentUserID(c)

	rows, err := h.DB.Query(`
		SELECT id, user_id, label, line1, line2, city, state, pincode, phone, distance_km, created_at, updated_at
		FROM addresses WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query addresses"})
		return
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var addr models.Address
		if err := rows.Scan(
			&addr.ID, &addr.UserID, &addr.Label, &addr.Line1, &addr.Line2, &addr.City,
			&addr.State, &addr.Pincode, &addr.Phone, &addr.DistanceKm, &addr.CreatedAt, &addr.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan address"})
			return
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating addresses"})
		return
	}

	if addresses == nil {
		addresses = []models.Address{}
	}
	c.JSON(http.StatusOK, addresses)
}

// UpdateAddress is the handler for PUT /v1/addresses/:id
func (h *Handlers) UpdateAddress(c *gin.Context) {
	userID, _ := currentUserID(c)
	addressID := c.Param("id")

	var input AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	result, err := h.DB.Exec(`
		UPDATE addresses
		SET label = ?, line1 = ?, line2 = ?, city = ?, state = ?, pincode = ?, phone = ?, distance_km = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		input.Label, input.Line1, input.Line2, input.City, input.State,
		input.Pincode, input.Phone, input.DistanceKm, time.Now(), addressID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update address"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address updated"})
}

// DeleteAddress is the handler for DELETE /v1/addresses/:id
func (h *Handlers) DeleteAddress(c *gin.Context) {
	userID, _ := currentUserID(c)
	addressID := c.Param("id")

	// An address referenced by past orders stays in history: orders snapshot
	// the address text, so deleting here never rewrites an order.
	result, err := h.DB.Exec(
		"DELETE FROM addresses WHERE id = ? AND user_id = ?", addressID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete address"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

// fetchAddress loads one address owned by the given user.
func (h *Handlers) fetchAddress(addressID, userID int64) (*models.Address, error) {
	var addr models.Address
	err := h.DB.QueryRow(`
		SELECT id, user_id, label, line1, line2, city, state, pincode, phone, distance_km, created_at, updated_at
		FROM addresses WHERE id = ? AND user_id = ?`, addressID, userID,
	).Scan(
		&addr.ID, &addr.UserID, &addr.Label, &addr.Line1, &addr.Line2, &addr.City,
		&addr.State, &addr.Pincode, &addr.Phone, &addr.DistanceKm, &addr.CreatedAt, &addr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
