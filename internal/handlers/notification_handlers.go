package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

//
// --- Notification Handlers ---
//

// AddNotification is an internal helper to create new notifications. It is
// not a handler itself but is called by other handlers (like the order
// status update).
// NOTE: This function must be called from within a database transaction (tx).
func (h *Handlers) AddNotification(tx *sql.Tx, userID int64, message string, link string) error {
	var nullLink sql.NullString
	if link != "" {
		nullLink = sql.NullString{String: link, Valid: true}
	}

	query := `
		INSERT INTO notifications
		(user_id, message, link, is_read, created_at)
		VALUES (?, ?, ?, 0, ?)`

	if _, err := tx.Exec(query, userID, message, nullLink, time.Now()); err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// GetMyNotifications is the handler for GET /v1/notifications
// It retrieves the logged-in user's notifications, unread and newest first.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	userID, _ := currentUserID(c)

	query := `
		SELECT id, user_id, message, link, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY is_read ASC, created_at DESC
		LIMIT 50`

	rows, err := h.DB.Query(query, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var notif models.Notification
		if err := rows.Scan(
			&notif.ID,
			&notif.UserID,
			&notif.Message,
			&notif.Link,
			&notif.IsRead,
			&notif.CreatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan notification row"})
			return
		}
		notifications = append(notifications, &notif)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating notification rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
	})
}

// MarkNotificationAsRead is the handler for PATCH /v1/notifications/:id/read
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	userID, _ := currentUserID(c)
	notificationID := c.Param("id")

	// The row is updated only if it belongs to the logged-in user, so one
	// user cannot mark another user's notifications as read.
	result, err := h.DB.Exec(
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?",
		notificationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check affected rows"})
		return
	}
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found or you do not have permission to update it"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}
