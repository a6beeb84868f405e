package handlers

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/notify"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
	"github.com/crumbcraft/bakehouse-golang/internal/payment"
	"github.com/crumbcraft/bakehouse-golang/internal/reconcile"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB         *sql.DB
	Sessions   *checkout.Store
	GuestCarts *checkout.GuestCartStore
	Gateway    *payment.Gateway
	Orders     *orders.Materializer
	OrderRepo  *orders.SQLRepository
	Reconciler *reconcile.Manager
	Events     notify.Publisher
}

// currentUserID reads the authenticated user id set by the auth
// middleware. ok is false on anonymous requests.
func currentUserID(c *gin.Context) (int64, bool) {
	raw, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := raw.(int64)
	return id, ok
}
