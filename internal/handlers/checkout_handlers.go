package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
	"github.com/crumbcraft/bakehouse-golang/internal/payment"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
	"github.com/crumbcraft/bakehouse-golang/internal/reconcile"
)

//
// --- Checkout Handlers ---
//
// The checkout session is the single source of truth between "proceed to
// checkout" and "order placed". It lives in Redis with a fixed TTL; every
// mutation below re-runs the pricing calculator so the cached financials
// can never drift from the snapshot.
//

// sessionItemsFromCart freezes the user's database cart into session items.
func (h *Handlers) sessionItemsFromCart(userID int64) ([]models.SessionItem, error) {
	query := `
		SELECT ci.product_id, p.name, COALESCE(p.image_url, ''), pv.name,
		       ci.customizations, COALESCE(pv.price, p.price), ci.quantity
		FROM cart_items ci
		JOIN carts c ON ci.cart_id = c.id
		JOIN products p ON ci.product_id = p.id
		LEFT JOIN product_variants pv ON ci.variant_id = pv.id
		WHERE c.user_id = ? AND p.is_available = 1`

	rows, err := h.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SessionItem
	for rows.Next() {
		var item models.SessionItem
		var variant, customizations sql.NullString
		if err := rows.Scan(
			&item.ProductID, &item.Name, &item.ImageURL, &variant,
			&customizations, &item.UnitPrice, &item.Quantity,
		); err != nil {
			return nil, err
		}
		item.Variant = variant.String
		item.Customizations = customizations.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// sessionItemsFromGuestCart freezes a Redis guest cart, resolving prices
// and names from the products table. Unavailable products are dropped.
func (h *Handlers) sessionItemsFromGuestCart(c *gin.Context, guestCartID string) ([]models.SessionItem, error) {
	guestItems, err := h.GuestCarts.Get(c.Request.Context(), guestCartID)
	if err != nil {
		return nil, err
	}

	var items []models.SessionItem
	for _, gi := range guestItems {
		var item models.SessionItem
		var variant sql.NullString
		var variantPrice sql.NullFloat64

		err := h.DB.QueryRow(`
			SELECT p.name, COALESCE(p.image_url, ''), p.price, pv.name, pv.price
			FROM products p
			LEFT JOIN product_variants pv ON pv.id = ? AND pv.product_id = p.id
			WHERE p.id = ? AND p.is_available = 1`,
			gi.VariantID, gi.ProductID,
		).Scan(&item.Name, &item.ImageURL, &item.UnitPrice, &variant, &variantPrice)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}

		item.ProductID = gi.ProductID
		item.Quantity = gi.Quantity
		item.Variant = variant.String
		if variantPrice.Valid {
			item.UnitPrice = variantPrice.Float64
		}
		if gi.Customizations != nil {
			item.Customizations = *gi.Customizations
		}
		items = append(items, item)
	}
	return items, nil
}

// repriceSession recomputes the session's financials in place from its
// snapshot. The client never supplies totals.
func (h *Handlers) repriceSession(c *gin.Context, sess *models.CheckoutSession) error {
	cfg, err := h.OrderRepo.PricingConfig(c.Request.Context())
	if err != nil {
		return err
	}

	var distanceKm float64
	if sess.SelectedAddressID != nil {
		distanceKm, err = h.OrderRepo.AddressDistanceKm(c.Request.Context(), *sess.SelectedAddressID)
		if err != nil {
			return err
		}
	}

	var coupon *pricing.Coupon
	if sess.AppliedCoupon != nil {
		coupon = &pricing.Coupon{
			Code:           sess.AppliedCoupon.Code,
			Type:           sess.AppliedCoupon.Type,
			Value:          sess.AppliedCoupon.Value,
			MinOrder:       sess.AppliedCoupon.MinOrder,
			MaxDiscountCap: sess.AppliedCoupon.MaxDiscountCap,
		}
	}

	items := make([]pricing.Item, 0, len(sess.Items))
	for _, it := range sess.Items {
		items = append(items, pricing.Item{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}

	b := pricing.Calculate(items, coupon, distanceKm, cfg).Rounded()
	sess.Subtotal = b.ItemTotal
	sess.Discount = b.Discount
	sess.DeliveryFee = b.DeliveryFee
	sess.CGST = b.CGST
	sess.SGST = b.SGST
	sess.Total = b.Total
	return nil
}

// CreateCheckoutInput defines the JSON for starting a checkout. Guests
// pass their Redis cart id plus contact details; authenticated users pass
// neither (the cart and profile come from the database).
type CreateCheckoutInput struct {
	GuestCartID  string `json:"guestCartId"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	ContactEmail string `json:"contactEmail"`
}

// CreateCheckout is the handler for POST /v1/checkout
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var input CreateCheckoutInput
	// Body is optional for authenticated users
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
	}

	var items []models.SessionItem
	var user checkout.UserContext
	var err error

	if userID, ok := currentUserID(c); ok {
		// 1a. --- Authenticated: snapshot the database cart + profile ---
		items, err = h.sessionItemsFromCart(userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cart"})
			return
		}

		var u models.User
		err = h.DB.QueryRow(
			"SELECT id, email, full_name, phone_number FROM users WHERE id = ?", userID,
		).Scan(&u.ID, &u.Email, &u.FullName, &u.PhoneNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user profile"})
			return
		}
		user = checkout.UserContext{UserID: &u.ID, Email: u.Email, Name: u.FullName, Phone: u.PhoneNumber}
	} else {
		// 1b. --- Guest: snapshot the Redis cart, contact comes from the body ---
		if input.GuestCartID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A guest cart id is required for guest checkout"})
			return
		}
		if input.ContactName == "" || input.ContactPhone == "" || input.ContactEmail == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Contact name, phone and email are required for guest checkout"})
			return
		}
		items, err = h.sessionItemsFromGuestCart(c, input.GuestCartID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read guest cart"})
			return
		}
		user = checkout.UserContext{Email: input.ContactEmail, Name: input.ContactName, Phone: input.ContactPhone}
	}

	// 2. --- Create the session ---
	sess, err := h.Sessions.Create(c.Request.Context(), items, user)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Your cart is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	// 3. --- Price it and persist the figures ---
	sess, err = h.Sessions.Update(c.Request.Context(), sess.ID, func(s *models.CheckoutSession) error {
		return h.repriceSession(c, s)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to price checkout session"})
		return
	}

	c.JSON(http.StatusOK, sess)
}

// GetCheckout is the handler for GET /v1/checkout/:id
func (h *Handlers) GetCheckout(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load checkout session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// UpdateCheckoutInput defines the JSON for PATCH /v1/checkout/:id.
// All fields are optional; only the ones present are applied.
type UpdateCheckoutInput struct {
	AddressID    *int64  `json:"addressId"`
	CouponCode   *string `json:"couponCode"` // empty string removes the coupon
	ContactName  *string `json:"contactName"`
	ContactPhone *string `json:"contactPhone"`
	Notes        *string `json:"notes"`
}

// UpdateCheckout is the handler for PATCH /v1/checkout/:id
func (h *Handlers) UpdateCheckout(c *gin.Context) {
	var input UpdateCheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	// Resolve the coupon outside the mutate closure to keep it quick
	var appliedCoupon *models.AppliedCoupon
	removeCoupon := false
	if input.CouponCode != nil {
		if *input.CouponCode == "" {
			removeCoupon = true
		} else {
			coupon, err := h.findCoupon(*input.CouponCode)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
				return
			}
			if !coupon.IsActive || (coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now())) {
				c.JSON(http.StatusConflict, gin.H{"error": "Coupon is no longer valid"})
				return
			}
			appliedCoupon = &models.AppliedCoupon{
				ID:             coupon.ID,
				Code:           coupon.Code,
				Type:           coupon.Type,
				Value:          coupon.Value,
				MinOrder:       coupon.MinOrder,
				MaxDiscountCap: coupon.MaxDiscountCap,
			}
		}
	}

	// Verify address ownership before binding it to the session
	if input.AddressID != nil {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Saved addresses require an account"})
			return
		}
		if _, err := h.fetchAddress(*input.AddressID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	sess, err := h.Sessions.Update(c.Request.Context(), c.Param("id"), func(s *models.CheckoutSession) error {
		// A session that already has a payment in flight (or done) is frozen.
		if s.PaymentStatus == models.PaymentStatusProcessing || s.PaymentStatus == models.PaymentStatusPaid {
			return orders.ErrInvalidState
		}

		if input.AddressID != nil {
			s.SelectedAddressID = input.AddressID
		}
		if removeCoupon {
			s.AppliedCoupon = nil
		} else if appliedCoupon != nil {
			// The minimum order bound is inclusive.
			if s.Subtotal < appliedCoupon.MinOrder {
				return errCouponMinimum
			}
			s.AppliedCoupon = appliedCoupon
		}
		if input.ContactName != nil {
			s.ContactName = *input.ContactName
		}
		if input.ContactPhone != nil {
			s.ContactPhone = *input.ContactPhone
		}
		if input.Notes != nil {
			s.Notes = *input.Notes
		}

		return h.repriceSession(c, s)
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
		case errors.Is(err, orders.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "Checkout can no longer be edited"})
		case errors.Is(err, errCouponMinimum):
			c.JSON(http.StatusConflict, gin.H{"error": "Order total is below the coupon minimum"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update checkout session"})
		}
		return
	}

	c.JSON(http.StatusOK, sess)
}

var errCouponMinimum = errors.New("order total below coupon minimum")

//
// --- Payment Handlers ---
//

// CreateGatewayOrderInput defines the JSON for POST /v1/payment/razorpay-order
type CreateGatewayOrderInput struct {
	CheckoutID string `json:"checkoutId" binding:"required"`
}

// CreateGatewayOrder registers the session's total with Razorpay and moves
// the session into 'processing'. Amounts travel to the gateway in paise.
func (h *Handlers) CreateGatewayOrder(c *gin.Context) {
	var input CreateGatewayOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), input.CheckoutID)
	if err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load checkout session"})
		return
	}

	if !sess.PaymentStatus.CanTransitionTo(models.PaymentStatusProcessing) {
		c.JSON(http.StatusConflict, gin.H{"error": "Payment is already in progress or complete"})
		return
	}
	if sess.Total <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Checkout total must be greater than zero"})
		return
	}

	amountPaise := int64(math.Round(sess.Total * 100))
	gatewayOrderID, err := h.Gateway.CreateOrder(amountPaise, "INR", sess.ID)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is unavailable, please try again"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment order"})
		return
	}

	_, err = h.Sessions.Update(c.Request.Context(), sess.ID, func(s *models.CheckoutSession) error {
		if !s.PaymentStatus.CanTransitionTo(models.PaymentStatusProcessing) {
			return orders.ErrInvalidState
		}
		s.PaymentStatus = models.PaymentStatusProcessing
		s.GatewayOrderID = gatewayOrderID
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gatewayOrderId": gatewayOrderID,
		"amount":         amountPaise,
		"currency":       "INR",
		"keyId":          h.Gateway.KeyID(),
	})
}

// VerifyPaymentInput defines the JSON the payment modal posts back.
type VerifyPaymentInput struct {
	CheckoutID        string `json:"checkoutId" binding:"required"`
	RazorpayOrderID   string `json:"razorpayOrderId" binding:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string `json:"razorpaySignature" binding:"required"`
}

// VerifyPayment is the handler for POST /v1/payment/verify.
// A valid signature materializes the order; an invalid one marks the
// session failed so the user can retry.
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var input VerifyPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	// 1. --- Load the session and pin the gateway order ---
	sess, err := h.Sessions.Get(c.Request.Context(), input.CheckoutID)
	if err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load checkout session"})
		return
	}
	if sess.GatewayOrderID == "" || sess.GatewayOrderID != input.RazorpayOrderID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment does not belong to this checkout"})
		return
	}

	// 2. --- Verify the signature ---
	ok, err := h.Gateway.VerifyCallback(input.RazorpayOrderID, input.RazorpayPaymentID, input.RazorpaySignature)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}
	if !ok {
		if err := h.Orders.MarkFailed(c.Request.Context(), input.CheckoutID); err != nil {
			log.Printf("WARNING: could not mark checkout %s failed: %v", input.CheckoutID, err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment verification failed"})
		return
	}

	// 3. --- Materialize the order ---
	result, err := h.Orders.Materialize(c.Request.Context(), input.CheckoutID, orders.PaymentRef{
		Method:           "razorpay",
		GatewayOrderID:   input.RazorpayOrderID,
		GatewayPaymentID: input.RazorpayPaymentID,
	})
	if err != nil {
		h.respondMaterializeError(c, result, err)
		return
	}

	// A successful materialization makes a client-side reconcile loop moot.
	h.Reconciler.Cancel(input.CheckoutID)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"orderId":     result.OrderID,
		"orderNumber": result.OrderNumber,
	})
}

// CreateOrderInput defines the JSON for POST /v1/orders/create (COD).
type CreateOrderInput struct {
	CheckoutID string `json:"checkoutId" binding:"required"`
}

// CreateOrder is the cash-on-delivery path: no gateway round trip, the
// session goes straight from idle to processing to a materialized order.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	_, err := h.Sessions.Update(c.Request.Context(), input.CheckoutID, func(s *models.CheckoutSession) error {
		if !s.PaymentStatus.CanTransitionTo(models.PaymentStatusProcessing) {
			return orders.ErrInvalidState
		}
		s.PaymentStatus = models.PaymentStatusProcessing
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
		case errors.Is(err, orders.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "Payment is already in progress or complete"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update checkout session"})
		}
		return
	}

	result, err := h.Orders.Materialize(c.Request.Context(), input.CheckoutID, orders.PaymentRef{Method: "cod"})
	if err != nil {
		h.respondMaterializeError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"orderId":     result.OrderID,
		"orderNumber": result.OrderNumber,
		"redirectUrl": fmt.Sprintf("/orders/%d", result.OrderID),
	})
}

// respondMaterializeError maps materializer errors onto HTTP responses.
func (h *Handlers) respondMaterializeError(c *gin.Context, result *orders.Result, err error) {
	switch {
	case errors.Is(err, orders.ErrAlreadyMaterialized):
		resp := gin.H{"error": "An order already exists for this checkout"}
		if result != nil && result.OrderID != 0 {
			resp["orderId"] = result.OrderID
			resp["orderNumber"] = result.OrderNumber
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, checkout.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
	case errors.Is(err, orders.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout is not ready for order placement"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
	}
}

// PaymentStatusQuery is the handler for GET /v1/payment/status?checkoutId=
//
// The session is checked first; once it has been destroyed by a successful
// materialization the orders table answers instead, so a client that lost
// the success response can still discover its order.
func (h *Handlers) PaymentStatusQuery(c *gin.Context) {
	checkoutID := c.Query("checkoutId")
	if checkoutID == "" {
		// Fallback lookup by order id, for clients that kept only the
		// order reference.
		if orderID := c.Query("orderId"); orderID != "" {
			h.paymentStatusByOrderID(c, orderID)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkoutId or orderId is required"})
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), checkoutID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{
			"source": "session",
			"status": sess.PaymentStatus,
		})
		return
	}
	if !errors.Is(err, checkout.ErrSessionNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load checkout session"})
		return
	}

	order, err := h.OrderRepo.FindByCheckoutID(c.Request.Context(), checkoutID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No payment found for this checkout"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":      "order",
		"status":      models.PaymentStatusPaid,
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
	})
}

func (h *Handlers) paymentStatusByOrderID(c *gin.Context, orderID string) {
	var id int64
	var orderNumber, paymentStatus string
	err := h.DB.QueryRow(
		"SELECT id, order_number, payment_status FROM orders WHERE id = ?", orderID,
	).Scan(&id, &orderNumber, &paymentStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No payment found for this order"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":      "order",
		"status":      paymentStatus,
		"orderId":     id,
		"orderNumber": orderNumber,
	})
}

// StartReconcileInput defines the JSON for POST /v1/payment/reconcile
type StartReconcileInput struct {
	CheckoutID string `json:"checkoutId" binding:"required"`
}

// StartReconcile kicks off a server-side polling loop for a payment whose
// client-side callback never arrived (closed tab, flaky network). The loop
// asks Razorpay until the payment is captured, the budget runs out, or the
// client cancels.
func (h *Handlers) StartReconcile(c *gin.Context) {
	var input StartReconcileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), input.CheckoutID)
	if err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load checkout session"})
		return
	}
	if sess.PaymentStatus != models.PaymentStatusProcessing || sess.GatewayOrderID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No in-flight payment to reconcile"})
		return
	}

	checkoutID := sess.ID
	gatewayOrderID := sess.GatewayOrderID

	h.Reconciler.Start(checkoutID,
		func(ctx context.Context) (reconcile.Status, error) {
			captured, err := h.Gateway.PaymentCaptured(gatewayOrderID)
			if err != nil {
				return reconcile.StatusPending, err
			}
			if captured {
				return reconcile.StatusPaid, nil
			}
			return reconcile.StatusPending, nil
		},
		func(ctx context.Context) {
			_, err := h.Orders.Materialize(ctx, checkoutID, orders.PaymentRef{
				Method:         "razorpay",
				GatewayOrderID: gatewayOrderID,
			})
			if err != nil && !errors.Is(err, orders.ErrAlreadyMaterialized) {
				log.Printf("ERROR: reconciled payment for checkout %s but materialization failed: %v", checkoutID, err)
			}
		})

	c.JSON(http.StatusAccepted, gin.H{"message": "Reconciliation started"})
}

// CancelReconcile is the handler for DELETE /v1/payment/reconcile/:checkout_id
func (h *Handlers) CancelReconcile(c *gin.Context) {
	h.Reconciler.Cancel(c.Param("checkout_id"))
	c.JSON(http.StatusOK, gin.H{"message": "Reconciliation cancelled"})
}
