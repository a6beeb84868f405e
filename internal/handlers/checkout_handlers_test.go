package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
	"github.com/crumbcraft/bakehouse-golang/internal/payment"
	"github.com/crumbcraft/bakehouse-golang/internal/reconcile"
)

const testRazorpaySecret = "test_secret"

// newTestHandlers wires handlers against sqlmock and miniredis.
func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessions := checkout.NewStore(client)
	repo := orders.NewSQLRepository(db)
	gateway, err := payment.NewGateway("rzp_test_key", testRazorpaySecret)
	require.NoError(t, err)

	return &Handlers{
		DB:         db,
		Sessions:   sessions,
		GuestCarts: checkout.NewGuestCartStore(client),
		Gateway:    gateway,
		Orders:     orders.NewMaterializer(sessions, repo, nil),
		OrderRepo:  repo,
		Reconciler: reconcile.NewManager(),
	}, mock, mr
}

// newTestRouter registers the checkout routes with a stub auth middleware
// that injects the given user id (0 means anonymous).
func newTestRouter(h *Handlers, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("userID", userID)
			c.Set("userRole", "customer")
		}
		c.Next()
	})

	router.POST("/v1/checkout", h.CreateCheckout)
	router.GET("/v1/checkout/:id", h.GetCheckout)
	router.POST("/v1/payment/verify", h.VerifyPayment)
	router.GET("/v1/payment/status", h.PaymentStatusQuery)
	router.POST("/v1/orders/create", h.CreateOrder)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// seedProcessingSession creates a session that is mid-payment with a
// gateway order attached.
func seedProcessingSession(t *testing.T, h *Handlers, gatewayOrderID string) *models.CheckoutSession {
	t.Helper()

	ctx := t.Context()
	sess, err := h.Sessions.Create(ctx, []models.SessionItem{
		{ProductID: 1, Name: "Chocolate Truffle Cake", UnitPrice: 499, Quantity: 1},
	}, checkout.UserContext{Email: "guest@example.com", Name: "Guest", Phone: "9999999999"})
	require.NoError(t, err)

	sess, err = h.Sessions.Update(ctx, sess.ID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusProcessing
		s.GatewayOrderID = gatewayOrderID
		s.Total = 499
		return nil
	})
	require.NoError(t, err)
	return sess
}

func TestCreateCheckout_EmptyCartRejected(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectQuery("SELECT ci.product_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"product_id", "name", "image_url", "variant", "customizations", "price", "quantity",
		}))
	mock.ExpectQuery("SELECT id, email, full_name, phone_number FROM users").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "phone_number"}).
			AddRow(7, "asha@example.com", "Asha", "9876543210"))

	router := newTestRouter(h, 7)
	rec := doJSON(router, http.MethodPost, "/v1/checkout", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart is empty")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCheckout_UnknownSessionIs404(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodGet, "/v1/checkout/no-such-session", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyPayment_InvalidSignatureMarksFailed(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	sess := seedProcessingSession(t, h, "order_test_123")

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodPost, "/v1/payment/verify", gin.H{
		"checkoutId":        sess.ID,
		"razorpayOrderId":   "order_test_123",
		"razorpayPaymentId": "pay_test_456",
		"razorpaySignature": "not-a-real-signature",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	// The session survives for a retry, flipped to failed.
	after, err := h.Sessions.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, after.PaymentStatus)
}

func TestVerifyPayment_WrongGatewayOrderRejected(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	sess := seedProcessingSession(t, h, "order_test_123")

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodPost, "/v1/payment/verify", gin.H{
		"checkoutId":        sess.ID,
		"razorpayOrderId":   "order_someone_elses",
		"razorpayPaymentId": "pay_test_456",
		"razorpaySignature": "whatever",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not belong")

	// Status untouched; no verification was attempted.
	after, err := h.Sessions.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, after.PaymentStatus)
}

func TestVerifyPayment_ValidSignatureForSignedPayload(t *testing.T) {
	// The signature math itself lives in the payment package; here we only
	// confirm the handler accepts a correctly signed payload far enough to
	// reach materialization (which then fails on the bare sqlmock, giving
	// a 500 rather than the 400 an invalid signature gets).
	h, mock, _ := newTestHandlers(t)
	sess := seedProcessingSession(t, h, "order_test_123")

	sig := payment.SignPayload("order_test_123", "pay_test_456", testRazorpaySecret)

	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).
			AddRow("cgst_rate", "9").AddRow("sgst_rate", "9"))
	mock.ExpectQuery("SELECT start_km, end_km, price FROM delivery_tiers").
		WillReturnRows(sqlmock.NewRows([]string{"start_km", "end_km", "price"}).
			AddRow(0.0, 5.0, 40.0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodPost, "/v1/payment/verify", gin.H{
		"checkoutId":        sess.ID,
		"razorpayOrderId":   "order_test_123",
		"razorpayPaymentId": "pay_test_456",
		"razorpaySignature": sig,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	// Materialization destroys the session.
	_, err := h.Sessions.Get(t.Context(), sess.ID)
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestPaymentStatus_RequiresCheckoutID(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodGet, "/v1/payment/status", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentStatus_FallsBackToOrdersTable(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, order_number, checkout_id").
		WithArgs("gone-session").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_number", "checkout_id", "status", "payment_status", "total_amount", "created_at",
		}).AddRow(41, "BH-20260901-4F2A1C", "gone-session", "pending", "paid", 572.80, time.Now()))

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodGet, "/v1/payment/status?checkoutId=gone-session", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"order"`)
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)
	assert.Contains(t, rec.Body.String(), "BH-20260901-4F2A1C")
}

func TestPaymentStatus_LiveSessionReportsStatus(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	sess := seedProcessingSession(t, h, "order_test_123")

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodGet, "/v1/payment/status?checkoutId="+sess.ID, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"session"`)
	assert.Contains(t, rec.Body.String(), `"status":"processing"`)
}

func TestCreateCheckout_GuestFlowReturnsPricedSession(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	require.NoError(t, h.GuestCarts.Set(t.Context(), "guest-cart-1", []models.GuestCartItem{
		{ProductID: 12, Quantity: 2},
	}))

	mock.ExpectQuery("SELECT p.name, COALESCE").
		WithArgs(nil, int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "image_url", "price", "pv_name", "pv_price"}).
			AddRow("Chocolate Truffle Cake", "", 499.0, nil, nil))
	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).
			AddRow("cgst_rate", "9").AddRow("sgst_rate", "9"))
	mock.ExpectQuery("SELECT start_km, end_km, price FROM delivery_tiers").
		WillReturnRows(sqlmock.NewRows([]string{"start_km", "end_km", "price"}).
			AddRow(0.0, 5.0, 40.0))

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodPost, "/v1/checkout", gin.H{
		"guestCartId":  "guest-cart-1",
		"contactName":  "Guest",
		"contactPhone": "9999999999",
		"contactEmail": "guest@example.com",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"idle"`)
	assert.Contains(t, rec.Body.String(), `"subtotal":998`)
}

func TestCreateOrder_CashOnDelivery(t *testing.T) {
	h, mock, _ := newTestHandlers(t)

	sess, err := h.Sessions.Create(t.Context(), []models.SessionItem{
		{ProductID: 1, Name: "Chocolate Truffle Cake", UnitPrice: 499, Quantity: 1},
	}, checkout.UserContext{Email: "guest@example.com", Name: "Guest", Phone: "9999999999"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).
			AddRow("cgst_rate", "9").AddRow("sgst_rate", "9"))
	mock.ExpectQuery("SELECT start_km, end_km, price FROM delivery_tiers").
		WillReturnRows(sqlmock.NewRows([]string{"start_km", "end_km", "price"}).
			AddRow(0.0, 5.0, 40.0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := newTestRouter(h, 0)
	rec := doJSON(router, http.MethodPost, "/v1/orders/create", gin.H{
		"checkoutId":    sess.ID,
		"paymentMethod": "cod",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"redirectUrl":"/orders/42"`)
}
