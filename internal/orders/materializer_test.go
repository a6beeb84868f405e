package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
)

func setupStore(t *testing.T) (*checkout.Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return checkout.NewStore(client), mr
}

func testConfig() pricing.Config {
	return pricing.Config{
		CGSTRatePct: 9,
		SGSTRatePct: 9,
		Tiers:       []pricing.Tier{{StartKm: 0, EndKm: 5, Price: 30}},
	}
}

func cap40() *float64 { v := 40.0; return &v }

// newProcessingSession creates a session that has a gateway order attached
// and is waiting for payment verification.
func newProcessingSession(t *testing.T, store *checkout.Store) *models.CheckoutSession {
	t.Helper()
	userID := int64(7)
	sess, err := store.Create(context.Background(), []models.SessionItem{
		{ProductID: 1, Name: "Chocolate Truffle Cake", UnitPrice: 250, Quantity: 2, Variant: "1kg"},
	}, checkout.UserContext{UserID: &userID, Email: "meera@example.com", Name: "Meera", Phone: "9876543210"})
	require.NoError(t, err)

	sess, err = store.Update(context.Background(), sess.ID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusProcessing
		s.GatewayOrderID = "order_rzp_1"
		s.AppliedCoupon = &models.AppliedCoupon{
			ID: 1, Code: "SWEET10", Type: "percentage", Value: 10, MaxDiscountCap: cap40(),
		}
		return nil
	})
	require.NoError(t, err)
	return sess
}

func razorpayRef() PaymentRef {
	return PaymentRef{Method: "razorpay", GatewayOrderID: "order_rzp_1", GatewayPaymentID: "pay_rzp_1"}
}

func TestMaterialize_CreatesOrderWithFrozenFinancials(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	events := &MockEventSink{}
	mat := NewMaterializer(store, repo, events)

	sess := newProcessingSession(t, store)

	res, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	require.NoError(t, err)
	assert.False(t, res.AlreadyExisted)
	assert.NotEmpty(t, res.OrderNumber)

	require.Equal(t, 1, repo.CreateCount())
	order := repo.CreatedOrders[0]

	// 500 item total, 10% capped at 40, 9%+9% on 460, 30 delivery.
	assert.Equal(t, 500.0, order.ItemTotal)
	assert.Equal(t, 40.0, order.DiscountAmount)
	assert.Equal(t, 41.4, order.CGST)
	assert.Equal(t, 41.4, order.SGST)
	assert.Equal(t, 30.0, order.DeliveryCharge)
	assert.Equal(t, 572.8, order.TotalAmount)
	assert.Equal(t, "paid", order.PaymentStatus)
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "SWEET10", *order.CouponCode)

	items := repo.CreatedItems[0]
	require.Len(t, items, 1)
	assert.Equal(t, "Chocolate Truffle Cake", items[0].ProductName)
	require.NotNil(t, items[0].Variant)
	assert.Equal(t, "1kg", *items[0].Variant)

	// Session is consumed: a later lookup must behave like expiry.
	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)

	assert.Equal(t, 1, events.ConfirmedCount())
}

func TestMaterialize_SecondCallIsConflictNotSecondOrder(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)

	first, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	require.NoError(t, err)

	// Duplicate delivery: the session is gone but the order exists, so the
	// caller gets the winner's order back, never a "restart checkout".
	second, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, ErrAlreadyMaterialized)
	require.NotNil(t, second)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 1, repo.CreateCount())
}

func TestMaterialize_ConcurrentCallsCreateExactlyOneOrder(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = mat.Materialize(context.Background(), sess.ID, razorpayRef())
		}(i)
	}
	wg.Wait()

	var successes, losers int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyMaterialized), errors.Is(err, checkout.ErrSessionNotFound):
			losers++
		default:
			t.Fatalf("unexpected error from concurrent materialize: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one attempt must win")
	assert.Equal(t, attempts-1, losers)
	assert.Equal(t, 1, repo.CreateCount(), "exactly one order row")
}

func TestMaterialize_PaidSessionIsConflict(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)
	orderID := int64(99)
	_, err := store.Update(context.Background(), sess.ID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusPaid
		s.DatabaseOrderID = &orderID
		return nil
	})
	require.NoError(t, err)

	res, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, ErrAlreadyMaterialized)
	require.NotNil(t, res)
	assert.True(t, res.AlreadyExisted)
	assert.Equal(t, int64(99), res.OrderID)
	assert.Equal(t, 0, repo.CreateCount())
}

func TestMaterialize_IdleSessionIsInvalidState(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	userID := int64(7)
	sess, err := store.Create(context.Background(), []models.SessionItem{
		{ProductID: 1, Name: "Rye Sourdough", UnitPrice: 120, Quantity: 1},
	}, checkout.UserContext{UserID: &userID, Email: "x@example.com"})
	require.NoError(t, err)

	_, err = mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 0, repo.CreateCount())
}

func TestMaterialize_ExpiredSessionIsNotFound(t *testing.T) {
	store, mr := setupStore(t)
	repo := &MockRepository{Config: testConfig()}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)
	mr.FastForward(checkout.SessionTTL + time.Minute)

	_, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
	assert.Equal(t, 0, repo.CreateCount(), "expired session must never silently materialize")
}

func TestMaterialize_PersistenceFailureKeepsSessionRetryable(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig(), CreateErr: ErrPersistence}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)

	_, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, ErrPersistence)

	// The session survives a failed persist so a retry can succeed.
	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, got.PaymentStatus)

	repo.CreateErr = nil
	_, err = mat.Materialize(context.Background(), sess.ID, razorpayRef())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.CreateCount())
}

func TestMaterialize_RetriesOrderNumberCollision(t *testing.T) {
	store, _ := setupStore(t)
	repo := &MockRepository{Config: testConfig(), CreateErrOnce: ErrDuplicateOrderNumber}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)

	res, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderNumber)
	assert.Equal(t, 1, repo.CreateCount())
}

func TestMaterialize_DuplicateCheckoutKeyResolvesToExistingOrder(t *testing.T) {
	store, _ := setupStore(t)
	existing := &models.Order{ID: 12, OrderNumber: "BH-20260901-AB12CD"}
	repo := &MockRepository{Config: testConfig(), CreateErrOnce: ErrAlreadyMaterialized, ExistingOrder: existing}
	mat := NewMaterializer(store, repo, &MockEventSink{})

	sess := newProcessingSession(t, store)

	res, err := mat.Materialize(context.Background(), sess.ID, razorpayRef())
	assert.ErrorIs(t, err, ErrAlreadyMaterialized)
	require.NotNil(t, res)
	assert.True(t, res.AlreadyExisted)
	assert.Equal(t, int64(12), res.OrderID)
	assert.Equal(t, "BH-20260901-AB12CD", res.OrderNumber)
}

func TestMarkFailed_AllowsRetryTransition(t *testing.T) {
	store, _ := setupStore(t)
	mat := NewMaterializer(store, &MockRepository{Config: testConfig()}, &MockEventSink{})

	sess := newProcessingSession(t, store)
	require.NoError(t, mat.MarkFailed(context.Background(), sess.ID))

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)

	// failed -> processing is a legal retry transition
	_, err = store.Update(context.Background(), sess.ID, func(s *models.CheckoutSession) error {
		if !s.PaymentStatus.CanTransitionTo(models.PaymentStatusProcessing) {
			t.Fatal("failed session must be retryable")
		}
		s.PaymentStatus = models.PaymentStatusProcessing
		return nil
	})
	require.NoError(t, err)
}
