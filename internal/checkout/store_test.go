package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

// setupTestRedis creates a miniredis server and returns a Store instance
func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewStore(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func testItems() []models.SessionItem {
	return []models.SessionItem{
		{ProductID: 1, Name: "Chocolate Truffle Cake", UnitPrice: 650, Quantity: 1, Variant: "500g"},
		{ProductID: 4, Name: "Almond Biscotti", UnitPrice: 180, Quantity: 2},
	}
}

func TestCreate_EmptyCartRejected(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := store.Create(context.Background(), nil, UserContext{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateAndGet(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	userID := int64(42)
	sess, err := store.Create(ctx, testItems(), UserContext{
		UserID: &userID,
		Email:  "meera@example.com",
		Name:   "Meera",
		Phone:  "9876543210",
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, models.PaymentStatusIdle, sess.PaymentStatus)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, "meera@example.com", got.UserEmail)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(42), *got.UserID)
}

func TestGet_UnknownID(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGet_ExpiredSessionLooksAbsent(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	sess, err := store.Create(ctx, testItems(), UserContext{Email: "g@example.com"})
	require.NoError(t, err)

	// Past the TTL the session must read as not-found, whether or not the
	// key has physically been evicted yet.
	mr.FastForward(SessionTTL + time.Minute)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdate_MutatesAndPersists(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	sess, err := store.Create(ctx, testItems(), UserContext{Email: "g@example.com"})
	require.NoError(t, err)

	updated, err := store.Update(ctx, sess.ID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusProcessing
		s.GatewayOrderID = "order_rzp_123"
		s.Total = 1010
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, updated.PaymentStatus)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_rzp_123", got.GatewayOrderID)
	assert.Equal(t, 1010.0, got.Total)
}

func TestUpdate_UnknownID(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := store.Update(context.Background(), "missing", func(s *models.CheckoutSession) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	sess, err := store.Create(ctx, testItems(), UserContext{Email: "g@example.com"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	require.NoError(t, store.Delete(ctx, sess.ID), "second delete must not error")

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLock_MutualExclusion(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := store.AcquireLock(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must be refused while held")

	require.NoError(t, store.ReleaseLock(ctx, "sess-1"))

	ok, err = store.AcquireLock(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListProcessing(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	idle, err := store.Create(ctx, testItems(), UserContext{Email: "a@example.com"})
	require.NoError(t, err)

	processing, err := store.Create(ctx, testItems(), UserContext{Email: "b@example.com"})
	require.NoError(t, err)
	_, err = store.Update(ctx, processing.ID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusProcessing
		s.GatewayOrderID = "order_rzp_9"
		return nil
	})
	require.NoError(t, err)

	got, err := store.ListProcessing(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, processing.ID, got[0].ID)
	assert.NotEqual(t, idle.ID, got[0].ID)
}
