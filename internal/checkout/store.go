// Package checkout holds the short-lived server-side state of the checkout
// flow: the session store and the guest cart store, both on Redis.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrEmptyCart       = errors.New("cannot start checkout with an empty cart")
)

// SessionTTL is fixed, not sliding: reads never extend it, so an abandoned
// checkout is exposed for at most this long.
const SessionTTL = 30 * time.Minute

const lockTTL = 30 * time.Second

// UserContext identifies who is checking out. UserID is nil for guests.
type UserContext struct {
	UserID *int64
	Email  string
	Name   string
	Phone  string
}

// Store is a TTL'd key-value store for checkout sessions. It does not
// compute financials; callers run the pricing calculator and write the
// results back through Update.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: SessionTTL}
}

// Create snapshots the cart into a fresh session under an opaque id.
func (s *Store) Create(ctx context.Context, items []models.SessionItem, user UserContext) (*models.CheckoutSession, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	now := time.Now()
	sess := &models.CheckoutSession{
		ID:            uuid.NewString(),
		Items:         items,
		UserID:        user.UserID,
		UserEmail:     user.Email,
		ContactName:   user.Name,
		ContactPhone:  user.Phone,
		PaymentStatus: models.PaymentStatusIdle,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	if err := s.write(ctx, sess, s.ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session, or ErrSessionNotFound when it is absent OR
// expired. Callers must not be able to distinguish the two cases.
func (s *Store) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess models.CheckoutSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}

	// The record carries its own deadline so a read racing Redis eviction
	// still reports the session as gone.
	if sess.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Update loads the session, applies mutate, and writes it back preserving
// the remaining TTL. Returns the mutated session.
func (s *Store) Update(ctx context.Context, id string, mutate func(*models.CheckoutSession) error) (*models.CheckoutSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}
	if err := s.write(ctx, sess, redis.KeepTTL); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete is idempotent; deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// AcquireLock takes the per-session mutual exclusion used by the order
// materializer. Returns false when another attempt holds it. The lock
// expires on its own so a crashed holder cannot wedge the session forever.
func (s *Store) AcquireLock(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(id), "1", lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (s *Store) ReleaseLock(ctx context.Context, id string) error {
	return s.client.Del(ctx, lockKey(id)).Err()
}

// ListProcessing scans for sessions stuck in the processing state with a
// gateway order attached. Used by the reconciliation worker.
func (s *Store) ListProcessing(ctx context.Context) ([]*models.CheckoutSession, error) {
	var out []*models.CheckoutSession

	iter := s.client.Scan(ctx, 0, "checkout:session:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		var sess models.CheckoutSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if sess.PaymentStatus == models.PaymentStatusProcessing && sess.GatewayOrderID != "" && !sess.Expired(time.Now()) {
			out = append(out, &sess)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return out, nil
}

func (s *Store) write(ctx context.Context, sess *models.CheckoutSession, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("checkout:lock:%s", id)
}
