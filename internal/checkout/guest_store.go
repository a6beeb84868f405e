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

// Guest carts outlive a browsing session but not by much; a week covers
// the "came back after the weekend" case without hoarding keys.
const guestCartTTL = 7 * 24 * time.Hour

// GuestCartStore keeps carts for not-yet-authenticated visitors, keyed by
// a client-issued anonymous id. On login the items are merged into the
// durable SQL cart and the guest record is dropped.
type GuestCartStore struct {
	client *redis.Client
}

func NewGuestCartStore(client *redis.Client) *GuestCartStore {
	return &GuestCartStore{client: client}
}

// NewGuestCartID mints the anonymous id handed to the client.
func NewGuestCartID() string {
	return uuid.NewString()
}

// Get returns the guest cart's items; an unknown id is an empty cart, not
// an error.
func (g *GuestCartStore) Get(ctx context.Context, guestID string) ([]models.GuestCartItem, error) {
	data, err := g.client.Get(ctx, guestCartKey(guestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.GuestCartItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []models.GuestCartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal guest cart failed: %w", err)
	}
	return items, nil
}

// Set replaces the guest cart wholesale. The handler layer applies the
// add/update/remove semantics; this store only persists the result.
func (g *GuestCartStore) Set(ctx context.Context, guestID string, items []models.GuestCartItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal guest cart failed: %w", err)
	}
	if err := g.client.Set(ctx, guestCartKey(guestID), data, guestCartTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (g *GuestCartStore) Delete(ctx context.Context, guestID string) error {
	if err := g.client.Del(ctx, guestCartKey(guestID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func guestCartKey(guestID string) string {
	return fmt.Sprintf("cart:guest:%s", guestID)
}
