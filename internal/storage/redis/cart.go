// Package redis keeps shopper session carts and API rate limit counters in
// Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// DefaultTTL is how long an untouched session cart is kept.
const DefaultTTL = 7 * 24 * time.Hour

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores each session's cart as one JSON value.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository returns a CartRepository; a zero ttl means DefaultTTL.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CartRepository{client: client, ttl: ttl}
}

// Load returns the session's saved cart, or an empty one.
func (r *CartRepository) Load(ctx context.Context, session string) (cart.State, error) {
	data, err := r.client.Get(ctx, cartKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.State{}, nil
	}
	if err != nil {
		return cart.State{}, errors.Wrap(err, "redis get")
	}

	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		return cart.State{}, errors.Wrap(err, "unmarshal cart")
	}
	return state, nil
}

// Save overwrites the session's cart and refreshes its TTL. An empty cart
// deletes the key.
func (r *CartRepository) Save(ctx context.Context, session string, state cart.State) error {
	key := cartKey(session)
	if len(state.Lines) == 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return errors.Wrap(err, "redis del")
		}
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func cartKey(session string) string {
	return fmt.Sprintf("cart:%s", session)
}
