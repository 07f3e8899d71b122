package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCheckoutStore keeps the checkout context of one browsing session in redis.
//
// The key expires after ttl without a save, which ends the session's checkout.
type RedisCheckoutStore struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewRedisCheckoutStore scopes the store to sessionID. A zero ttl keeps keys forever.
func NewRedisCheckoutStore(client *redis.Client, sessionID string, ttl time.Duration) *RedisCheckoutStore {
	return &RedisCheckoutStore{client: client, sessionID: sessionID, ttl: ttl}
}

func checkoutKey(sessionID string) string {
	return fmt.Sprintf("checkout:%s", sessionID)
}

// LoadCheckout returns the session's context, or nil.
func (r *RedisCheckoutStore) LoadCheckout(ctx context.Context) (*models.CheckoutContext, error) {
	data, err := r.client.Get(ctx, checkoutKey(r.sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c models.CheckoutContext
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal checkout context failed: %w", err)
	}
	return &c, nil
}

// SaveCheckout replaces the session's context and restarts its expiry.
func (r *RedisCheckoutStore) SaveCheckout(ctx context.Context, c models.CheckoutContext) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal checkout context failed: %w", err)
	}

	if err := r.client.Set(ctx, checkoutKey(r.sessionID), string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// ClearCheckout deletes the session's context.
func (r *RedisCheckoutStore) ClearCheckout(ctx context.Context) error {
	if err := r.client.Del(ctx, checkoutKey(r.sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
