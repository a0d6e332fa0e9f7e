// Package cache is a read-through cache for single orders.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/order-service/internal/domain"
)

const keyPrefix = "order:"

// ErrMiss is returned by Get when the order is not cached.
var ErrMiss = errors.New("cache miss")

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "order_cache_lookups_total",
	Help: "Order cache lookups by result (hit, miss, error).",
}, []string{"result"})

// OrderCache stores orders in Redis as JSON under order:{id}.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrderCache creates a Redis-backed cache. A zero ttl keeps entries until
// they are deleted.
func NewOrderCache(client *redis.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached order or ErrMiss.
func (c *OrderCache) Get(ctx context.Context, id string) (*domain.Order, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			lookups.WithLabelValues("miss").Inc()
			return nil, ErrMiss
		}
		lookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("redis get order: %w", err)
	}

	var o domain.Order
	if err := json.Unmarshal(data, &o); err != nil {
		lookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	lookups.WithLabelValues("hit").Inc()
	return &o, nil
}

// Set stores o with the configured TTL, replacing any cached entry.
func (c *OrderCache) Set(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+o.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set order: %w", err)
	}
	return nil
}

// Add stores o only if the order is not cached yet. An existing entry is
// left in place and no error is returned.
func (c *OrderCache) Add(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	if err := c.client.SetNX(ctx, keyPrefix+o.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx order: %w", err)
	}
	return nil
}

// Delete evicts the order. Evicting an absent key is not an error.
func (c *OrderCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del order: %w", err)
	}
	return nil
}

// Ping checks connectivity for the readiness probe.
func (c *OrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Noop is used when Redis is not configured. Every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Order, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, *domain.Order) error           { return nil }
func (Noop) Add(context.Context, *domain.Order) error           { return nil }
func (Noop) Delete(context.Context, string) error               { return nil }
