package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// Quote is a price observation.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Cache keeps the last successful quote. Entries never expire on their own;
// Service decides freshness so a stale quote can still serve as fallback.
type Cache interface {
	Get(ctx context.Context) (Quote, bool, error)
	Set(ctx context.Context, quote Quote) error
}

type MemoryCache struct {
	mu    sync.RWMutex
	quote Quote
	ok    bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(context.Context) (Quote, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quote, c.ok, nil
}

func (c *MemoryCache) Set(_ context.Context, quote Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quote = quote
	c.ok = true
	return nil
}

// RedisCache shares the quote between replicas.
type RedisCache struct {
	rds *redis.Client
	key string
}

func NewRedisCache(rds *redis.Client, coinID string) *RedisCache {
	return &RedisCache{rds: rds, key: "ledger:price:" + coinID}
}

func (c *RedisCache) Get(ctx context.Context) (Quote, bool, error) {
	raw, err := c.rds.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("redis get %s: %w", c.key, err)
	}
	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return quote, true, nil
}

func (c *RedisCache) Set(ctx context.Context, quote Quote) error {
	raw, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	if err := c.rds.Set(ctx, c.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}
