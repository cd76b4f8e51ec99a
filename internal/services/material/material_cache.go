package material

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Cache holds positive lookups only. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, qrCodeID string) (*Material, bool, error)
	Set(ctx context.Context, m *Material) error
	Delete(ctx context.Context, qrCodeID string) error
	// Purge drops every cached material.
	Purge(ctx context.Context) error
	Name() string
}

const redisKeyPrefix = "material:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL such as redis://localhost:6379/0.
func NewRedisCacheFromURL(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), ttl), nil
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, qrCodeID string) (*Material, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+qrCodeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var m Material
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry for %s: %w", qrCodeID, err)
	}
	return &m, true, nil
}

func (c *RedisCache) Set(ctx context.Context, m *Material) error {
	raw, err := sonic.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+m.QRCodeID, raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, qrCodeID string) error {
	return c.client.Del(ctx, redisKeyPrefix+qrCodeID).Err()
}

func (c *RedisCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// LRUCache is the in-process fallback when no Redis is configured.
type LRUCache struct {
	lru *expirable.LRU[string, Material]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, Material](size, nil, ttl)}
}

func (c *LRUCache) Name() string { return "lru" }

func (c *LRUCache) Get(_ context.Context, qrCodeID string) (*Material, bool, error) {
	m, ok := c.lru.Get(qrCodeID)
	if !ok {
		return nil, false, nil
	}
	m.Features = cloneFeatures(m.Features)
	return &m, true, nil
}

func (c *LRUCache) Set(_ context.Context, m *Material) error {
	cp := *m
	cp.Features = cloneFeatures(m.Features)
	c.lru.Add(m.QRCodeID, cp)
	return nil
}

func (c *LRUCache) Delete(_ context.Context, qrCodeID string) error {
	c.lru.Remove(qrCodeID)
	return nil
}

func (c *LRUCache) Purge(context.Context) error {
	c.lru.Purge()
	return nil
}

func cloneFeatures(f []string) []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f))
	copy(out, f)
	return out
}

type instrumentedCache struct {
	Cache
	lookups *prometheus.CounterVec
}

// NewInstrumentedCache counts lookups by backend and result (hit, miss, error).
// lookups must have the labels "backend" and "result".
func NewInstrumentedCache(c Cache, lookups *prometheus.CounterVec) Cache {
	if lookups == nil {
		return c
	}
	return &instrumentedCache{Cache: c, lookups: lookups}
}

func (c *instrumentedCache) Get(ctx context.Context, qrCodeID string) (*Material, bool, error) {
	m, ok, err := c.Cache.Get(ctx, qrCodeID)
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
	}
	c.lookups.WithLabelValues(c.Cache.Name(), result).Inc()
	return m, ok, err
}
