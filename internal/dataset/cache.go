package dataset

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openwater-labs/aquanet/internal/domain"
	"github.com/redis/go-redis/v9"
)

// NewCache creates a raw series cache based on configuration. "memory"
// yields a local LRU; "redis" yields a two-phase cache with the LRU in
// front of a shared redis instance.
func NewCache(cfg domain.DatasetCacheConfig) (domain.SeriesCache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewLRUCache(cfg.MaxSeries, cfg.TTL), nil

	case "redis":
		return NewTwoPhaseCache(cfg)

	default:
		return nil, fmt.Errorf("unsupported dataset cache type: %s", cfg.Type)
	}
}

// LRUCache is a thread-safe LRU of decoded raw series with TTL support.
// Used standalone and as L1 in two-phase caching. Decoded series are
// shared between callers; the read path never mutates them.
type LRUCache struct {
	mu        sync.Mutex
	maxSeries int
	ttl       time.Duration
	items     map[string]*list.Element
	order     *list.List
}

type cacheEntry struct {
	key       string
	series    *domain.RawSeries
	expiresAt time.Time
}

// NewLRUCache creates an LRU cache holding at most maxSeries raw series.
func NewLRUCache(maxSeries int, ttl time.Duration) *LRUCache {
	if maxSeries <= 0 {
		maxSeries = 64
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LRUCache{
		maxSeries: maxSeries,
		ttl:       ttl,
		items:     make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Get retrieves a cached raw series; a miss returns (nil, nil).
func (c *LRUCache) Get(ctx context.Context, scenario, leakConfig string) (*domain.RawSeries, error) {
	key := cacheKey(scenario, leakConfig)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	return entry.series, nil
}

// Set stores a raw series, evicting the least recently used entries when
// over capacity.
func (c *LRUCache) Set(ctx context.Context, scenario, leakConfig string, rs *domain.RawSeries) error {
	key := cacheKey(scenario, leakConfig)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.series = rs
		entry.expiresAt = time.Now().Add(c.ttl)
		return nil
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		series:    rs,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[key] = elem

	for c.order.Len() > c.maxSeries {
		c.removeElement(c.order.Back())
	}
	return nil
}

// Invalidate drops a pair after regeneration.
func (c *LRUCache) Invalidate(ctx context.Context, scenario, leakConfig string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[cacheKey(scenario, leakConfig)]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Close drops all entries.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return nil
}

// Stats returns current size and capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSeries
}

func (c *LRUCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}

// RedisCache holds JSON-encoded raw series in redis, shared between API
// replicas. Used as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a redis-backed series cache.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get retrieves and decodes a cached raw series; a miss returns (nil, nil).
func (c *RedisCache) Get(ctx context.Context, scenario, leakConfig string) (*domain.RawSeries, error) {
	data, err := c.client.Get(ctx, c.redisKey(scenario, leakConfig)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rs domain.RawSeries
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Set encodes and stores a raw series.
func (c *RedisCache) Set(ctx context.Context, scenario, leakConfig string, rs *domain.RawSeries) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.redisKey(scenario, leakConfig), data, c.ttl).Err()
}

// Invalidate drops a pair after regeneration.
func (c *RedisCache) Invalidate(ctx context.Context, scenario, leakConfig string) error {
	return c.client.Del(ctx, c.redisKey(scenario, leakConfig)).Err()
}

// Close closes the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) redisKey(scenario, leakConfig string) string {
	return "aquanet:raw:" + cacheKey(scenario, leakConfig)
}

// TwoPhaseCache layers a local LRU over redis: L1 for fast repeated reads
// on one host, L2 shared between hosts.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
}

// NewTwoPhaseCache creates a two-phase cache with LRU + redis.
func NewTwoPhaseCache(cfg domain.DatasetCacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return &TwoPhaseCache{
		local:  NewLRUCache(cfg.MaxSeries, cfg.TTL),
		remote: remote,
	}, nil
}

// Get checks L1 first, then L2, populating L1 on an L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, scenario, leakConfig string) (*domain.RawSeries, error) {
	rs, err := c.local.Get(ctx, scenario, leakConfig)
	if err != nil || rs != nil {
		return rs, err
	}

	rs, err = c.remote.Get(ctx, scenario, leakConfig)
	if err != nil {
		return nil, err
	}
	if rs != nil {
		_ = c.local.Set(ctx, scenario, leakConfig, rs)
	}
	return rs, nil
}

// Set writes to both phases.
func (c *TwoPhaseCache) Set(ctx context.Context, scenario, leakConfig string, rs *domain.RawSeries) error {
	if err := c.local.Set(ctx, scenario, leakConfig, rs); err != nil {
		return err
	}
	return c.remote.Set(ctx, scenario, leakConfig, rs)
}

// Invalidate drops a pair from both phases.
func (c *TwoPhaseCache) Invalidate(ctx context.Context, scenario, leakConfig string) error {
	if err := c.local.Invalidate(ctx, scenario, leakConfig); err != nil {
		return err
	}
	return c.remote.Invalidate(ctx, scenario, leakConfig)
}

// Close closes both phases.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

func cacheKey(scenario, leakConfig string) string {
	return scenario + "/" + leakConfig
}
