package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// envelope is the stored form of one cached provider response
type envelope struct {
	StoredAt int64  `msgpack:"stored_at"`
	Category string `msgpack:"category"`
	Payload  []byte `msgpack:"payload"`
}

// Cache is a shared response cache for several screener processes. It
// satisfies the same contract as the local SQLite store: freshness is
// decided per category at read time and failures read as misses.
type Cache struct {
	client *Client
	prefix string
	ttls   map[string]time.Duration
	clock  clock.Clock
	logger *logger.Logger
}

// NewCache creates a cache helper
func NewCache(client *Client, prefix string, ttls map[string]time.Duration, clk clock.Clock, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttls:   ttls,
		clock:  clk,
		logger: log.WithField("module", "redis_cache"),
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a fresh payload
func (c *Cache) Get(ctx context.Context, key, category string) ([]byte, bool) {
	if !c.client.Enabled() {
		return nil, false
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("Redis read failed, treating as miss")
		}
		return nil, false
	}

	payload, ok := c.decode(data, category)
	if !ok {
		c.logger.WithField("key", key).Debug("Stale or unreadable redis entry")
	}
	return payload, ok
}

// Put stores a payload. The Redis key expiry mirrors the category ttl.
func (c *Cache) Put(ctx context.Context, key, category string, payload []byte) error {
	if !c.client.Enabled() {
		return nil
	}

	ttl, ok := c.ttls[category]
	if !ok {
		return fmt.Errorf("unknown cache category %q", category)
	}

	data, err := c.encode(category, payload)
	if err != nil {
		return err
	}
	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

func (c *Cache) encode(category string, payload []byte) ([]byte, error) {
	data, err := msgpack.Marshal(envelope{
		StoredAt: c.clock.Now().UnixNano(),
		Category: category,
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("cache marshal failed: %w", err)
	}
	return data, nil
}

func (c *Cache) decode(data []byte, category string) ([]byte, bool) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if len(env.Payload) == 0 || !json.Valid(env.Payload) {
		return nil, false
	}

	ttl, ok := c.ttls[category]
	if !ok || c.clock.Now().Sub(time.Unix(0, env.StoredAt)) > ttl {
		return nil, false
	}
	return env.Payload, true
}
