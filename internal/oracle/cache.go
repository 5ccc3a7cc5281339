package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 6 * time.Hour

// Cache stores settled oracle replies in Redis, keyed by position and
// depth. A reply for a position never goes stale, so the TTL only bounds
// memory use.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// NewCacheFromURL connects to Redis via URL (redis://host:port/db).
func NewCacheFromURL(url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewCache(redis.NewClient(opts), ttl), nil
}

func (c *Cache) key(fen string, depth int) string {
	h := sha256.Sum256([]byte(fen))
	return fmt.Sprintf("oracle:reply:%s:%d", hex.EncodeToString(h[:16]), depth)
}

// Get returns the cached reply for the position, or nil on a miss.
func (c *Cache) Get(ctx context.Context, fen string, depth int) (*Reply, error) {
	raw, err := c.rdb.Get(ctx, c.key(fen, depth)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Cache) Put(ctx context.Context, fen string, depth int, reply Reply) error {
	raw, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(fen, depth), raw, c.ttl).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
