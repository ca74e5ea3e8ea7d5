package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Cache is a prefixed byte cache over Redis.
type Cache struct {
	rdb    redis.UniversalClient
	prefix string
}

// New connects and pings. A blank Addr yields (nil, nil) so callers can treat
// Redis as optional.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*Cache, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		if log != nil {
			log.Info("REDIS_ADDR not set; shared embedding cache disabled")
		}
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewWithClient(rdb, cfg.Prefix), nil
}

func NewWithClient(rdb redis.UniversalClient, prefix string) *Cache {
	if prefix == "" {
		prefix = "btgen:"
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, val, ttl).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
