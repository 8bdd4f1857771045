package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThreadCache holds the rendered published thread of each commentable so hot
// read paths skip the database. Entries are invalidated on every write that
// can change the visible thread.
type ThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewThreadCache connects to Redis and verifies the connection.
func NewThreadCache(redisURL, password string, ttl time.Duration) (*ThreadCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &ThreadCache{client: rdb, ttl: ttl}, nil
}

func threadKey(ctype string, cid uint) string {
	return fmt.Sprintf("comments:thread:%s:%d", ctype, cid)
}

// GetThread returns the cached thread payload, or ok=false on miss. A nil
// cache behaves as a permanent miss so the service works without Redis.
func (c *ThreadCache) GetThread(ctx context.Context, ctype string, cid uint) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, threadKey(ctype, cid)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// SetThread stores the thread payload with the configured TTL.
func (c *ThreadCache) SetThread(ctx context.Context, ctype string, cid uint, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, threadKey(ctype, cid), payload, c.ttl)
}

// Invalidate drops the cached thread of one commentable.
func (c *ThreadCache) Invalidate(ctx context.Context, ctype string, cid uint) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, threadKey(ctype, cid))
}

// Close releases the underlying Redis connection.
func (c *ThreadCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
