package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "faultline"

// Client wraps Redis operations for the shared alerting state.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return Wrap(rdb, cfg.KeyPrefix), nil
}

// Wrap adapts an existing go-redis client.
func Wrap(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func (c *Client) stateKey(fingerprint string) string {
	return fmt.Sprintf("%s:fp:%s", c.prefix, fingerprint)
}

func (c *Client) bucketKey(fingerprint string) string {
	return fmt.Sprintf("%s:digest:%s", c.prefix, fingerprint)
}

func (c *Client) bucketIndexKey() string {
	return fmt.Sprintf("%s:digest:index", c.prefix)
}

func (c *Client) lastFlushKey() string {
	return fmt.Sprintf("%s:flush:last", c.prefix)
}

func (c *Client) leaderKey(name string) string {
	return fmt.Sprintf("%s:leader:%s", c.prefix, name)
}

// AcquireLeader takes the named lock for owner. Re-acquiring a lock already
// held by owner extends its TTL.
func (c *Client) AcquireLeader(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	key := c.leaderKey(name)
	ok, err := c.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	if ok {
		return true, nil
	}

	n, err := refreshLeaderScript.Run(ctx, c.rdb, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh leader failed: %w", err)
	}
	return n == 1, nil
}

// ReleaseLeader drops the lock if owner still holds it.
func (c *Client) ReleaseLeader(ctx context.Context, name, owner string) error {
	if err := releaseLeaderScript.Run(ctx, c.rdb, []string{c.leaderKey(name)}, owner).Err(); err != nil {
		return fmt.Errorf("release leader failed: %w", err)
	}
	return nil
}
