// Package cache provides the Redis access layer: rate limiting and event streams.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the Redis connection pool. Zero values keep the defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// DefaultOptions is used for fields left at zero.
var DefaultOptions = Options{
	PoolSize:     10,
	MinIdleConns: 2,
	DialTimeout:  5 * time.Second,
}

// Cache wraps the Redis client shared by rate limiting and the unlock stream.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and pings it before returning.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	applyOptions(opt, opts)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func applyOptions(opt *redis.Options, opts Options) {
	opt.PoolSize = pick(opts.PoolSize, DefaultOptions.PoolSize)
	opt.MinIdleConns = pick(opts.MinIdleConns, DefaultOptions.MinIdleConns)
	opt.DialTimeout = pick(opts.DialTimeout, DefaultOptions.DialTimeout)
	opt.PoolTimeout = opt.DialTimeout
	opt.ConnMaxIdleTime = 5 * time.Minute
}

func pick[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}
