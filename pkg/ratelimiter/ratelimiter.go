// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis backed stores.
//
// Redis is used in production so limits hold across instances. The memory
// store is meant for tests and single instance development runs.
package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidTokenCount = errors.New("invalid token count")
	ErrStoreUnavailable  = errors.New("rate limit store unavailable")
)

// Result describes the bucket state after a request.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the request fit into the bucket.
func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is the time until the next refill, zero when allowed.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config defines a token bucket.
type Config struct {
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Store persists bucket state. ConsumeTokens refills, subtracts tokens and
// returns the remaining count, which is negative when the request is denied.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Bucket applies one Config to many keys.
type Bucket struct {
	store  Store
	config Config
	prefix string
}

// NewBucket validates cfg. prefix namespaces the keys of this bucket.
func NewBucket(store Store, prefix string, cfg Config) (*Bucket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, config: cfg, prefix: prefix}, nil
}

// Allow consumes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, b.prefix+key, n, b.config)
	if err != nil {
		return Result{}, errors.Join(ErrStoreUnavailable, err)
	}
	return Result{Limit: b.config.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}

// Reset clears the state of key.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, b.prefix+key)
}
