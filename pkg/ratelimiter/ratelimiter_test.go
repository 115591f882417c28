package ratelimiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	_, err := NewBucket(NewMemoryStore(), "", Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewBucket(NewMemoryStore(), "", Config{Capacity: 1, RefillRate: 0, RefillInterval: time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewBucket(NewMemoryStore(), "", Config{Capacity: 1, RefillRate: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMemoryBucket(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	b, err := NewBucket(store, "otp:", Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 2; i >= 0; i-- {
		res, err := b.Allow(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, i, res.Remaining)
	}

	res, err := b.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	other, err := b.Allow(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, other.Allowed(), "keys are independent")

	now = now.Add(time.Minute)
	res, err = b.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed(), "one token refilled")
	assert.Equal(t, 0, res.Remaining)

	require.NoError(t, b.Reset(ctx, "a@x.com"))
	res, err = b.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	_, err = b.AllowN(ctx, "a@x.com", 0)
	assert.ErrorIs(t, err, ErrInvalidTokenCount)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	b, err := NewBucket(NewMemoryStore(), "ip:", Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	h := Middleware(b, func(r *http.Request) string { return r.Header.Get("X-Key") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	call := func(key string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := call("k1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = call("k1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("").Code, "empty key is not limited")
	assert.Equal(t, http.StatusOK, call("").Code)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	opts := &redis.Options{}
	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		require.NoError(t, err)
		opts = parsed
	} else {
		opts.Addr = miniredis.RunT(t).Addr()
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	b, err := NewBucket(NewRedisStore(client), "test:rl:"+uuid.NewString()+":", Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	require.NoError(t, b.Reset(ctx, "k"))
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}
