package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRateLimiterAllow(t *testing.T) {
	client := testRedisClient(t)
	rl := NewRateLimiter(client, 3, time.Second)

	key := "allow-" + t.Name()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, _, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, remaining, err := rl.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestRateLimiterMiddleware(t *testing.T) {
	client := testRedisClient(t)
	rl := NewRateLimiter(client, 1, time.Second)

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
}
