//go:build integration

package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	rd, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rd.Terminate(ctx) })

	host, err := rd.Host(ctx)
	require.NoError(t, err)
	port, err := rd.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisBackedAuthAndRateLimit(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, rdb.Set(ctx, TokenKey("tok-1"), "buyer-1", time.Minute).Err())

	h := Auth(NewRedisTokenVerifier(rdb), logger)(RateLimit(rdb, 2, time.Minute, logger)(whoami()))
	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/bargain/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("unknown").Code)

	first := call("tok-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "buyer-1", first.Body.String())
	assert.Equal(t, http.StatusOK, call("tok-1").Code)

	limited := call("tok-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	ttl, err := rdb.TTL(ctx, "bargain:rate_limit:user:buyer-1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
