package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		w.Write([]byte(id))
	})
}

func TestAuth(t *testing.T) {
	h := Auth(StaticTokenVerifier{"tok-1": "buyer-1"}, slog.Default())(whoami())

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer tok-1", http.StatusOK, "buyer-1"},
		{"lowercase scheme", "bearer tok-1", http.StatusOK, "buyer-1"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"missing", "", http.StatusUnauthorized, ""},
		{"basic", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/bargain/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestAuthVerifierOutage(t *testing.T) {
	h := Auth(failingVerifier{}, slog.Default())(whoami())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	req := httptest.NewRequest(http.MethodPut, "/bargain/sessions/s-1/accept", nil)
	req = req.WithContext(WithUserID(req.Context(), "buyer-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"user_id":"buyer-1"`)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ip:10.0.0.7", callerKey(req))
	req = req.WithContext(WithUserID(req.Context(), "farmer-1"))
	assert.Equal(t, "user:farmer-1", callerKey(req))
	assert.Equal(t, "60", formatSeconds(60e9))
}
