package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier resolves a bearer token to the user it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// StaticTokenVerifier is a fixed token table for local runs and tests.
type StaticTokenVerifier map[string]string

func (v StaticTokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", ErrInvalidToken
}

// RedisTokenVerifier looks tokens up under bargain:token:<token>, where the
// auth service stores the user id with the session's expiry.
type RedisTokenVerifier struct {
	rdb redis.Cmdable
}

func NewRedisTokenVerifier(rdb redis.Cmdable) *RedisTokenVerifier {
	return &RedisTokenVerifier{rdb: rdb}
}

func TokenKey(token string) string { return "bargain:token:" + token }

func (v *RedisTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	id, err := v.rdb.Get(ctx, TokenKey(token)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && id == "") {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

type ctxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Auth rejects requests without a valid "Authorization: Bearer" header and
// stores the caller's user id in the request context.
func Auth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					logger.Error("token verification failed", "error", err)
					http.Error(w, `{"error":"authentication unavailable","code":"INTERNAL"}`, http.StatusServiceUnavailable)
					return
				}
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="farmart"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"missing or invalid bearer token","code":"UNAUTHORIZED"}`))
}
