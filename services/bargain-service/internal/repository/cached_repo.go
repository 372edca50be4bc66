package repository

import (
	"context"
	"encoding/json"
	"time"

	"farmart-bargain/services/bargain-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CachedSessionRepository serves session reads from Redis. Updates go to the
// primary and then write the new version through. A cached copy is never
// replaced by an older version, so a slow read-through cannot undo an update.
type CachedSessionRepository struct {
	primaryRepo domain.SessionRepository
	redisClient *redis.Client
	ttl         time.Duration
}

func NewCachedSessionRepository(
	primary domain.SessionRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) *CachedSessionRepository {
	return &CachedSessionRepository{
		primaryRepo: primary,
		redisClient: redisClient,
		ttl:         cacheTTL,
	}
}

func sessionCacheKey(id string) string {
	return "bargain:session:" + id
}

// storeIfNewer sets KEYS[1] to ARGV[1] unless the cached session's version is
// already at or past ARGV[2]. ARGV[3] is the TTL in milliseconds.
var storeIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and type(doc) == 'table' and tonumber(doc.version) and tonumber(doc.version) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

func (r *CachedSessionRepository) store(ctx context.Context, s *domain.NegotiationSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return storeIfNewer.Run(ctx, r.redisClient, []string{sessionCacheKey(s.ID)},
		data, s.Version, r.ttl.Milliseconds()).Err()
}

func (r *CachedSessionRepository) Get(ctx context.Context, id string) (*domain.NegotiationSession, error) {
	cacheKey := sessionCacheKey(id)

	cached, err := r.redisClient.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var s domain.NegotiationSession
		if err := json.Unmarshal(cached, &s); err == nil {
			return &s, nil
		}
	}

	s, err := r.primaryRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = r.store(ctx, s)
	return s, nil
}

func (r *CachedSessionRepository) Create(ctx context.Context, s *domain.NegotiationSession) error {
	return r.primaryRepo.Create(ctx, s)
}

func (r *CachedSessionRepository) Update(ctx context.Context, s *domain.NegotiationSession) error {
	if err := r.primaryRepo.Update(ctx, s); err != nil {
		// a failed update may mean the cached copy is the stale one
		r.redisClient.Del(ctx, sessionCacheKey(s.ID))
		return err
	}
	if err := r.store(ctx, s); err != nil {
		r.redisClient.Del(ctx, sessionCacheKey(s.ID))
	}
	return nil
}

func (r *CachedSessionRepository) ListByParty(ctx context.Context, userID string) ([]*domain.NegotiationSession, error) {
	return r.primaryRepo.ListByParty(ctx, userID)
}
