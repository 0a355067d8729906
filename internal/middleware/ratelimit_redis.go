package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	rateLimitWindow    = 60 * time.Second
)

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 10000)

return {1, limit - count - 1, now + window}
`)

// RedisRateLimiter is a sliding-window limiter shared by all server instances.
type RedisRateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

// Check records one request for key. Redis failures fail open. resetAt is
// in unix milliseconds.
func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	now := rl.now().UnixMilli()
	window := rateLimitWindow.Milliseconds()
	member := strconv.FormatInt(rl.now().UnixNano(), 10)

	result, err := rateLimitScript.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key}, now, window, limit, member).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, now + window
	}
	if len(result) != 3 {
		log.Warn().Str("key", key).Msg("unexpected redis rate limit result")
		return true, limit - 1, now + window
	}

	return result[0] == 1, int(result[1]), result[2]
}

// RedisRateLimitMiddleware limits authenticated callers per user id and
// anonymous callers per client address.
type RedisRateLimitMiddleware struct {
	limiter *RedisRateLimiter
	limit   int
}

func NewRedisRateLimitMiddleware(redisClient *redis.Client, limitPerMin int) *RedisRateLimitMiddleware {
	return &RedisRateLimitMiddleware{
		limiter: NewRedisRateLimiter(redisClient),
		limit:   limitPerMin,
	}
}

func (m *RedisRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		actorID := ""
		if identity := GetIdentity(r.Context()); identity != nil {
			key = "user:" + identity.UserID
			actorID = identity.UserID
		}

		allowed, remaining, resetAt := m.limiter.Check(r.Context(), key, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt/1000, 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				ActorID: actorID,
				Details: map[string]any{"key": key},
			})
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
