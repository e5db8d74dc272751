package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per key in fixed windows stored in Redis,
// so every replica shares one budget per caller.
type RedisRateLimiter struct {
	pipe   func() redis.Pipeliner
	limit  int
	window time.Duration
	prefix string
	key    KeyFunc
	now    func() time.Time
}

func NewRedisRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{pipe: rdb.TxPipeline, limit: limit, window: window, prefix: prefix, key: ClientIP, now: time.Now}
}

// WithKey replaces the default client-IP key.
func (rl *RedisRateLimiter) WithKey(fn KeyFunc) *RedisRateLimiter {
	if fn != nil {
		rl.key = fn
	}
	return rl
}

// Middleware rejects callers over budget with 429. When Redis fails the
// request is let through if failOpen is set, otherwise it gets 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset, err := rl.incr(r.Context(), rl.key(r))
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "redis rate limiter error",
						"err", err, "fail_open", failOpen, "request_id", RequestIDFromContext(r.Context()))
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			if count > int64(rl.limit) {
				tooMany(w, reset)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// incr bumps the counter of the current window. Keys carry the window index
// so an expired window never needs resetting.
func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int64, time.Duration, error) {
	now := rl.now()
	bucket := now.UnixNano() / int64(rl.window)
	reset := time.Duration((bucket+1)*int64(rl.window) - now.UnixNano())
	full := rl.prefix + ":" + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := rl.pipe()
	count := pipe.Incr(ctx, full)
	pipe.Expire(ctx, full, rl.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return count.Val(), reset, nil
}

func tooMany(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
