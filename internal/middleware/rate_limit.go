package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const rateLimitPrefix = "rl:request:"

// RequestRateLimit caps code requests per second factor per minute. Counters
// live in Redis when available, otherwise in a per-process token bucket.
// Requests without a second factor are keyed by client IP.
func RequestRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	local := newKeyLimiter(rate.Every(time.Minute/time.Duration(maxPerMin)), maxPerMin, 10*time.Minute)

	return func(c *fiber.Ctx) error {
		var req struct {
			SecondFactor string `json:"secondFactor"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.SecondFactor)
		if key == "" {
			key = c.IP()
		}

		if cache != nil {
			redisKey := rateLimitPrefix + key
			cnt, err := cache.Incr(c.UserContext(), redisKey).Result()
			if err == nil {
				if cnt == 1 {
					cache.Expire(c.UserContext(), redisKey, time.Minute)
				}
				if cnt > int64(maxPerMin) {
					return tooManyRequests()
				}
				return c.Next()
			}
			// fall through to the local limiter on cache errors
		}

		if !local.allow(key, time.Now()) {
			return tooManyRequests()
		}
		return c.Next()
	}
}

func tooManyRequests() error {
	return fiber.NewError(fiber.StatusTooManyRequests, "too many code requests, try again later")
}

// keyLimiter applies a token bucket per key and evicts idle entries.
type keyLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *keyLimiter {
	return &keyLimiter{limit: limit, burst: burst, idleTTL: idleTTL, byKey: make(map[string]*limiterEntry)}
}

func (l *keyLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}
