package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/redisx"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Limiter decides whether a user may pass at this moment.
type Limiter interface {
	Allow(ctx context.Context, userID int64, interval time.Duration) bool
}

// MemoryLimiter keeps last-seen timestamps in process memory. Suitable
// for a single bot instance only.
type MemoryLimiter struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{lastSeen: make(map[int64]time.Time)}
}

// Allow reports whether the interval has elapsed since the user's last update.
func (l *MemoryLimiter) Allow(_ context.Context, userID int64, interval time.Duration) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < interval {
		return false
	}
	l.lastSeen[userID] = now
	return true
}

// RedisLimiter shares rate-limit state across replicated bot instances
// via SET NX with the interval as TTL.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter wraps a connected Redis client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow reports whether the user's rate-limit key could be claimed.
// Redis errors fail open: a broken limiter must not take the bot down.
func (l *RedisLimiter) Allow(ctx context.Context, userID int64, interval time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	ok, err := l.client.SetNX(ctx, redisx.RateLimitKey(userID), 1, interval).Result()
	if err != nil {
		logger.TG.Warn("rate limiter unavailable",
			slog.String("event", "tg.rate_limit"),
			slog.String("err", err.Error()),
		)
		return true
	}
	return ok
}

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	Limiter   Limiter
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			// Determine update kind and apply configured exclusions
			upd := c.Update()
			kind := "other"
			switch {
			case upd.Callback != nil:
				kind = "callback"
			case upd.Message != nil:
				kind = "message"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			allowed := limiter.Allow(ctx, user.ID, opts.Interval)
			cancel()
			if !allowed {
				logger.TG.Warn("rate limit",
					slog.String("event", "tg.rate_limit"),
					slog.Int64("user_id", user.ID),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
