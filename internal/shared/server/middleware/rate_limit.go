package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/server/respond"
	"veriglow-backend/internal/shared/telemetry"
)

const (
	defaultRateLimitGroup = "default"
	rateLimitKeyPrefix    = "ratelimit"
)

// RateLimitRule caps requests per key to Limit within Window.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateDecision is the outcome of a limiter check.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, rule RateLimitRule) (RateDecision, error)
}

// RateLimitConfig wires rules and a limiter into the middleware.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      Limiter
	ExemptPaths  []string
}

// RateLimit enforces per-principal request rates. Limiter failures let the
// request through so a rate limiting outage never takes the API down.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewMemoryLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := exempt[path]; ok {
			c.Next()
			return
		}

		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.Limit <= 0 {
			c.Next()
			return
		}
		if rule.Window <= 0 {
			rule.Window = time.Minute
		}

		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		}
		if principal == "" {
			principal = strings.TrimSpace(c.ClientIP())
		}
		if principal == "" {
			principal = "unknown"
		}
		key := rateLimitKeyPrefix + ":" + principal + ":" + group

		decision, err := cfg.Limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			telemetry.Warn("rate limit check failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		now := time.Now()
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if decision.Allowed {
			h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(rule.Window).Unix(), 10))
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter <= 0 {
			retryAfter = 1
		}
		h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(decision.RetryAfter).Unix(), 10))
		h.Set("Retry-After", strconv.Itoa(retryAfter))

		metrics.IncRateLimited()
		telemetry.Warn("rate limit exceeded", map[string]any{
			"principal": principal,
			"group":     group,
			"path":      path,
		})

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"code":        respond.CodeRateLimited,
				"message":     "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			},
		})
	}
}

// RedisLimiter implements a sliding window over a sorted set per key.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter builds a limiter on the shared redis client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (RateDecision, error) {
	now := l.now()
	nowSec := float64(now.UnixNano()) / 1e9
	windowStart := nowSec - rule.Window.Seconds()
	member := strconv.FormatFloat(nowSec, 'f', 9, 64)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(windowStart, 'f', 9, 64))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: nowSec, Member: member})
	pipe.Expire(ctx, key, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateDecision{}, err
	}

	current := int(card.Val()) + 1
	remaining := rule.Limit - current
	if remaining < 0 {
		remaining = 0
	}
	decision := RateDecision{
		Allowed:   current <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
	}
	if decision.Allowed {
		return decision, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rule.Window
	}
	decision.RetryAfter = ttl
	return decision, nil
}

// MemoryLimiter is a token bucket fallback used when no redis is configured
// and as a test double.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
}

// NewMemoryLimiter builds an in-process limiter. A nil now uses time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (RateDecision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return RateDecision{Allowed: true, Limit: rule.Limit}, nil
	}
	rate := float64(rule.Limit) / rule.Window.Seconds()

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{
			tokens: float64(rule.Limit),
			last:   now,
		}
		l.buckets[key] = bucket
	}
	elapsed := now.Sub(bucket.last).Seconds()
	if elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Limit), bucket.tokens+elapsed*rate)
		bucket.last = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		return RateDecision{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: int(bucket.tokens),
		}, nil
	}

	needed := 1 - bucket.tokens
	waitSec := needed / rate
	if waitSec < 0 {
		waitSec = 0
	}
	return RateDecision{
		Allowed:    false,
		Limit:      rule.Limit,
		Remaining:  0,
		RetryAfter: time.Duration(math.Ceil(waitSec*1000.0)) * time.Millisecond,
	}, nil
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*MemoryLimiter)(nil)
)
