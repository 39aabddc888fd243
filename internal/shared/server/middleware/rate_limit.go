package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"

	// GroupSubmit covers batch submission and model-backed session calls.
	GroupSubmit = "SUBMIT"
	// GroupPolling covers progress reads issued once per second by pollers.
	GroupPolling = "POLLING"

	// pruneThreshold is the bucket count above which refilled buckets are
	// dropped on the next call.
	pruneThreshold = 4096
)

// RateLimitRule is a token bucket refilled at Rate tokens per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// full reports whether a bucket idle for elapsed has refilled completely.
func (r RateLimitRule) full(tokens float64, elapsed time.Duration) bool {
	return tokens+elapsed.Seconds()*r.Rate >= float64(r.Burst)
}

// RateLimitConfig selects a rule per request. Requests whose group has no
// rule pass through.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter holds one token bucket per client and group.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
	rule   RateLimitRule
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		allowed, retryAfter := cfg.Limiter.Allow(c.ClientIP()+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		tooManyRequests(c, group, retryAfter)
	}
}

func tooManyRequests(c *gin.Context, group string, retryAfter time.Duration) {
	retryAfterMs := max(int(retryAfter/time.Millisecond), 1)
	c.Header("Retry-After", strconv.Itoa((retryAfterMs+999)/1000))
	respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
		"group":          group,
		"retry_after_ms": retryAfterMs,
	})
}

// Allow takes one token from the bucket for key. When the bucket is empty it
// returns the wait until a token is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.pruneLocked(now)
		}
		bucket = &rateBucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = bucket
	}
	bucket.rule = rule
	if elapsed := now.Sub(bucket.last); elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Burst), bucket.tokens+elapsed.Seconds()*rule.Rate)
		bucket.last = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0
	}
	waitSec := (1 - bucket.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(waitSec*1000.0)) * time.Millisecond
}

// pruneLocked drops buckets that have refilled since their last use. A new
// bucket starts full, so dropping them changes no decision.
func (l *RateLimiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if b.rule.full(b.tokens, now.Sub(b.last)) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
