// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token-bucket limiter that protects the
// upstream telemedicine provider quota from a single chatty client. Buckets
// live in an expiring in-process cache, so idle callers are forgotten after
// IdleTTL without a manual sweep. It is not an authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const defaultBucketIdleTTL = 10 * time.Minute

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the user id set by BearerAuth and falls back to the
// client IP ("user:<id>" vs "ip:<addr>").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := c.GetString(ctxKeyUserID); s != "" {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64
	Burst int // <= 0 is coerced to 1
	Key   keyFunc

	// IdleTTL is how long an unused bucket is kept. Defaults to 10 minutes.
	IdleTTL time.Duration
	// ExemptSuffixes lists route suffixes never limited, e.g. the payment
	// gateway webhook whose retries must not be throttled.
	ExemptSuffixes []string
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	keyFn   keyFunc
	exempt  []string
	buckets *gocache.Cache
}

// NewRateLimiter builds a limiter from opts; Key defaults to KeyByUserOrIP.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Key == nil {
		opts.Key = KeyByUserOrIP()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultBucketIdleTTL
	}
	return &RateLimiter{
		limit:   rate.Limit(opts.RPS),
		burst:   opts.Burst,
		keyFn:   opts.Key,
		exempt:  opts.ExemptSuffixes,
		buckets: gocache.New(opts.IdleTTL, opts.IdleTTL),
	}
}

// bucket returns the limiter for key, creating it on first use. Every hit
// pushes the bucket's expiry forward.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		rl.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
		// lost the race to a concurrent request for the same key
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

func (rl *RateLimiter) isExempt(c *gin.Context) bool {
	p := c.FullPath()
	if p == "" {
		p = c.Request.URL.Path
	}
	for _, s := range rl.exempt {
		if s != "" && strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which is served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler enforces the limits. A rejected request gets 429 with Retry-After
// set to the whole seconds until a token is available; function routes get
// the {success, error} envelope, everything else the standard error body.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.isExempt(c) {
			c.Next()
			return
		}

		res := rl.bucket(rl.keyFn(c)).Reserve()
		if res.OK() {
			delay := res.Delay()
			if delay == 0 {
				c.Next()
				return
			}
			res.Cancel()
			c.Header("Retry-After", retryAfter(delay))
		} else {
			c.Header("Retry-After", "1")
		}

		if isEnvelopeRoute(c) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Muitas requisições, tente novamente em instantes",
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited", // handlers.ErrCodeRateLimited
			"message":    "rate limit exceeded",
		})
	}
}

func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
