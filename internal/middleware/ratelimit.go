package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

// Rate limit buckets.
const (
	BucketAuth    = "auth"
	BucketAdmin   = "admin"
	BucketDefault = "default"
)

type rateLimiter interface {
	Enabled() bool
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type rateLimitRecorder interface {
	RecordRateLimited(bucket string)
}

// RateLimitRules are per-window request limits. Auth routes are the
// strictest, admin routes next.
type RateLimitRules struct {
	Window  time.Duration
	Auth    int
	Admin   int
	Default int
}

// Bucket classifies path and returns its limit.
func (r RateLimitRules) Bucket(path string) (string, int) {
	switch {
	case strings.Contains(path, "/auth/"):
		return BucketAuth, r.Auth
	case strings.Contains(path, "/admin/"):
		return BucketAdmin, r.Admin
	default:
		return BucketDefault, r.Default
	}
}

// RateLimit counts requests per client address and path in fixed windows.
// When the limiter is unavailable requests pass through.
func RateLimit(limiter rateLimiter, rules RateLimitRules, recorder rateLimitRecorder, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if rules.Window <= 0 {
		rules.Window = time.Minute
	}
	return func(c *gin.Context) {
		if limiter == nil || !limiter.Enabled() {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		bucket, limit := rules.Bucket(path)
		if limit <= 0 {
			c.Next()
			return
		}

		count, reset, err := limiter.Hit(c.Request.Context(), c.ClientIP()+":"+path, rules.Window)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))

		if count > int64(limit) {
			if recorder != nil {
				recorder.RecordRateLimited(bucket)
			}
			c.Header("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			response.Abort(c, appErrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
