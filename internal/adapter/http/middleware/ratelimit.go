package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"shipa-backend/config"
	redisStore "shipa-backend/internal/adapter/storage/redis"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Limiter counts requests in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the built-in limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"orders":  {Limit: 30, Window: time.Minute},
		"wallet":  {Limit: 60, Window: time.Minute},
		"payment": {Limit: 20, Window: time.Minute},
		"webhook": {Limit: 300, Window: time.Minute},
		"search":  {Limit: 120, Window: time.Minute},
		"admin":   {Limit: 10, Window: time.Minute},
	}
}

// RateLimitRules overlays the configured groups on the defaults. Entries
// with a non-positive limit or window are ignored.
func RateLimitRules(cfg config.RateLimitConfig) map[string]RateLimitRule {
	rules := DefaultRateLimitRules()
	for group, r := range cfg.Groups {
		if r.Limit <= 0 || r.Window <= 0 {
			continue
		}
		rules[group] = RateLimitRule{Limit: int64(r.Limit), Window: r.Window}
	}
	return rules
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Requests are allowed through when the limiter itself fails.
func RateLimiter(limiter Limiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := max(result.ResetAt-time.Now().Unix(), 1)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys admin traffic by token subject and everything else by client IP.
func extractIdentifier(c *gin.Context) string {
	if sub := c.GetString(CtxAdminSubject); sub != "" {
		return "admin:" + sub
	}
	return c.ClientIP()
}
