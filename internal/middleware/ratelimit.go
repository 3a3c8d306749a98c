package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/partyfinder/pkg/errors"
	"github.com/charlesng35/partyfinder/pkg/logger"
	"github.com/charlesng35/partyfinder/pkg/response"
)

// RateStore counts hits per key inside a fixed window. cache.Store satisfies it.
type RateStore interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// UserRateLimit limits requests per (authenticated user, route) within a fixed
// window. It must run after Auth. Store failures let the request through.
func UserRateLimit(store RateStore, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if store == nil || limit <= 0 || window <= 0 || userID == "" {
			c.Next()
			return
		}

		key := "ratelimit:" + scope + ":" + userID
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := int64(ttl.Round(time.Second) / time.Second)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.FormatInt(max(reset, 1), 10))
			response.Abort(c, errors.ErrRateLimit)
			return
		}
		c.Next()
	}
}
