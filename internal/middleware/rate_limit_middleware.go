// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/pkg/response"
)

// RateChecker counts requests per user and scope within a window.
type RateChecker interface {
	CheckAPIRateLimit(ctx context.Context, userID, scope string, maxRequests int64, window time.Duration) (bool, error)
}

// RateLimit caps requests per authenticated user. It must run after Auth.
// When the counter store is unavailable requests are let through.
func RateLimit(checker RateChecker, scope string, maxRequests int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			c.Next()
			return
		}

		allowed, err := checker.CheckAPIRateLimit(c.Request.Context(), userID, scope, maxRequests, window)
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("user_id", userID), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.TooManyRequests(c, "too many requests", xerrors.ErrRateLimited)
			return
		}

		c.Next()
	}
}
