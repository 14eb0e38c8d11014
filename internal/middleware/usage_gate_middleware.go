// internal/middleware/usage_gate_middleware.go
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/pkg/response"
)

// UsageGate reserves and returns gated actions.
type UsageGate interface {
	Consume(ctx context.Context, userID string, action usage.Action, channel usage.Channel) (*usage.CheckResult, error)
	Release(ctx context.Context, userID string, action usage.Action, channel usage.Channel, consumedAt time.Time) error
	PublishSummary(ctx context.Context, userID string)
}

// UsageGateMiddleware counts one action before the handler runs. The
// increment is the limit check, so parallel requests cannot overshoot the
// cap. A handler that fails (status >= 400 or panic) gets its reservation
// released, leaving the counter equal to the number of completed actions.
// Must run after Auth.
func UsageGateMiddleware(gate UsageGate, action usage.Action, channel usage.Channel, upgradeURL string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			response.Unauthorized(c, "authentication required")
			return
		}
		ctx := c.Request.Context()

		res, err := gate.Consume(ctx, userID, action, channel)
		if err != nil {
			logger.Error("usage gate failed",
				zap.String("user_id", userID),
				zap.String("action", string(action)),
				zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "failed to check usage limit", xerrors.ErrInternal)
			return
		}
		if !res.Allowed {
			response.TooManyRequests(c, "usage limit reached for "+string(action), xerrors.ErrLimitExceeded,
				usage.LimitExceeded{
					Reason:          res.Reason,
					Current:         res.Current,
					Limit:           res.Limit,
					Remaining:       res.Remaining,
					UpgradeRequired: true,
					UpgradeURL:      upgradeURL,
				})
			return
		}

		// the client may be gone by the time the handler returns
		bg := context.WithoutCancel(ctx)
		release := func(reason string) {
			if err := gate.Release(bg, userID, action, channel, res.At); err != nil {
				logger.Error("failed to release usage reservation",
					zap.String("user_id", userID),
					zap.String("action", string(action)),
					zap.String("reason", reason),
					zap.Error(err))
			}
		}

		defer func() {
			if r := recover(); r != nil {
				release("panic")
				panic(r)
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			release("handler failed")
			return
		}
		gate.PublishSummary(bg, userID)
	}
}
