// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per user and scope.
type RateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

// CheckAPIRateLimit counts one request and reports whether the window still
// allows it. The counter and its expiry are set in one MULTI so a window can
// never be left without a TTL.
func (r *RateLimiter) CheckAPIRateLimit(ctx context.Context, userID, scope string, maxRequests int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%sratelimit:%s:%s", r.prefix, scope, userID)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count request for %s: %w", userID, err)
	}
	return incr.Val() <= maxRequests, nil
}
