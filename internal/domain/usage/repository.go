// internal/domain/usage/repository.go
package usage

import (
	"context"
	"time"

	"medconnect-service/internal/domain/plan"
)

// ConsumeRequest asks the ledger to count one gated action.
type ConsumeRequest struct {
	UserID  string
	Action  Action
	Channel Channel
	Tier    plan.Tier
	// Limit is the monthly cap in effect, or plan.Unlimited.
	Limit int64
	At    time.Time
}

// ConsumeResult reports the monthly counter after the attempt.
type ConsumeResult struct {
	Allowed bool
	Current int64
}

// Ledger persists per-user, per-period counters.
//
// Consume must be a single atomic conditional increment of the monthly record:
// the counter is raised only if the new value stays within Limit, so parallel
// callers can never push it past the cap. The daily record is bumped alongside
// for reporting and is never gated.
type Ledger interface {
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error)
	// Release undoes a Consume whose action did not complete. Counters never go below zero.
	Release(ctx context.Context, req ConsumeRequest) error

	Get(ctx context.Context, userID string, period PeriodType, dateKey string) (*Record, error)
	History(ctx context.Context, userID string, period PeriodType, limit int) ([]*Record, error)
	Reset(ctx context.Context, userID string, period PeriodType, dateKey string, at time.Time) (*Record, error)
	ListSince(ctx context.Context, period PeriodType, since time.Time) ([]*Record, error)
}
