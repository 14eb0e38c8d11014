// internal/domain/subscription/repository.go
package subscription

import (
	"context"

	"medconnect-service/internal/domain/plan"
)

type ListFilter struct {
	Page   int
	Limit  int
	Search string
	Tier   plan.Tier
}

type LogFilter struct {
	Page   int
	Limit  int
	UserID string
	Type   ChangeType
}

type TierCount struct {
	Tier        plan.Tier `json:"tier"`
	Count       int       `json:"count"`
	ActiveCount int       `json:"activeCount"`
}

type Repository interface {
	Get(ctx context.Context, userID string) (*Subscription, error)
	// Save inserts or replaces the row for s.UserID.
	Save(ctx context.Context, s *Subscription) error
	List(ctx context.Context, f ListFilter) ([]*Subscription, int, error)
	TierCounts(ctx context.Context) ([]TierCount, error)
	CountManualOverrides(ctx context.Context) (int, error)

	AppendHistory(ctx context.Context, e *HistoryEntry) error
	History(ctx context.Context, userID string, limit int) ([]*HistoryEntry, error)
}

type BillingRepository interface {
	Add(ctx context.Context, r *BillingRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*BillingRecord, error)
}

type PlanChangeLogRepository interface {
	Create(ctx context.Context, l *PlanChangeLog) error
	List(ctx context.Context, f LogFilter) ([]*PlanChangeLog, int, error)
}
