// internal/domain/subscription/entity.go
package subscription

import (
	"fmt"
	"strings"
	"time"

	"medconnect-service/internal/domain/plan"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusCancelled  Status = "cancelled"
	StatusPastDue    Status = "past_due"
	StatusTrialing   Status = "trialing"
	StatusIncomplete Status = "incomplete"
)

// User identifies the account a subscription belongs to, or the admin acting on one.
type User struct {
	ID    string
	Name  string
	Email string
}

// Subscription is a user's plan. Rows are never deleted; cancellation only
// changes Status.
type Subscription struct {
	UserID                 string     `json:"userId"`
	UserName               string     `json:"userName,omitempty"`
	UserEmail              string     `json:"userEmail,omitempty"`
	Tier                   plan.Tier  `json:"tier"`
	Status                 Status     `json:"status"`
	StartDate              time.Time  `json:"startDate"`
	EndDate                *time.Time `json:"endDate,omitempty"`
	NextPaymentDate        *time.Time `json:"nextPaymentDate,omitempty"`
	LastPaymentDate        *time.Time `json:"lastPaymentDate,omitempty"`
	CancelledAt            *time.Time `json:"cancelledAt,omitempty"`
	CancelReason           string     `json:"cancelReason,omitempty"`
	AutoRenew              bool       `json:"autoRenew"`
	ManualOverride         bool       `json:"manualOverride"`
	PaymentMethodID        string     `json:"-"`
	LastModifiedBy         string     `json:"lastModifiedBy,omitempty"`
	LastModificationReason string     `json:"lastModificationReason,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// NewFree returns the subscription every user starts with.
func NewFree(userID, name, email string, now time.Time) *Subscription {
	return &Subscription{
		UserID:    userID,
		UserName:  name,
		UserEmail: email,
		Tier:      plan.TierFree,
		Status:    StatusActive,
		StartDate: now,
		AutoRenew: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EffectiveTier is the tier whose limits apply at now. A cancelled paid
// subscription keeps its tier until EndDate; inactive or incomplete ones fall
// back to free.
func (s *Subscription) EffectiveTier(now time.Time) plan.Tier {
	if s == nil {
		return plan.TierFree
	}
	switch s.Status {
	case StatusActive, StatusTrialing, StatusPastDue:
		return s.Tier
	case StatusCancelled:
		if s.EndDate != nil && now.Before(*s.EndDate) {
			return s.Tier
		}
		return plan.TierFree
	default:
		return plan.TierFree
	}
}

type HistoryAction string

const (
	ActionCreated          HistoryAction = "created"
	ActionUpgraded         HistoryAction = "upgraded"
	ActionDowngraded       HistoryAction = "downgraded"
	ActionCancelled        HistoryAction = "cancelled"
	ActionReactivated      HistoryAction = "reactivated"
	ActionPaymentFailed    HistoryAction = "payment_failed"
	ActionPaymentSucceeded HistoryAction = "payment_succeeded"
	ActionManualChange     HistoryAction = "manual_change"
)

// ChangeAction classifies a tier move.
func ChangeAction(from, to plan.Tier) HistoryAction {
	switch {
	case from == to:
		return ActionReactivated
	case to.Rank() < from.Rank():
		return ActionDowngraded
	default:
		return ActionUpgraded
	}
}

type ChangeType string

const (
	ChangeManual    ChangeType = "manual"
	ChangePayment   ChangeType = "payment"
	ChangeSystem    ChangeType = "system"
	ChangeBulk      ChangeType = "bulk"
	ChangePromotion ChangeType = "promotion"
)

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeManual, ChangePayment, ChangeSystem, ChangeBulk, ChangePromotion:
		return true
	}
	return false
}

// HistoryEntry is one lifecycle event of a subscription.
type HistoryEntry struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Action      HistoryAction `json:"action"`
	FromTier    plan.Tier     `json:"fromTier,omitempty"`
	ToTier      plan.Tier     `json:"toTier,omitempty"`
	ChangedBy   string        `json:"changedBy,omitempty"`
	ChangedByID string        `json:"changedById,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Type        ChangeType    `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
}

type BillingStatus string

const (
	BillingSucceeded BillingStatus = "succeeded"
	BillingFailed    BillingStatus = "failed"
)

// BillingRecord is one charge attempt.
type BillingRecord struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	Tier            plan.Tier     `json:"tier"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	Status          BillingStatus `json:"status"`
	TransactionID   string        `json:"transactionId,omitempty"`
	PaymentMethodID string        `json:"-"`
	Description     string        `json:"description"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// MinManualReasonLength is the shortest accepted reason for a manual change.
const MinManualReasonLength = 5

// PlanChangeLog is the admin audit trail of tier changes.
type PlanChangeLog struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName,omitempty"`
	UserEmail   string         `json:"userEmail,omitempty"`
	FromTier    plan.Tier      `json:"fromTier"`
	ToTier      plan.Tier      `json:"toTier"`
	ChangedBy   string         `json:"changedBy"`
	ChangedByID string         `json:"changedById"`
	Reason      string         `json:"reason"`
	Type        ChangeType     `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate enforces the audit log rules.
func (l *PlanChangeLog) Validate() error {
	if l.FromTier == l.ToTier {
		return fmt.Errorf("from and to tier are both %q", l.FromTier)
	}
	if !l.Type.Valid() {
		return fmt.Errorf("unknown change type %q", l.Type)
	}
	if l.Type == ChangeManual && len(strings.TrimSpace(l.Reason)) < MinManualReasonLength {
		return fmt.Errorf("manual changes need a reason of at least %d characters", MinManualReasonLength)
	}
	return nil
}
