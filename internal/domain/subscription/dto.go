// internal/domain/subscription/dto.go
package subscription

import (
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
)

// UpdateRequest is the body of POST /subscriptions/update.
type UpdateRequest struct {
	Tier            string `json:"tier" binding:"required"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

// CancelRequest is the body of POST /subscriptions/cancel.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type UpdateResult struct {
	Subscription *Subscription  `json:"subscription"`
	Plan         plan.Plan      `json:"plan"`
	Action       HistoryAction  `json:"action"`
	Billing      *BillingRecord `json:"billing,omitempty"`
}

type CancelResult struct {
	Subscription *Subscription `json:"subscription"`
	// AccessUntil is when the paid limits stop applying.
	AccessUntil string `json:"accessUntil"`
}

// Current is the response of GET /subscriptions/current.
type Current struct {
	Subscription   *Subscription    `json:"subscription"`
	Plan           plan.Plan        `json:"plan"`
	EffectiveTier  plan.Tier        `json:"effectiveTier"`
	Usage          usage.PeriodView `json:"usage"`
	BillingHistory []*BillingRecord `json:"billingHistory"`
}

// TierUsageStat is the monthly usage of one tier in the subscription report.
type TierUsageStat struct {
	Tier              plan.Tier `json:"tier"`
	Users             int       `json:"users"`
	TotalAIMessages   int64     `json:"totalAIMessages"`
	TotalAppointments int64     `json:"totalAppointments"`
}

type Revenue struct {
	Monthly  float64               `json:"monthly"`
	Currency string                `json:"currency"`
	ByTier   map[plan.Tier]float64 `json:"byTier"`
}

type AnalyticsSummary struct {
	TotalSubscriptions  int `json:"totalSubscriptions"`
	ActiveSubscriptions int `json:"activeSubscriptions"`
	PaidSubscriptions   int `json:"paidSubscriptions"`
}

// Analytics is the response of GET /subscriptions/analytics.
type Analytics struct {
	Period           string           `json:"period"`
	TierDistribution []TierCount      `json:"tierDistribution"`
	UsageStats       []TierUsageStat  `json:"usageStats"`
	Revenue          Revenue          `json:"revenue"`
	Summary          AnalyticsSummary `json:"summary"`
}

// Admin plan management.

type ChangePlanRequest struct {
	UserID  string `json:"userId" binding:"required"`
	NewTier string `json:"newTier" binding:"required"`
	Reason  string `json:"reason"`
}

type BulkChangeRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1"`
	NewTier string   `json:"newTier" binding:"required"`
	Reason  string   `json:"reason"`
}

type BulkChangeItem struct {
	UserID   string    `json:"userId"`
	Success  bool      `json:"success"`
	FromTier plan.Tier `json:"fromTier,omitempty"`
	ToTier   plan.Tier `json:"toTier,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type BulkChangeSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkChangeResult struct {
	Results []BulkChangeItem  `json:"results"`
	Summary BulkChangeSummary `json:"summary"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type UserList struct {
	Users      []*Subscription `json:"users"`
	Pagination Pagination      `json:"pagination"`
}

type LogList struct {
	Logs       []*PlanChangeLog `json:"logs"`
	Pagination Pagination       `json:"pagination"`
}

// ListQuery binds paging query strings.
type ListQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
	Tier   string `form:"tier"`
	UserID string `form:"userId"`
	Type   string `form:"type"`
}

type Stats struct {
	TierDistribution []TierCount      `json:"tierDistribution"`
	RecentChanges    []*PlanChangeLog `json:"recentChanges"`
	ManualOverrides  int              `json:"manualOverrides"`
	TotalUsers       int              `json:"totalUsers"`
}
