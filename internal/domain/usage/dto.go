// internal/domain/usage/dto.go
package usage

import (
	"time"

	"medconnect-service/internal/domain/plan"
)

// Check reasons.
const (
	ReasonUnlimited     = "unlimited"
	ReasonWithinLimits  = "within_limits"
	ReasonLimitExceeded = "monthly_limit_exceeded"
)

// CheckResult is the answer to "may this user perform this action now?".
// Limit and Remaining are plan.Unlimited (-1) for uncapped tiers.
type CheckResult struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
	Current   int64  `json:"current"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`

	// At is when a Consume was counted. Release must use it so the
	// reservation comes back to the period it was taken from.
	At time.Time `json:"-"`
}

// Evaluate applies a limit to a counter value.
func Evaluate(current, limit int64) CheckResult {
	if limit == plan.Unlimited {
		return CheckResult{
			Allowed:   true,
			Reason:    ReasonUnlimited,
			Current:   current,
			Limit:     plan.Unlimited,
			Remaining: plan.Unlimited,
		}
	}
	if current >= limit {
		return CheckResult{
			Allowed:   false,
			Reason:    ReasonLimitExceeded,
			Current:   current,
			Limit:     limit,
			Remaining: 0,
		}
	}
	return CheckResult{
		Allowed:   true,
		Reason:    ReasonWithinLimits,
		Current:   current,
		Limit:     limit,
		Remaining: limit - current,
	}
}

type ActionCounts struct {
	AIMessages   int64 `json:"aiMessages"`
	Appointments int64 `json:"appointments"`
}

type ActionPercentages struct {
	AIMessages   int `json:"aiMessages"`
	Appointments int `json:"appointments"`
}

// Summary is the dashboard view of the current monthly period.
type Summary struct {
	SubscriptionTier  plan.Tier         `json:"subscriptionTier"`
	CurrentUsage      ActionCounts      `json:"currentUsage"`
	Limits            plan.Limits       `json:"limits"`
	Remaining         ActionCounts      `json:"remaining"`
	UsagePercentage   ActionPercentages `json:"usagePercentage"`
	HasUnlimitedUsage bool              `json:"hasUnlimitedUsage"`
	NeedsUpgrade      bool              `json:"needsUpgrade"`
	Period            string            `json:"period"`
}

// NewSummary derives a Summary from a monthly record and the tier's plan.
func NewSummary(p plan.Plan, rec *Record) *Summary {
	ai, appt := rec.Usage.AIMessages, rec.Usage.Appointments
	lim := p.Limits

	s := &Summary{
		SubscriptionTier: p.ID,
		CurrentUsage:     ActionCounts{AIMessages: ai, Appointments: appt},
		Limits:           lim,
		Remaining: ActionCounts{
			AIMessages:   plan.Remaining(ai, lim.AIMessages),
			Appointments: plan.Remaining(appt, lim.AppointmentsPerMonth),
		},
		UsagePercentage: ActionPercentages{
			AIMessages:   plan.UsagePercentage(ai, lim.AIMessages),
			Appointments: plan.UsagePercentage(appt, lim.AppointmentsPerMonth),
		},
		HasUnlimitedUsage: p.IsUnlimited(),
		Period:            rec.DateKey,
	}
	s.NeedsUpgrade = atLimit(lim, ai, appt)
	return s
}

// atLimit reports whether either gated counter would be denied by Evaluate.
// Percentages are rounded, so they cannot decide this.
func atLimit(lim plan.Limits, ai, appt int64) bool {
	return !Evaluate(ai, lim.AIMessages).Allowed || !Evaluate(appt, lim.AppointmentsPerMonth).Allowed
}

// PeriodView is one record rendered against the limits in effect.
type PeriodView struct {
	Usage             Counters          `json:"usage"`
	Limits            plan.Limits       `json:"limits"`
	Remaining         ActionCounts      `json:"remaining"`
	Percentage        ActionPercentages `json:"percentage"`
	HasExceededLimits bool              `json:"hasExceededLimits"`
	Period            string            `json:"period"`
	LastReset         *string           `json:"lastReset,omitempty"`
}

func NewPeriodView(lim plan.Limits, rec *Record) PeriodView {
	ai, appt := rec.Usage.AIMessages, rec.Usage.Appointments
	v := PeriodView{
		Usage:  rec.Usage,
		Limits: lim,
		Remaining: ActionCounts{
			AIMessages:   plan.Remaining(ai, lim.AIMessages),
			Appointments: plan.Remaining(appt, lim.AppointmentsPerMonth),
		},
		Percentage: ActionPercentages{
			AIMessages:   plan.UsagePercentage(ai, lim.AIMessages),
			Appointments: plan.UsagePercentage(appt, lim.AppointmentsPerMonth),
		},
		Period: rec.DateKey,
	}
	v.HasExceededLimits = atLimit(lim, ai, appt)
	if rec.LastReset != nil {
		ts := rec.LastReset.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.LastReset = &ts
	}
	return v
}

// CurrentUsage is the response of GET /usage/current.
type CurrentUsage struct {
	SubscriptionTier  plan.Tier  `json:"subscriptionTier"`
	HasUnlimitedUsage bool       `json:"hasUnlimitedUsage"`
	Monthly           PeriodView `json:"monthly"`
	Daily             PeriodView `json:"daily"`
}

// History is the response of GET /usage/history.
type History struct {
	Period  PeriodType `json:"period"`
	History []*Record  `json:"history"`
	Total   int        `json:"total"`
}

// HistoryQuery binds the history query string.
type HistoryQuery struct {
	Period string `form:"period"`
	Limit  int    `form:"limit"`
}

// AnalyticsQuery binds the admin analytics query string.
type AnalyticsQuery struct {
	Period string `form:"period"`
	Days   int    `form:"days"`
}

// ResetRequest is the body of POST /usage/reset/:userId.
type ResetRequest struct {
	Period string `json:"period"`
}

// ResetResponse is returned after an admin reset.
type ResetResponse struct {
	Message string  `json:"message"`
	Usage   *Record `json:"usage"`
}

// LimitExceeded is the payload of a 429 from the gate middleware.
type LimitExceeded struct {
	Reason          string `json:"reason"`
	Current         int64  `json:"current"`
	Limit           int64  `json:"limit"`
	Remaining       int64  `json:"remaining"`
	UpgradeRequired bool   `json:"upgradeRequired"`
	UpgradeURL      string `json:"upgradeUrl"`
}
