// pkg/client/types.go
package client

import (
	"encoding/json"
	"fmt"

	"medconnect-service/internal/domain/appointment"
	"medconnect-service/internal/domain/assistant"
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/domain/usage"
)

// Wire types shared with the server.
type (
	Action        = usage.Action
	CheckResult   = usage.CheckResult
	UsageSummary  = usage.Summary
	CurrentUsage  = usage.CurrentUsage
	UsageHistory  = usage.History
	Analytics     = usage.Analytics
	ResetResponse = usage.ResetResponse
	LimitExceeded = usage.LimitExceeded

	Plan                  = plan.Plan
	Tier                  = plan.Tier
	CurrentSubscription   = subscription.Current
	UpdateResult          = subscription.UpdateResult
	CancelResult          = subscription.CancelResult
	HistoryEntry          = subscription.HistoryEntry
	SubscriptionAnalytics = subscription.Analytics
	UserList              = subscription.UserList
	LogList               = subscription.LogList
	PlanChangeLog         = subscription.PlanChangeLog
	BulkChangeResult      = subscription.BulkChangeResult
	SubscriptionStats     = subscription.Stats
	ListQuery             = subscription.ListQuery

	ChatReply   = assistant.ChatReply
	Appointment = appointment.Appointment
	BookRequest = appointment.BookRequest
)

const (
	ActionAIMessage   = usage.ActionAIMessage
	ActionAppointment = usage.ActionAppointment

	// Unlimited is the limit and remaining value of uncapped tiers.
	Unlimited = plan.Unlimited
)

// ReasonError is the check reason reported when the check itself failed.
const ReasonError = "error"

// envelope is the body of every API response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// APIError is a non 2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	Data       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("medconnect: %d %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("medconnect: %d %s", e.StatusCode, e.Message)
}

// LimitExceeded decodes the payload of a 429 from a gated endpoint.
func (e *APIError) LimitExceeded() (*LimitExceeded, bool) {
	if e.StatusCode != 429 || len(e.Data) == 0 {
		return nil, false
	}
	var le LimitExceeded
	if err := json.Unmarshal(e.Data, &le); err != nil || le.Reason == "" {
		return nil, false
	}
	return &le, true
}

// Remaining returns what is left of action, or Unlimited.
func Remaining(s *UsageSummary, action Action) int64 {
	switch action {
	case ActionAIMessage:
		return s.Remaining.AIMessages
	case ActionAppointment:
		return s.Remaining.Appointments
	}
	return 0
}

// Percentage returns the backend computed usage percentage of action.
func Percentage(s *UsageSummary, action Action) int {
	switch action {
	case ActionAIMessage:
		return s.UsagePercentage.AIMessages
	case ActionAppointment:
		return s.UsagePercentage.Appointments
	}
	return 0
}

// AtLimit reports whether widgets should disable the action's button.
func AtLimit(s *UsageSummary, action Action) bool {
	limit := action.Limit(s.Limits)
	if limit == Unlimited {
		return false
	}
	switch action {
	case ActionAIMessage:
		return s.CurrentUsage.AIMessages >= limit
	case ActionAppointment:
		return s.CurrentUsage.Appointments >= limit
	}
	return false
}
