// internal/domain/usage/entity.go
package usage

import (
	"fmt"
	"time"

	"medconnect-service/internal/domain/plan"
)

// Action is a gated, metered user operation.
type Action string

const (
	ActionAIMessage   Action = "aiMessage"
	ActionAppointment Action = "appointment"
)

// ParseAction validates an action name as it appears in URLs.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionAIMessage, ActionAppointment:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Limit picks the cap for this action out of a plan's limits.
func (a Action) Limit(l plan.Limits) int64 {
	if a == ActionAppointment {
		return l.AppointmentsPerMonth
	}
	return l.AIMessages
}

// Channel tells which AI surface produced a message. Appointments use ChannelNone.
type Channel string

const (
	ChannelNone           Channel = ""
	ChannelConsultation   Channel = "consultation"
	ChannelSymptomChecker Channel = "symptom_checker"
)

// PeriodType is the granularity of a usage record.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodMonthly PeriodType = "monthly"
)

func ParsePeriod(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case PeriodDaily:
		return PeriodDaily, nil
	case PeriodMonthly, "":
		return PeriodMonthly, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Key returns the record key for t: YYYY-MM for monthly, YYYY-MM-DD for daily (UTC).
func (p PeriodType) Key(t time.Time) string {
	t = t.UTC()
	if p == PeriodDaily {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01")
}

// Start returns the first instant of the period containing t (UTC).
func (p PeriodType) Start(t time.Time) time.Time {
	t = t.UTC()
	if p == PeriodDaily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period containing t.
func (p PeriodType) End(t time.Time) time.Time {
	start := p.Start(t)
	if p == PeriodDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 1, 0)
}

// Counters are the metered totals of one record.
type Counters struct {
	AIMessages             int64 `json:"aiMessages" bson:"ai_messages"`
	AIConsultationMessages int64 `json:"aiConsultationMessages" bson:"ai_consultation_messages"`
	SymptomCheckerMessages int64 `json:"symptomCheckerMessages" bson:"symptom_checker_messages"`
	Appointments           int64 `json:"appointments" bson:"appointments"`
}

// Get returns the gated counter for an action.
func (c Counters) Get(a Action) int64 {
	if a == ActionAppointment {
		return c.Appointments
	}
	return c.AIMessages
}

// Record is one user's usage within one period.
type Record struct {
	UserID           string     `json:"userId" bson:"user_id"`
	Period           PeriodType `json:"period" bson:"period"`
	DateKey          string     `json:"dateKey" bson:"date_key"`
	PeriodStart      time.Time  `json:"periodStart" bson:"period_start"`
	SubscriptionTier plan.Tier  `json:"subscriptionTier" bson:"subscription_tier"`
	Usage            Counters   `json:"usage" bson:"usage"`
	LastReset        *time.Time `json:"lastReset,omitempty" bson:"last_reset,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updated_at"`
}

// EmptyRecord is the zero record reported for a period that has no writes yet.
func EmptyRecord(userID string, p PeriodType, t time.Time, tier plan.Tier) *Record {
	return &Record{
		UserID:           userID,
		Period:           p,
		DateKey:          p.Key(t),
		PeriodStart:      p.Start(t),
		SubscriptionTier: tier,
	}
}

// Delta returns the counter increments of one action. AI messages count
// toward the total and toward their channel.
func Delta(a Action, ch Channel) Counters {
	if a == ActionAppointment {
		return Counters{Appointments: 1}
	}
	c := Counters{AIMessages: 1}
	switch ch {
	case ChannelConsultation:
		c.AIConsultationMessages = 1
	case ChannelSymptomChecker:
		c.SymptomCheckerMessages = 1
	}
	return c
}
