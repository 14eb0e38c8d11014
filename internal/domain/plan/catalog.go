// internal/domain/plan/catalog.go
package plan

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound  = errors.New("plan not found")
	ErrInvalidLimits = errors.New("free tier limits must be finite and positive")
)

// Catalog maps tiers to plans. It is immutable after construction.
type Catalog struct {
	plans map[Tier]Plan
}

// DefaultPlans returns the published plans with the given free-tier caps.
func DefaultPlans(freeAIMessages, freeAppointments int64) []Plan {
	return []Plan{
		{
			ID:       TierFree,
			Name:     "Free",
			Price:    0,
			Currency: "USD",
			Interval: "month",
			Features: []string{
				"Basic symptom checker",
				fmt.Sprintf("Limited consultations (%d/month)", freeAIMessages),
				"Health records storage",
			},
			Limits: Limits{AIMessages: freeAIMessages, AppointmentsPerMonth: freeAppointments},
		},
		{
			ID:       TierPro,
			Name:     "Pro",
			Price:    19,
			Currency: "USD",
			Interval: "month",
			Features: []string{
				"Advanced symptom checker",
				"Unlimited consultations",
				"Health records storage",
				"Digital prescriptions",
				"Priority support",
				"Family accounts (up to 4)",
			},
			Limits:  Limits{AIMessages: Unlimited, AppointmentsPerMonth: Unlimited},
			Popular: true,
		},
		{
			ID:       TierClinic,
			Name:     "Clinic",
			Price:    99,
			Currency: "USD",
			Interval: "month",
			Features: []string{
				"Provider dashboard",
				"Patient management",
				"Electronic health records",
				"Prescription management",
				"Analytics & reporting",
				"API access",
				"Unlimited everything",
			},
			Limits: Limits{AIMessages: Unlimited, AppointmentsPerMonth: Unlimited},
		},
	}
}

// NewCatalog validates the plans and builds a catalog. The free tier must exist
// and carry finite positive limits.
func NewCatalog(plans []Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[Tier]Plan, len(plans))}
	for _, p := range plans {
		if !p.ID.Valid() {
			return nil, fmt.Errorf("catalog: unknown tier %q", p.ID)
		}
		p.Features = append([]string(nil), p.Features...)
		c.plans[p.ID] = p
	}

	free, ok := c.plans[TierFree]
	if !ok {
		return nil, fmt.Errorf("catalog: %w", ErrPlanNotFound)
	}
	if free.Limits.AIMessages <= 0 || free.Limits.AppointmentsPerMonth <= 0 {
		return nil, ErrInvalidLimits
	}
	return c, nil
}

// Get returns the plan for a tier.
func (c *Catalog) Get(t Tier) (Plan, error) {
	p, ok := c.plans[t]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, t)
	}
	return p, nil
}

// Plans returns all plans ordered by tier rank.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, t := range Tiers {
		if p, ok := c.plans[t]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Price returns the monthly price of a tier, zero when unknown.
func (c *Catalog) Price(t Tier) float64 {
	return c.plans[t].Price
}
