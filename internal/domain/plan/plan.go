// internal/domain/plan/plan.go
package plan

import (
	"fmt"
	"math"
	"strings"
)

// Tier is a subscription level that determines feature limits.
type Tier string

const (
	TierFree   Tier = "free"
	TierPro    Tier = "pro"
	TierClinic Tier = "clinic"
)

// Unlimited marks a limit without a cap.
const Unlimited int64 = -1

// Tiers lists every known tier, cheapest first.
var Tiers = []Tier{TierFree, TierPro, TierClinic}

// ParseTier normalizes and validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierClinic:
		return true
	}
	return false
}

// Rank orders tiers by price; used to tell upgrades from downgrades.
func (t Tier) Rank() int {
	switch t {
	case TierPro:
		return 1
	case TierClinic:
		return 2
	default:
		return 0
	}
}

func (t Tier) Paid() bool {
	return t == TierPro || t == TierClinic
}

// Limits holds the per-period caps of a tier.
type Limits struct {
	AIMessages           int64 `json:"aiMessages"`
	AppointmentsPerMonth int64 `json:"appointmentsPerMonth"`
}

// Plan is a catalog entry.
type Plan struct {
	ID       Tier     `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Currency string   `json:"currency"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
	Limits   Limits   `json:"limits"`
	Popular  bool     `json:"popular"`
}

// IsUnlimited reports whether every limit of the plan is uncapped.
func (p Plan) IsUnlimited() bool {
	return p.Limits.AIMessages == Unlimited && p.Limits.AppointmentsPerMonth == Unlimited
}

// UsagePercentage returns used/limit as a rounded percentage clamped to [0, 100].
// Unlimited limits report 0 and a zero limit reports 100.
func UsagePercentage(used, limit int64) int {
	if limit == Unlimited {
		return 0
	}
	if limit <= 0 {
		return 100
	}
	if used <= 0 {
		return 0
	}
	pct := int(math.Round(float64(used) * 100 / float64(limit)))
	return min(pct, 100)
}

// Remaining returns how many units are left, or Unlimited.
func Remaining(used, limit int64) int64 {
	if limit == Unlimited {
		return Unlimited
	}
	return max(limit-used, 0)
}
