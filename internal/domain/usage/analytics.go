// internal/domain/usage/analytics.go
package usage

import (
	"sort"
	"time"

	"medconnect-service/internal/domain/plan"
)

type DateRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// UsageStat groups records by tier and period key.
type UsageStat struct {
	Tier              plan.Tier `json:"tier"`
	Date              string    `json:"date"`
	TotalUsers        int       `json:"totalUsers"`
	TotalAIMessages   int64     `json:"totalAIMessages"`
	TotalAppointments int64     `json:"totalAppointments"`
	AvgAIMessages     float64   `json:"avgAIMessages"`
	AvgAppointments   float64   `json:"avgAppointments"`
}

type TierUsage struct {
	Tier                   plan.Tier `json:"tier"`
	UniqueUsers            int       `json:"uniqueUsers"`
	TotalAIMessages        int64     `json:"totalAIMessages"`
	TotalAppointments      int64     `json:"totalAppointments"`
	AvgAIMessagesPerUser   float64   `json:"avgAIMessagesPerUser"`
	AvgAppointmentsPerUser float64   `json:"avgAppointmentsPerUser"`
}

type TopUser struct {
	UserID            string    `json:"userId"`
	UserName          string    `json:"userName,omitempty"`
	UserEmail         string    `json:"userEmail,omitempty"`
	TotalAIMessages   int64     `json:"totalAIMessages"`
	TotalAppointments int64     `json:"totalAppointments"`
	SubscriptionTier  plan.Tier `json:"subscriptionTier"`
}

type AnalyticsSummary struct {
	TotalRecords int `json:"totalRecords"`
	TotalTiers   int `json:"totalTiers"`
}

// Analytics is the admin usage report.
type Analytics struct {
	Period           PeriodType       `json:"period"`
	DateRange        DateRange        `json:"dateRange"`
	UsageStatistics  []UsageStat      `json:"usageStatistics"`
	TierDistribution []TierUsage      `json:"tierDistribution"`
	TopUsers         []TopUser        `json:"topUsers"`
	Summary          AnalyticsSummary `json:"summary"`
}

// TopUsersLimit caps the top-users table.
const TopUsersLimit = 10

// Aggregate builds the report from raw records. Usage statistics are sorted by
// date descending; top users by AI messages descending.
func Aggregate(period PeriodType, dr DateRange, records []*Record) *Analytics {
	type statKey struct {
		tier plan.Tier
		date string
	}
	stats := map[statKey]*UsageStat{}
	tiers := map[plan.Tier]*TierUsage{}
	tierUsers := map[plan.Tier]map[string]struct{}{}
	users := map[string]*TopUser{}

	for _, r := range records {
		tier := r.SubscriptionTier
		if tier == "" {
			tier = plan.TierFree
		}
		ai, appt := r.Usage.AIMessages, r.Usage.Appointments

		k := statKey{tier, r.DateKey}
		st, ok := stats[k]
		if !ok {
			st = &UsageStat{Tier: tier, Date: r.DateKey}
			stats[k] = st
		}
		st.TotalUsers++
		st.TotalAIMessages += ai
		st.TotalAppointments += appt

		tu, ok := tiers[tier]
		if !ok {
			tu = &TierUsage{Tier: tier}
			tiers[tier] = tu
			tierUsers[tier] = map[string]struct{}{}
		}
		tu.TotalAIMessages += ai
		tu.TotalAppointments += appt
		tierUsers[tier][r.UserID] = struct{}{}

		u, ok := users[r.UserID]
		if !ok {
			// first record seen wins the tier label
			u = &TopUser{UserID: r.UserID, SubscriptionTier: tier}
			users[r.UserID] = u
		}
		u.TotalAIMessages += ai
		u.TotalAppointments += appt
	}

	a := &Analytics{
		Period:           period,
		DateRange:        dr,
		UsageStatistics:  make([]UsageStat, 0, len(stats)),
		TierDistribution: make([]TierUsage, 0, len(tiers)),
		TopUsers:         make([]TopUser, 0, min(len(users), TopUsersLimit)),
	}

	for _, st := range stats {
		st.AvgAIMessages = float64(st.TotalAIMessages) / float64(st.TotalUsers)
		st.AvgAppointments = float64(st.TotalAppointments) / float64(st.TotalUsers)
		a.UsageStatistics = append(a.UsageStatistics, *st)
	}
	sort.Slice(a.UsageStatistics, func(i, j int) bool {
		if a.UsageStatistics[i].Date != a.UsageStatistics[j].Date {
			return a.UsageStatistics[i].Date > a.UsageStatistics[j].Date
		}
		return a.UsageStatistics[i].Tier.Rank() < a.UsageStatistics[j].Tier.Rank()
	})

	for tier, tu := range tiers {
		tu.UniqueUsers = len(tierUsers[tier])
		tu.AvgAIMessagesPerUser = float64(tu.TotalAIMessages) / float64(tu.UniqueUsers)
		tu.AvgAppointmentsPerUser = float64(tu.TotalAppointments) / float64(tu.UniqueUsers)
		a.TierDistribution = append(a.TierDistribution, *tu)
	}
	sort.Slice(a.TierDistribution, func(i, j int) bool {
		return a.TierDistribution[i].Tier.Rank() < a.TierDistribution[j].Tier.Rank()
	})

	top := make([]*TopUser, 0, len(users))
	for _, u := range users {
		top = append(top, u)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalAIMessages != top[j].TotalAIMessages {
			return top[i].TotalAIMessages > top[j].TotalAIMessages
		}
		return top[i].UserID < top[j].UserID
	})
	for i := 0; i < len(top) && i < TopUsersLimit; i++ {
		a.TopUsers = append(a.TopUsers, *top[i])
	}

	a.Summary = AnalyticsSummary{TotalRecords: len(a.UsageStatistics), TotalTiers: len(a.TierDistribution)}
	return a
}
