package usage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
)

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := usage.ParseAction("aiMessage")
	require.NoError(t, err)
	assert.Equal(t, usage.ActionAIMessage, a)

	a, err = usage.ParseAction("appointment")
	require.NoError(t, err)
	assert.Equal(t, usage.ActionAppointment, a)

	_, err = usage.ParseAction("prescription")
	assert.Error(t, err)
}

func TestPeriodType_Bounds(t *testing.T) {
	t.Parallel()

	// 02:30 on the 1st in UTC+3 is still the 31st in UTC.
	at := time.Date(2025, 2, 1, 2, 30, 0, 0, time.FixedZone("EAT", 3*60*60))

	assert.Equal(t, "2025-01", usage.PeriodMonthly.Key(at))
	assert.Equal(t, "2025-01-31", usage.PeriodDaily.Key(at))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), usage.PeriodMonthly.Start(at))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), usage.PeriodMonthly.End(at))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), usage.PeriodDaily.End(at))
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	p, err := usage.ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, usage.PeriodMonthly, p)

	p, err = usage.ParsePeriod("daily")
	require.NoError(t, err)
	assert.Equal(t, usage.PeriodDaily, p)

	_, err = usage.ParsePeriod("weekly")
	assert.Error(t, err)
}

func TestDelta(t *testing.T) {
	t.Parallel()

	assert.Equal(t, usage.Counters{Appointments: 1}, usage.Delta(usage.ActionAppointment, usage.ChannelNone))
	assert.Equal(t, usage.Counters{AIMessages: 1, AIConsultationMessages: 1},
		usage.Delta(usage.ActionAIMessage, usage.ChannelConsultation))
	assert.Equal(t, usage.Counters{AIMessages: 1, SymptomCheckerMessages: 1},
		usage.Delta(usage.ActionAIMessage, usage.ChannelSymptomChecker))
	assert.Equal(t, usage.Counters{AIMessages: 1}, usage.Delta(usage.ActionAIMessage, usage.ChannelNone))
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current int64
		limit   int64
		want    usage.CheckResult
	}{
		{
			name:    "unlimited",
			current: 40,
			limit:   plan.Unlimited,
			want:    usage.CheckResult{Allowed: true, Reason: usage.ReasonUnlimited, Current: 40, Limit: -1, Remaining: -1},
		},
		{
			name:    "within limits",
			current: 1,
			limit:   3,
			want:    usage.CheckResult{Allowed: true, Reason: usage.ReasonWithinLimits, Current: 1, Limit: 3, Remaining: 2},
		},
		{
			name:    "at limit",
			current: 3,
			limit:   3,
			want:    usage.CheckResult{Allowed: false, Reason: usage.ReasonLimitExceeded, Current: 3, Limit: 3, Remaining: 0},
		},
		{
			name:    "over limit",
			current: 4,
			limit:   3,
			want:    usage.CheckResult{Allowed: false, Reason: usage.ReasonLimitExceeded, Current: 4, Limit: 3, Remaining: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, usage.Evaluate(tt.current, tt.limit))
		})
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	free := plan.DefaultPlans(3, 1)[0]
	pro := plan.DefaultPlans(3, 1)[1]

	t.Run("free user at appointment limit", func(t *testing.T) {
		t.Parallel()

		rec := usage.EmptyRecord("u1", usage.PeriodMonthly, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), plan.TierFree)
		rec.Usage = usage.Counters{AIMessages: 1, Appointments: 1}

		s := usage.NewSummary(free, rec)
		assert.Equal(t, plan.TierFree, s.SubscriptionTier)
		assert.Equal(t, usage.ActionCounts{AIMessages: 1, Appointments: 1}, s.CurrentUsage)
		assert.Equal(t, usage.ActionCounts{AIMessages: 2, Appointments: 0}, s.Remaining)
		assert.Equal(t, usage.ActionPercentages{AIMessages: 33, Appointments: 100}, s.UsagePercentage)
		assert.False(t, s.HasUnlimitedUsage)
		assert.True(t, s.NeedsUpgrade)
		assert.Equal(t, "2025-03", s.Period)
	})

	t.Run("one message left rounds to 100 percent but is still allowed", func(t *testing.T) {
		t.Parallel()

		big := plan.DefaultPlans(200, 5)[0]
		rec := usage.EmptyRecord("u3", usage.PeriodMonthly, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), plan.TierFree)
		rec.Usage = usage.Counters{AIMessages: 199}

		s := usage.NewSummary(big, rec)
		assert.Equal(t, 100, s.UsagePercentage.AIMessages)
		assert.Equal(t, int64(1), s.Remaining.AIMessages)
		assert.True(t, usage.Evaluate(199, big.Limits.AIMessages).Allowed)
		assert.False(t, s.NeedsUpgrade)

		rec.Usage.AIMessages = 200
		assert.True(t, usage.NewSummary(big, rec).NeedsUpgrade)
		assert.True(t, usage.NewPeriodView(big.Limits, rec).HasExceededLimits)
	})

	t.Run("pro user never needs upgrade", func(t *testing.T) {
		t.Parallel()

		rec := usage.EmptyRecord("u2", usage.PeriodMonthly, time.Now(), plan.TierPro)
		rec.Usage = usage.Counters{AIMessages: 1000, Appointments: 50}

		s := usage.NewSummary(pro, rec)
		assert.True(t, s.HasUnlimitedUsage)
		assert.False(t, s.NeedsUpgrade)
		assert.Equal(t, usage.ActionPercentages{}, s.UsagePercentage)
		assert.Equal(t, plan.Unlimited, s.Remaining.AIMessages)
	})
}
