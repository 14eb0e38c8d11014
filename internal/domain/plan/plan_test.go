package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/internal/domain/plan"
)

func TestParseTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    plan.Tier
		wantErr bool
	}{
		{in: "free", want: plan.TierFree},
		{in: " Pro ", want: plan.TierPro},
		{in: "CLINIC", want: plan.TierClinic},
		{in: "enterprise", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := plan.ParseTier(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTier_RankAndPaid(t *testing.T) {
	t.Parallel()

	assert.Less(t, plan.TierFree.Rank(), plan.TierPro.Rank())
	assert.Less(t, plan.TierPro.Rank(), plan.TierClinic.Rank())
	assert.False(t, plan.TierFree.Paid())
	assert.True(t, plan.TierPro.Paid())
	assert.True(t, plan.TierClinic.Paid())
}

func TestUsagePercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		used  int64
		limit int64
		want  int
	}{
		{name: "unlimited", used: 500, limit: plan.Unlimited, want: 0},
		{name: "nothing used", used: 0, limit: 3, want: 0},
		{name: "one of three rounds", used: 1, limit: 3, want: 33},
		{name: "two of three rounds up", used: 2, limit: 3, want: 67},
		{name: "at limit", used: 3, limit: 3, want: 100},
		{name: "over limit is clamped", used: 7, limit: 3, want: 100},
		{name: "zero limit", used: 0, limit: 0, want: 100},
		{name: "negative usage", used: -2, limit: 3, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, plan.UsagePercentage(tt.used, tt.limit))
		})
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	assert.Equal(t, plan.Unlimited, plan.Remaining(10, plan.Unlimited))
	assert.Equal(t, int64(2), plan.Remaining(1, 3))
	assert.Equal(t, int64(0), plan.Remaining(3, 3))
	assert.Equal(t, int64(0), plan.Remaining(5, 3))
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("default plans", func(t *testing.T) {
		t.Parallel()

		c, err := plan.NewCatalog(plan.DefaultPlans(3, 1))
		require.NoError(t, err)

		plans := c.Plans()
		require.Len(t, plans, 3)
		assert.Equal(t, []plan.Tier{plan.TierFree, plan.TierPro, plan.TierClinic},
			[]plan.Tier{plans[0].ID, plans[1].ID, plans[2].ID})

		free, err := c.Get(plan.TierFree)
		require.NoError(t, err)
		assert.Equal(t, plan.Limits{AIMessages: 3, AppointmentsPerMonth: 1}, free.Limits)
		assert.False(t, free.IsUnlimited())

		pro, err := c.Get(plan.TierPro)
		require.NoError(t, err)
		assert.True(t, pro.IsUnlimited())
		assert.True(t, pro.Popular)
		assert.Equal(t, float64(19), c.Price(plan.TierPro))
		assert.Equal(t, float64(99), c.Price(plan.TierClinic))
	})

	t.Run("free tier must be finite", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewCatalog(plan.DefaultPlans(plan.Unlimited, 1))
		assert.ErrorIs(t, err, plan.ErrInvalidLimits)

		_, err = plan.NewCatalog(plan.DefaultPlans(3, 0))
		assert.ErrorIs(t, err, plan.ErrInvalidLimits)
	})

	t.Run("free tier is required", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewCatalog(plan.DefaultPlans(3, 1)[1:])
		assert.ErrorIs(t, err, plan.ErrPlanNotFound)
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()

		plans := append(plan.DefaultPlans(3, 1), plan.Plan{ID: "gold"})
		_, err := plan.NewCatalog(plans)
		assert.Error(t, err)
	})

	t.Run("get unknown", func(t *testing.T) {
		t.Parallel()

		c, err := plan.NewCatalog(plan.DefaultPlans(3, 1))
		require.NoError(t, err)

		_, err = c.Get("gold")
		assert.ErrorIs(t, err, plan.ErrPlanNotFound)
	})
}
