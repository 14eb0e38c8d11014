package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/domain/usage"
	wstypes "medconnect-service/internal/domain/websocket"
	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/repository/memory"
	service "medconnect-service/internal/service/subscription"
	usageService "medconnect-service/internal/service/usage"
)

var now = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

var patient = subscription.User{ID: "patient-1", Name: "Amina", Email: "amina@example.com"}

type recordingPublisher struct {
	changes []wstypes.SubscriptionChangedData
}

func (p *recordingPublisher) PublishSubscriptionChanged(_ string, data wstypes.SubscriptionChangedData) {
	p.changes = append(p.changes, data)
}

type recordingMailer struct {
	changed   []subscription.HistoryAction
	cancelled int
}

func (m *recordingMailer) SubscriptionChanged(_ context.Context, _ *subscription.Subscription, action subscription.HistoryAction, _ plan.Plan) {
	m.changed = append(m.changed, action)
}

func (m *recordingMailer) SubscriptionCancelled(context.Context, *subscription.Subscription) {
	m.cancelled++
}

type fixture struct {
	subs   *service.SubscriptionService
	usage  *usageService.UsageService
	store  *memory.SubscriptionStore
	pub    *recordingPublisher
	mailer *recordingMailer
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog, err := plan.NewCatalog(plan.DefaultPlans(3, 1))
	require.NoError(t, err)

	clock := now
	tick := func() time.Time { return clock }

	store := memory.NewSubscriptionStore()
	ledger := memory.NewUsageLedger()
	pub := &recordingPublisher{}
	mailer := &recordingMailer{}

	subs := service.NewSubscriptionService(
		store, store.Billing(), store.Logs(), ledger, catalog,
		service.NewSimulatedGateway(zap.NewNop()), zap.NewNop(),
	).WithPublisher(pub).WithMailer(mailer).WithClock(tick)

	us := usageService.NewUsageService(ledger, catalog, subs, zap.NewNop()).WithClock(tick)

	return &fixture{subs: subs, usage: us, store: store, pub: pub, mailer: mailer, clock: &clock}
}

func TestSubscriptionService_CurrentCreatesFree(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	cur, err := f.subs.Current(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, cur.Subscription.Tier)
	assert.Equal(t, subscription.StatusActive, cur.Subscription.Status)
	assert.Equal(t, plan.TierFree, cur.EffectiveTier)
	assert.Equal(t, "amina@example.com", cur.Subscription.UserEmail)
	assert.NotNil(t, cur.BillingHistory)

	history, err := f.subs.History(ctx, patient.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, subscription.ActionCreated, history[0].Action)
}

func TestSubscriptionService_UpgradeLiftsLimitImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// use up the free appointment
	res, err := f.usage.Consume(ctx, patient.ID, usage.ActionAppointment, usage.ChannelNone)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = f.usage.Consume(ctx, patient.ID, usage.ActionAppointment, usage.ChannelNone)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	up, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro", PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, subscription.ActionUpgraded, up.Action)
	assert.Equal(t, plan.TierPro, up.Subscription.Tier)
	assert.True(t, up.Subscription.AutoRenew)
	require.NotNil(t, up.Billing)
	assert.Equal(t, subscription.BillingSucceeded, up.Billing.Status)
	assert.Equal(t, float64(19), up.Billing.Amount)
	require.NotNil(t, up.Subscription.NextPaymentDate)
	assert.Equal(t, now.AddDate(0, 1, 0), *up.Subscription.NextPaymentDate)

	res, err = f.usage.Consume(ctx, patient.ID, usage.ActionAppointment, usage.ChannelNone)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Current, "counters are not reset by an upgrade")

	require.Len(t, f.pub.changes, 1)
	assert.Equal(t, "free", f.pub.changes[0].FromTier)
	assert.Equal(t, "pro", f.pub.changes[0].ToTier)
	assert.Equal(t, []subscription.HistoryAction{subscription.ActionUpgraded}, f.mailer.changed)
}

func TestSubscriptionService_PaymentDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "clinic", PaymentMethodID: service.DeclinedPaymentMethod})
	assert.ErrorIs(t, err, xerrors.ErrPaymentFailed)

	tier, err := f.subs.EffectiveTier(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, tier)

	cur, err := f.subs.Current(ctx, patient)
	require.NoError(t, err)
	require.Len(t, cur.BillingHistory, 1)
	assert.Equal(t, subscription.BillingFailed, cur.BillingHistory[0].Status)

	history, err := f.subs.History(ctx, patient.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, subscription.ActionPaymentFailed, history[0].Action)
	assert.Empty(t, f.pub.changes)
}

func TestSubscriptionService_UpdateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.subs.Update(context.Background(), patient, subscription.UpdateRequest{Tier: "platinum"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)
}

func TestSubscriptionService_DowngradeToFree(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "clinic"})
	require.NoError(t, err)

	down, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "free"})
	require.NoError(t, err)
	assert.Equal(t, subscription.ActionDowngraded, down.Action)
	assert.Nil(t, down.Subscription.NextPaymentDate)
	assert.False(t, down.Subscription.AutoRenew)
	assert.Nil(t, down.Billing)
}

func TestSubscriptionService_Cancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Cancel(ctx, patient, subscription.CancelRequest{})
	assert.ErrorIs(t, err, xerrors.ErrCannotCancelFree)

	_, err = f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)

	out, err := f.subs.Cancel(ctx, patient, subscription.CancelRequest{Reason: "too expensive"})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, out.Subscription.Status)
	assert.Equal(t, "too expensive", out.Subscription.CancelReason)
	assert.Equal(t, now.AddDate(0, 1, 0).Format(time.RFC3339), out.AccessUntil)
	assert.Equal(t, 1, f.mailer.cancelled)

	_, err = f.subs.Cancel(ctx, patient, subscription.CancelRequest{})
	assert.ErrorIs(t, err, xerrors.ErrAlreadyCancelled)

	// paid limits hold until the paid period ends
	tier, err := f.subs.EffectiveTier(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)

	*f.clock = now.AddDate(0, 1, 1)
	tier, err = f.subs.EffectiveTier(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, tier)
}

func TestSubscriptionService_ReactivateCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, patient, subscription.CancelRequest{})
	require.NoError(t, err)

	out, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	assert.Equal(t, subscription.ActionReactivated, out.Action)
	assert.Equal(t, subscription.StatusActive, out.Subscription.Status)
	assert.Nil(t, out.Subscription.CancelledAt)
	assert.Nil(t, out.Subscription.EndDate)
}

func TestSubscriptionService_ExpiredPlanMustBePaidAgain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, patient, subscription.CancelRequest{})
	require.NoError(t, err)

	*f.clock = now.AddDate(0, 2, 0)

	_, err = f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro", PaymentMethodID: service.DeclinedPaymentMethod})
	assert.ErrorIs(t, err, xerrors.ErrPaymentFailed)

	tier, err := f.subs.EffectiveTier(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, tier)

	out, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	assert.Equal(t, subscription.ActionUpgraded, out.Action)
	require.NotNil(t, out.Billing)
	assert.Equal(t, subscription.BillingSucceeded, out.Billing.Status)

	tier, err = f.subs.EffectiveTier(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)
}

func TestSubscriptionService_ExpiredPlanDowngradesToFree(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, patient, subscription.CancelRequest{})
	require.NoError(t, err)

	*f.clock = now.AddDate(0, 2, 0)

	out, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "free"})
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, out.Subscription.Tier)
	assert.Equal(t, subscription.StatusActive, out.Subscription.Status)
}

func TestSubscriptionService_Analytics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	other := subscription.User{ID: "patient-2", Name: "Baraka"}
	_, err := f.subs.Update(ctx, patient, subscription.UpdateRequest{Tier: "pro"})
	require.NoError(t, err)
	_, err = f.subs.Current(ctx, other)
	require.NoError(t, err)
	_, err = f.usage.Consume(ctx, other.ID, usage.ActionAIMessage, usage.ChannelConsultation)
	require.NoError(t, err)

	report, err := f.subs.Analytics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "month", report.Period)
	assert.Equal(t, 2, report.Summary.TotalSubscriptions)
	assert.Equal(t, 1, report.Summary.PaidSubscriptions)
	assert.Equal(t, float64(19), report.Revenue.Monthly)
	require.Len(t, report.UsageStats, 1)
	assert.Equal(t, plan.TierFree, report.UsageStats[0].Tier)
	assert.Equal(t, int64(1), report.UsageStats[0].TotalAIMessages)

	_, err = f.subs.Analytics(ctx, "decade")
	assert.ErrorIs(t, err, xerrors.ErrInvalidPeriod)
}
