// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/domain/usage"
	wstypes "medconnect-service/internal/domain/websocket"
	xerrors "medconnect-service/internal/pkg/errors"
)

const billingHistoryLimit = 12

// Publisher pushes subscription changes to connected clients.
type Publisher interface {
	PublishSubscriptionChanged(userID string, data wstypes.SubscriptionChangedData)
}

// Mailer sends subscription receipts.
type Mailer interface {
	SubscriptionChanged(ctx context.Context, sub *subscription.Subscription, action subscription.HistoryAction, p plan.Plan)
	SubscriptionCancelled(ctx context.Context, sub *subscription.Subscription)
}

type SubscriptionService struct {
	repo    subscription.Repository
	billing subscription.BillingRepository
	logs    subscription.PlanChangeLogRepository
	ledger  usage.Ledger
	catalog *plan.Catalog
	gateway PaymentGateway
	pub     Publisher
	mailer  Mailer
	logger  *zap.Logger
	now     func() time.Time
}

func NewSubscriptionService(
	repo subscription.Repository,
	billing subscription.BillingRepository,
	logs subscription.PlanChangeLogRepository,
	ledger usage.Ledger,
	catalog *plan.Catalog,
	gateway PaymentGateway,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		billing: billing,
		logs:    logs,
		ledger:  ledger,
		catalog: catalog,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *SubscriptionService) WithPublisher(p Publisher) *SubscriptionService {
	s.pub = p
	return s
}

func (s *SubscriptionService) WithMailer(m Mailer) *SubscriptionService {
	s.mailer = m
	return s
}

// WithClock replaces time.Now.
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

// Plans returns the public catalog.
func (s *SubscriptionService) Plans() []plan.Plan {
	return s.catalog.Plans()
}

// EffectiveTier implements the usage service's tier lookup. Users without a
// subscription row are on the free tier.
func (s *SubscriptionService) EffectiveTier(ctx context.Context, userID string) (plan.Tier, error) {
	sub, err := s.repo.Get(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return plan.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return sub.EffectiveTier(s.now()), nil
}

// Profile returns the name and email stored with the user's subscription.
func (s *SubscriptionService) Profile(ctx context.Context, userID string) (string, string, error) {
	sub, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return sub.UserName, sub.UserEmail, nil
}

// getOrCreate loads the user's subscription, creating the free one on first use.
func (s *SubscriptionService) getOrCreate(ctx context.Context, u subscription.User) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, u.ID)
	if err == nil {
		if (u.Name != "" && u.Name != sub.UserName) || (u.Email != "" && u.Email != sub.UserEmail) {
			if u.Name != "" {
				sub.UserName = u.Name
			}
			if u.Email != "" {
				sub.UserEmail = u.Email
			}
			if err := s.repo.Save(ctx, sub); err != nil {
				return nil, fmt.Errorf("refresh subscription profile: %w", err)
			}
		}
		return sub, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	now := s.now()
	sub = subscription.NewFree(u.ID, u.Name, u.Email, now)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	s.history(ctx, &subscription.HistoryEntry{
		UserID:    u.ID,
		Action:    subscription.ActionCreated,
		ToTier:    plan.TierFree,
		Type:      subscription.ChangeSystem,
		Timestamp: now,
	})
	return sub, nil
}

// history appends an entry; a failed audit write never fails the mutation.
func (s *SubscriptionService) history(ctx context.Context, e *subscription.HistoryEntry) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if err := s.repo.AppendHistory(ctx, e); err != nil {
		s.logger.Error("failed to append subscription history",
			zap.String("user_id", e.UserID),
			zap.String("action", string(e.Action)),
			zap.Error(err))
	}
}

func (s *SubscriptionService) announce(ctx context.Context, sub *subscription.Subscription, from plan.Tier, action subscription.HistoryAction) {
	if s.pub != nil {
		s.pub.PublishSubscriptionChanged(sub.UserID, wstypes.SubscriptionChangedData{
			FromTier: string(from),
			ToTier:   string(sub.Tier),
			Status:   string(sub.Status),
			Action:   string(action),
		})
	}
	if s.mailer == nil {
		return
	}
	if action == subscription.ActionCancelled {
		s.mailer.SubscriptionCancelled(ctx, sub)
		return
	}
	if p, err := s.catalog.Get(sub.Tier); err == nil {
		s.mailer.SubscriptionChanged(ctx, sub, action, p)
	}
}

// Current returns the subscription with this month's usage and billing history.
func (s *SubscriptionService) Current(ctx context.Context, u subscription.User) (*subscription.Current, error) {
	sub, err := s.getOrCreate(ctx, u)
	if err != nil {
		return nil, err
	}
	now := s.now()
	eff := sub.EffectiveTier(now)

	stored, err := s.catalog.Get(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrLimitMissing, sub.Tier)
	}
	effective, err := s.catalog.Get(eff)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrLimitMissing, eff)
	}

	rec, err := s.ledger.Get(ctx, u.ID, usage.PeriodMonthly, usage.PeriodMonthly.Key(now))
	if errors.Is(err, xerrors.ErrNotFound) {
		rec = usage.EmptyRecord(u.ID, usage.PeriodMonthly, now, eff)
	} else if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}

	bills, err := s.billing.ListByUser(ctx, u.ID, billingHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load billing history: %w", err)
	}
	if bills == nil {
		bills = []*subscription.BillingRecord{}
	}

	return &subscription.Current{
		Subscription:   sub,
		Plan:           stored,
		EffectiveTier:  eff,
		Usage:          usage.NewPeriodView(effective.Limits, rec),
		BillingHistory: bills,
	}, nil
}

// Update moves the user to a tier. Paid tiers are charged first; the new
// limits apply to the very next check.
func (s *SubscriptionService) Update(ctx context.Context, u subscription.User, req subscription.UpdateRequest) (*subscription.UpdateResult, error) {
	tier, err := plan.ParseTier(req.Tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidTier, req.Tier)
	}
	target, err := s.catalog.Get(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidTier, tier)
	}

	sub, err := s.getOrCreate(ctx, u)
	if err != nil {
		return nil, err
	}
	now := s.now()
	// A cancelled plan past its end date is free again and must be paid for.
	from := sub.EffectiveTier(now)
	result := &subscription.UpdateResult{Plan: target}

	switch {
	case tier == from && tier == sub.Tier:
		result.Action = subscription.ActionReactivated
		sub.Status = subscription.StatusActive
		sub.AutoRenew = tier.Paid()
		sub.CancelledAt = nil
		sub.CancelReason = ""
		if !sub.ManualOverride {
			sub.EndDate = nil
		}

	case tier == plan.TierFree:
		result.Action = subscription.ActionDowngraded
		sub.Tier = plan.TierFree
		sub.Status = subscription.StatusActive
		sub.AutoRenew = false
		sub.NextPaymentDate = nil
		sub.EndDate = nil
		sub.CancelledAt = nil
		sub.CancelReason = ""
		sub.ManualOverride = false

	default:
		charge, err := s.gateway.Charge(ctx, ChargeRequest{
			UserID:          u.ID,
			Tier:            tier,
			Amount:          target.Price,
			Currency:        target.Currency,
			PaymentMethodID: req.PaymentMethodID,
		})
		if err != nil {
			s.logger.Warn("subscription payment failed",
				zap.String("user_id", u.ID),
				zap.String("tier", string(tier)),
				zap.Error(err))
			s.recordBilling(ctx, &subscription.BillingRecord{
				UserID:          u.ID,
				Tier:            tier,
				Amount:          target.Price,
				Currency:        target.Currency,
				Status:          subscription.BillingFailed,
				PaymentMethodID: req.PaymentMethodID,
				Description:     fmt.Sprintf("%s plan, first month", target.Name),
				CreatedAt:       now,
			})
			s.history(ctx, &subscription.HistoryEntry{
				UserID:      u.ID,
				Action:      subscription.ActionPaymentFailed,
				FromTier:    from,
				ToTier:      tier,
				ChangedByID: u.ID,
				Reason:      err.Error(),
				Type:        subscription.ChangePayment,
				Timestamp:   now,
			})
			return nil, fmt.Errorf("%w: %v", xerrors.ErrPaymentFailed, err)
		}

		bill := &subscription.BillingRecord{
			UserID:          u.ID,
			Tier:            tier,
			Amount:          target.Price,
			Currency:        target.Currency,
			Status:          subscription.BillingSucceeded,
			TransactionID:   charge.TransactionID,
			PaymentMethodID: req.PaymentMethodID,
			Description:     fmt.Sprintf("%s plan, first month", target.Name),
			CreatedAt:       now,
		}
		s.recordBilling(ctx, bill)
		result.Billing = bill
		s.history(ctx, &subscription.HistoryEntry{
			UserID:      u.ID,
			Action:      subscription.ActionPaymentSucceeded,
			FromTier:    from,
			ToTier:      tier,
			ChangedByID: u.ID,
			Type:        subscription.ChangePayment,
			Timestamp:   now,
		})

		next := now.AddDate(0, 1, 0)
		result.Action = subscription.ChangeAction(from, tier)
		sub.Tier = tier
		sub.Status = subscription.StatusActive
		sub.AutoRenew = true
		sub.LastPaymentDate = &now
		sub.NextPaymentDate = &next
		sub.EndDate = nil
		sub.CancelledAt = nil
		sub.CancelReason = ""
		sub.ManualOverride = false
		if req.PaymentMethodID != "" {
			sub.PaymentMethodID = req.PaymentMethodID
		}
	}

	sub.LastModifiedBy = u.ID
	sub.LastModificationReason = "user request"
	sub.UpdatedAt = now
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.history(ctx, &subscription.HistoryEntry{
		UserID:      u.ID,
		Action:      result.Action,
		FromTier:    from,
		ToTier:      sub.Tier,
		ChangedBy:   u.Name,
		ChangedByID: u.ID,
		Type:        subscription.ChangePayment,
		Timestamp:   now,
	})

	s.logger.Info("subscription updated",
		zap.String("user_id", u.ID),
		zap.String("from", string(from)),
		zap.String("to", string(sub.Tier)),
		zap.String("action", string(result.Action)))

	s.announce(ctx, sub, from, result.Action)

	result.Subscription = sub
	return result, nil
}

func (s *SubscriptionService) recordBilling(ctx context.Context, b *subscription.BillingRecord) {
	b.ID = ulid.Make().String()
	if err := s.billing.Add(ctx, b); err != nil {
		s.logger.Error("failed to record billing", zap.String("user_id", b.UserID), zap.Error(err))
	}
}

// Cancel stops renewal. The paid tier stays in effect until the end of the
// period already paid for; counters are untouched.
func (s *SubscriptionService) Cancel(ctx context.Context, u subscription.User, req subscription.CancelRequest) (*subscription.CancelResult, error) {
	sub, err := s.getOrCreate(ctx, u)
	if err != nil {
		return nil, err
	}
	if sub.Tier == plan.TierFree {
		return nil, xerrors.ErrCannotCancelFree
	}
	if sub.Status == subscription.StatusCancelled {
		return nil, xerrors.ErrAlreadyCancelled
	}

	now := s.now()
	end := usage.PeriodMonthly.End(now)
	if sub.NextPaymentDate != nil && sub.NextPaymentDate.After(now) {
		end = *sub.NextPaymentDate
	}
	reason := req.Reason
	if reason == "" {
		reason = "User requested cancellation"
	}

	sub.Status = subscription.StatusCancelled
	sub.AutoRenew = false
	sub.CancelledAt = &now
	sub.CancelReason = reason
	sub.EndDate = &end
	sub.LastModifiedBy = u.ID
	sub.LastModificationReason = reason
	sub.UpdatedAt = now

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.history(ctx, &subscription.HistoryEntry{
		UserID:      u.ID,
		Action:      subscription.ActionCancelled,
		FromTier:    sub.Tier,
		ToTier:      sub.Tier,
		ChangedBy:   u.Name,
		ChangedByID: u.ID,
		Reason:      reason,
		Type:        subscription.ChangeSystem,
		Timestamp:   now,
	})

	s.logger.Info("subscription cancelled",
		zap.String("user_id", u.ID),
		zap.String("tier", string(sub.Tier)),
		zap.Time("access_until", end))

	s.announce(ctx, sub, sub.Tier, subscription.ActionCancelled)

	return &subscription.CancelResult{
		Subscription: sub,
		AccessUntil:  end.UTC().Format(time.RFC3339),
	}, nil
}

// analyticsSince maps the report period to its first instant.
func analyticsSince(period string, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch period {
	case "", "month":
		return usage.PeriodMonthly.Start(now), nil
	case "week":
		return usage.PeriodDaily.Start(now).AddDate(0, 0, -7), nil
	case "year":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s", xerrors.ErrInvalidPeriod, period)
}

// Analytics reports tier distribution, usage by tier and monthly revenue.
func (s *SubscriptionService) Analytics(ctx context.Context, period string) (*subscription.Analytics, error) {
	since, err := analyticsSince(period, s.now())
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "month"
	}

	counts, err := s.repo.TierCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tiers: %w", err)
	}

	records, err := s.ledger.ListSince(ctx, usage.PeriodMonthly, usage.PeriodMonthly.Start(since))
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}

	byTier := map[plan.Tier]*subscription.TierUsageStat{}
	users := map[plan.Tier]map[string]struct{}{}
	for _, r := range records {
		t := r.SubscriptionTier
		if t == "" {
			t = plan.TierFree
		}
		st, ok := byTier[t]
		if !ok {
			st = &subscription.TierUsageStat{Tier: t}
			byTier[t] = st
			users[t] = map[string]struct{}{}
		}
		users[t][r.UserID] = struct{}{}
		st.TotalAIMessages += r.Usage.AIMessages
		st.TotalAppointments += r.Usage.Appointments
	}

	report := &subscription.Analytics{
		Period:           period,
		TierDistribution: counts,
		UsageStats:       make([]subscription.TierUsageStat, 0, len(byTier)),
		Revenue:          subscription.Revenue{Currency: "USD", ByTier: map[plan.Tier]float64{}},
	}
	for _, t := range plan.Tiers {
		if st, ok := byTier[t]; ok {
			st.Users = len(users[t])
			report.UsageStats = append(report.UsageStats, *st)
		}
	}

	for _, tc := range counts {
		report.Summary.TotalSubscriptions += tc.Count
		report.Summary.ActiveSubscriptions += tc.ActiveCount
		if !tc.Tier.Paid() {
			continue
		}
		report.Summary.PaidSubscriptions += tc.ActiveCount
		amount := float64(tc.ActiveCount) * s.catalog.Price(tc.Tier)
		report.Revenue.ByTier[tc.Tier] = amount
		report.Revenue.Monthly += amount
	}

	return report, nil
}
