// internal/service/usage/usage_service.go
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
	wstypes "medconnect-service/internal/domain/websocket"
	xerrors "medconnect-service/internal/pkg/errors"
)

const (
	DefaultHistoryLimit  = 12
	MaxHistoryLimit      = 100
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 366

	UpgradeURL = "/pricing"
)

// TierResolver returns the tier whose limits apply to a user right now.
type TierResolver interface {
	EffectiveTier(ctx context.Context, userID string) (plan.Tier, error)
}

// ProfileLookup resolves display names for reports.
type ProfileLookup interface {
	Profile(ctx context.Context, userID string) (name, email string, err error)
}

// Publisher pushes live updates to connected clients.
type Publisher interface {
	PublishUsage(userID string, summary interface{})
	PublishLimitReached(userID string, data wstypes.LimitReachedData)
}

// LimitNotifier is told the moment a user is denied a gated action.
type LimitNotifier interface {
	LimitReached(ctx context.Context, userID string, action usage.Action, current, limit int64)
}

// Cache stores JSON encodable values for a while.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

type UsageService struct {
	ledger   usage.Ledger
	catalog  *plan.Catalog
	tiers    TierResolver
	profiles ProfileLookup
	pub      Publisher
	notifier LimitNotifier
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewUsageService(ledger usage.Ledger, catalog *plan.Catalog, tiers TierResolver, logger *zap.Logger) *UsageService {
	return &UsageService{
		ledger:   ledger,
		catalog:  catalog,
		tiers:    tiers,
		cacheTTL: time.Minute,
		logger:   logger,
		now:      time.Now,
	}
}

// WithPublisher enables live pushes.
func (s *UsageService) WithPublisher(p Publisher) *UsageService {
	s.pub = p
	return s
}

func (s *UsageService) WithNotifier(n LimitNotifier) *UsageService {
	s.notifier = n
	return s
}

func (s *UsageService) WithProfiles(p ProfileLookup) *UsageService {
	s.profiles = p
	return s
}

// WithCache caches admin analytics for ttl.
func (s *UsageService) WithCache(c Cache, ttl time.Duration) *UsageService {
	s.cache = c
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// WithClock replaces time.Now.
func (s *UsageService) WithClock(now func() time.Time) *UsageService {
	s.now = now
	return s
}

// planFor returns the user's effective plan.
func (s *UsageService) planFor(ctx context.Context, userID string) (plan.Plan, error) {
	tier, err := s.tiers.EffectiveTier(ctx, userID)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("resolve tier: %w", err)
	}
	p, err := s.catalog.Get(tier)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("%w: %s", xerrors.ErrLimitMissing, tier)
	}
	return p, nil
}

// record loads a period record, reporting a zero record when none exists.
func (s *UsageService) record(ctx context.Context, userID string, period usage.PeriodType, at time.Time, tier plan.Tier) (*usage.Record, error) {
	rec, err := s.ledger.Get(ctx, userID, period, period.Key(at))
	if errors.Is(err, xerrors.ErrNotFound) {
		return usage.EmptyRecord(userID, period, at, tier), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s usage: %w", period, err)
	}
	return rec, nil
}

// Check reports whether the user may perform action now. It never writes.
func (s *UsageService) Check(ctx context.Context, userID string, action usage.Action) (*usage.CheckResult, error) {
	p, err := s.planFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.record(ctx, userID, usage.PeriodMonthly, s.now(), p.ID)
	if err != nil {
		return nil, err
	}

	res := usage.Evaluate(rec.Usage.Get(action), action.Limit(p.Limits))
	return &res, nil
}

// Consume atomically counts one action against the monthly limit. A denied
// attempt leaves the counter untouched and returns Allowed=false.
func (s *UsageService) Consume(ctx context.Context, userID string, action usage.Action, channel usage.Channel) (*usage.CheckResult, error) {
	p, err := s.planFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := action.Limit(p.Limits)
	at := s.now()

	out, err := s.ledger.Consume(ctx, usage.ConsumeRequest{
		UserID:  userID,
		Action:  action,
		Channel: channel,
		Tier:    p.ID,
		Limit:   limit,
		At:      at,
	})
	if err != nil {
		s.logger.Error("usage consume failed",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, fmt.Errorf("consume %s: %w", action, err)
	}

	if !out.Allowed {
		s.logger.Warn("usage limit reached",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.String("tier", string(p.ID)),
			zap.Int64("current", out.Current),
			zap.Int64("limit", limit))

		if s.pub != nil {
			s.pub.PublishLimitReached(userID, wstypes.LimitReachedData{
				Action:     string(action),
				Current:    out.Current,
				Limit:      limit,
				UpgradeURL: UpgradeURL,
			})
		}
		if s.notifier != nil {
			s.notifier.LimitReached(ctx, userID, action, out.Current, limit)
		}

		res := usage.Evaluate(out.Current, limit)
		res.At = at
		return &res, nil
	}

	reason := usage.ReasonWithinLimits
	if limit == plan.Unlimited {
		reason = usage.ReasonUnlimited
	}
	return &usage.CheckResult{
		Allowed:   true,
		Reason:    reason,
		Current:   out.Current,
		Limit:     limit,
		Remaining: plan.Remaining(out.Current, limit),
		At:        at,
	}, nil
}

// Release returns a reservation taken by Consume for an action that failed.
// consumedAt is CheckResult.At, so a request that straddles midnight UTC
// gives the slot back to the day and month it was counted in.
func (s *UsageService) Release(ctx context.Context, userID string, action usage.Action, channel usage.Channel, consumedAt time.Time) error {
	if consumedAt.IsZero() {
		consumedAt = s.now()
	}
	err := s.ledger.Release(ctx, usage.ConsumeRequest{
		UserID:  userID,
		Action:  action,
		Channel: channel,
		At:      consumedAt,
	})
	if err != nil {
		return fmt.Errorf("release %s: %w", action, err)
	}
	return nil
}

// PublishSummary pushes the user's current summary over the websocket.
func (s *UsageService) PublishSummary(ctx context.Context, userID string) {
	if s.pub == nil {
		return
	}
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to build usage summary for push", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.pub.PublishUsage(userID, summary)
}

// Summary is the dashboard view of the current month.
func (s *UsageService) Summary(ctx context.Context, userID string) (*usage.Summary, error) {
	p, err := s.planFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.record(ctx, userID, usage.PeriodMonthly, s.now(), p.ID)
	if err != nil {
		return nil, err
	}
	return usage.NewSummary(p, rec), nil
}

// Current returns the monthly and daily views. Missing records read as zero.
func (s *UsageService) Current(ctx context.Context, userID string) (*usage.CurrentUsage, error) {
	p, err := s.planFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	monthly, err := s.record(ctx, userID, usage.PeriodMonthly, now, p.ID)
	if err != nil {
		return nil, err
	}
	daily, err := s.record(ctx, userID, usage.PeriodDaily, now, p.ID)
	if err != nil {
		return nil, err
	}

	return &usage.CurrentUsage{
		SubscriptionTier:  p.ID,
		HasUnlimitedUsage: p.IsUnlimited(),
		Monthly:           usage.NewPeriodView(p.Limits, monthly),
		Daily:             usage.NewPeriodView(p.Limits, daily),
	}, nil
}

// History lists the user's records, newest first.
func (s *UsageService) History(ctx context.Context, userID string, q usage.HistoryQuery) (*usage.History, error) {
	period, err := usage.ParsePeriod(q.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidPeriod, q.Period)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	records, err := s.ledger.History(ctx, userID, period, limit)
	if err != nil {
		return nil, fmt.Errorf("load usage history: %w", err)
	}
	if records == nil {
		records = []*usage.Record{}
	}
	return &usage.History{Period: period, History: records, Total: len(records)}, nil
}

// Analytics aggregates every user's records over the last days.
func (s *UsageService) Analytics(ctx context.Context, q usage.AnalyticsQuery) (*usage.Analytics, error) {
	period, err := usage.ParsePeriod(q.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidPeriod, q.Period)
	}
	days := q.Days
	if days <= 0 {
		days = DefaultAnalyticsDays
	}
	days = min(days, MaxAnalyticsDays)

	key := fmt.Sprintf("usage:analytics:%s:%d", period, days)
	if s.cache != nil {
		var cached usage.Analytics
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)
	records, err := s.ledger.ListSince(ctx, period, period.Start(since))
	if err != nil {
		return nil, fmt.Errorf("load usage records: %w", err)
	}

	report := usage.Aggregate(period, usage.DateRange{StartDate: since, EndDate: now}, records)

	if s.profiles != nil {
		for i := range report.TopUsers {
			name, email, err := s.profiles.Profile(ctx, report.TopUsers[i].UserID)
			if err != nil {
				continue
			}
			report.TopUsers[i].UserName = name
			report.TopUsers[i].UserEmail = email
		}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

// Reset zeroes the user's record for the current period.
func (s *UsageService) Reset(ctx context.Context, userID string, req usage.ResetRequest) (*usage.ResetResponse, error) {
	period, err := usage.ParsePeriod(req.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidPeriod, req.Period)
	}
	now := s.now()

	rec, err := s.ledger.Reset(ctx, userID, period, period.Key(now), now)
	if err != nil {
		return nil, fmt.Errorf("reset usage: %w", err)
	}

	s.logger.Info("usage reset",
		zap.String("user_id", userID),
		zap.String("period", string(period)),
		zap.String("date_key", rec.DateKey))

	if period == usage.PeriodMonthly {
		s.PublishSummary(ctx, userID)
	}

	return &usage.ResetResponse{
		Message: fmt.Sprintf("Usage reset successfully for %s period", period),
		Usage:   rec,
	}, nil
}
