// internal/service/subscription/admin.go
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	xerrors "medconnect-service/internal/pkg/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	recentLogCount  = 10

	// manualOverrideSpan keeps admin-granted tiers from expiring.
	manualOverrideSpan = 10 * 365 * 24 * time.Hour
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return page, min(limit, MaxPageSize)
}

func validateReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < subscription.MinManualReasonLength {
		return "", xerrors.ErrReasonRequired
	}
	return reason, nil
}

// ListUsers pages through subscriptions for the admin console.
func (s *SubscriptionService) ListUsers(ctx context.Context, q subscription.ListQuery) (*subscription.UserList, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	f := subscription.ListFilter{Page: page, Limit: limit, Search: strings.TrimSpace(q.Search)}
	if q.Tier != "" {
		t, err := plan.ParseTier(q.Tier)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidTier, q.Tier)
		}
		f.Tier = t
	}

	subs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []*subscription.Subscription{}
	}
	return &subscription.UserList{Users: subs, Pagination: subscription.NewPagination(page, limit, total)}, nil
}

// ChangeUserPlan sets a user's tier without payment and records who did it.
func (s *SubscriptionService) ChangeUserPlan(ctx context.Context, admin subscription.User, req subscription.ChangePlanRequest) (*subscription.PlanChangeLog, error) {
	reason, err := validateReason(req.Reason)
	if err != nil {
		return nil, err
	}
	tier, err := plan.ParseTier(req.NewTier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidTier, req.NewTier)
	}
	return s.applyManualChange(ctx, admin, req.UserID, tier, reason, subscription.ChangeManual, nil)
}

func (s *SubscriptionService) applyManualChange(
	ctx context.Context,
	admin subscription.User,
	userID string,
	tier plan.Tier,
	reason string,
	kind subscription.ChangeType,
	meta map[string]any,
) (*subscription.PlanChangeLog, error) {
	sub, err := s.repo.Get(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		sub = subscription.NewFree(userID, "", "", s.now())
	} else if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub.Tier == tier {
		return nil, xerrors.ErrSameTier
	}

	now := s.now()
	from := sub.Tier
	end := now.Add(manualOverrideSpan)

	entry := &subscription.PlanChangeLog{
		ID:          ulid.Make().String(),
		UserID:      userID,
		UserName:    sub.UserName,
		UserEmail:   sub.UserEmail,
		FromTier:    from,
		ToTier:      tier,
		ChangedBy:   admin.Name,
		ChangedByID: admin.ID,
		Reason:      reason,
		Type:        kind,
		Timestamp:   now,
		Metadata: map[string]any{
			"previousStatus":    string(sub.Status),
			"previousAutoRenew": sub.AutoRenew,
			"adminEmail":        admin.Email,
		},
	}
	for k, v := range meta {
		entry.Metadata[k] = v
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	sub.Tier = tier
	sub.Status = subscription.StatusActive
	sub.ManualOverride = true
	sub.AutoRenew = false
	sub.EndDate = &end
	sub.NextPaymentDate = nil
	sub.CancelledAt = nil
	sub.CancelReason = ""
	sub.LastModifiedBy = admin.ID
	sub.LastModificationReason = reason
	sub.UpdatedAt = now

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write plan change log", zap.String("user_id", userID), zap.Error(err))
	}
	s.history(ctx, &subscription.HistoryEntry{
		UserID:      userID,
		Action:      subscription.ActionManualChange,
		FromTier:    from,
		ToTier:      tier,
		ChangedBy:   admin.Name,
		ChangedByID: admin.ID,
		Reason:      reason,
		Type:        kind,
		Timestamp:   now,
	})

	s.logger.Info("plan changed by admin",
		zap.String("user_id", userID),
		zap.String("admin_id", admin.ID),
		zap.String("from", string(from)),
		zap.String("to", string(tier)),
		zap.String("type", string(kind)))

	s.announce(ctx, sub, from, subscription.ChangeAction(from, tier))
	return entry, nil
}

// BulkChangePlans applies one tier to many users. Per-user failures are
// reported in the result and do not stop the batch.
func (s *SubscriptionService) BulkChangePlans(ctx context.Context, admin subscription.User, req subscription.BulkChangeRequest) (*subscription.BulkChangeResult, error) {
	if len(req.UserIDs) == 0 {
		return nil, fmt.Errorf("%w: userIds must not be empty", xerrors.ErrInvalidInput)
	}
	reason, err := validateReason(req.Reason)
	if err != nil {
		return nil, err
	}
	tier, err := plan.ParseTier(req.NewTier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidTier, req.NewTier)
	}

	out := &subscription.BulkChangeResult{Results: make([]subscription.BulkChangeItem, 0, len(req.UserIDs))}
	meta := map[string]any{"bulkOperation": true, "batchSize": len(req.UserIDs)}
	for _, id := range req.UserIDs {
		item := subscription.BulkChangeItem{UserID: id}
		entry, err := s.applyManualChange(ctx, admin, id, tier, reason, subscription.ChangeBulk, meta)
		if err != nil {
			item.Error = err.Error()
			out.Summary.Failed++
		} else {
			item.Success = true
			item.FromTier = entry.FromTier
			item.ToTier = entry.ToTier
			out.Summary.Successful++
		}
		out.Results = append(out.Results, item)
	}
	out.Summary.Total = len(req.UserIDs)
	return out, nil
}

// PlanChangeLogs pages through the admin audit trail, newest first.
func (s *SubscriptionService) PlanChangeLogs(ctx context.Context, q subscription.ListQuery) (*subscription.LogList, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	f := subscription.LogFilter{Page: page, Limit: limit, UserID: q.UserID}
	if q.Type != "" {
		t := subscription.ChangeType(q.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown change type %q", xerrors.ErrInvalidInput, q.Type)
		}
		f.Type = t
	}

	logs, total, err := s.logs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list plan changes: %w", err)
	}
	if logs == nil {
		logs = []*subscription.PlanChangeLog{}
	}
	return &subscription.LogList{Logs: logs, Pagination: subscription.NewPagination(page, limit, total)}, nil
}

func (s *SubscriptionService) Stats(ctx context.Context) (*subscription.Stats, error) {
	counts, err := s.repo.TierCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tiers: %w", err)
	}
	recent, _, err := s.logs.List(ctx, subscription.LogFilter{Page: 1, Limit: recentLogCount})
	if err != nil {
		return nil, fmt.Errorf("list plan changes: %w", err)
	}
	overrides, err := s.repo.CountManualOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("count overrides: %w", err)
	}

	st := &subscription.Stats{
		TierDistribution: counts,
		RecentChanges:    recent,
		ManualOverrides:  overrides,
	}
	if st.RecentChanges == nil {
		st.RecentChanges = []*subscription.PlanChangeLog{}
	}
	for _, c := range counts {
		st.TotalUsers += c.Count
	}
	return st, nil
}

// History returns a user's subscription lifecycle events, newest first.
func (s *SubscriptionService) History(ctx context.Context, userID string, limit int) ([]*subscription.HistoryEntry, error) {
	_, limit = normalizePage(1, limit)
	entries, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if entries == nil {
		entries = []*subscription.HistoryEntry{}
	}
	return entries, nil
}
