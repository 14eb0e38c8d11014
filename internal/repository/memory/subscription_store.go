// internal/repository/memory/subscription_store.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	xerrors "medconnect-service/internal/pkg/errors"
)

// SubscriptionStore implements the subscription, billing and plan change log
// repositories in memory.
type SubscriptionStore struct {
	mu      sync.RWMutex
	subs    map[string]subscription.Subscription
	history []subscription.HistoryEntry
	billing []subscription.BillingRecord
	logs    []subscription.PlanChangeLog
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[string]subscription.Subscription)}
}

func (s *SubscriptionStore) Get(_ context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &sub, nil
}

func (s *SubscriptionStore) Save(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.UserID] = *sub
	return nil
}

func (s *SubscriptionStore) List(_ context.Context, f subscription.ListFilter) ([]*subscription.Subscription, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var matched []*subscription.Subscription
	for _, sub := range s.subs {
		if f.Tier != "" && sub.Tier != f.Tier {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(sub.UserName), search) &&
			!strings.Contains(strings.ToLower(sub.UserEmail), search) &&
			!strings.Contains(strings.ToLower(sub.UserID), search) {
			continue
		}
		cp := sub
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].UserID < matched[j].UserID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, f.Page, f.Limit), len(matched), nil
}

func page[T any](items []T, p, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := (max(p, 1) - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+limit, len(items))]
}

func (s *SubscriptionStore) TierCounts(_ context.Context) ([]subscription.TierCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTier := map[plan.Tier]*subscription.TierCount{}
	for _, sub := range s.subs {
		tc, ok := byTier[sub.Tier]
		if !ok {
			tc = &subscription.TierCount{Tier: sub.Tier}
			byTier[sub.Tier] = tc
		}
		tc.Count++
		if sub.Status == subscription.StatusActive {
			tc.ActiveCount++
		}
	}

	out := []subscription.TierCount{}
	for _, t := range plan.Tiers {
		if tc, ok := byTier[t]; ok {
			out = append(out, *tc)
		}
	}
	return out, nil
}

func (s *SubscriptionStore) CountManualOverrides(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.subs {
		if sub.ManualOverride {
			n++
		}
	}
	return n, nil
}

func (s *SubscriptionStore) AppendHistory(_ context.Context, e *subscription.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, *e)
	return nil
}

// History returns entries newest first.
func (s *SubscriptionStore) History(_ context.Context, userID string, limit int) ([]*subscription.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*subscription.HistoryEntry
	for i := len(s.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.history[i].UserID == userID {
			e := s.history[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

// Billing returns the billing repository view of the store.
func (s *SubscriptionStore) Billing() *BillingStore {
	return (*BillingStore)(s)
}

// Logs returns the plan change log repository view of the store.
func (s *SubscriptionStore) Logs() *PlanChangeLogStore {
	return (*PlanChangeLogStore)(s)
}

type BillingStore SubscriptionStore

func (b *BillingStore) Add(_ context.Context, r *subscription.BillingRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.billing = append(b.billing, *r)
	return nil
}

func (b *BillingStore) ListByUser(_ context.Context, userID string, limit int) ([]*subscription.BillingRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*subscription.BillingRecord
	for i := len(b.billing) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if b.billing[i].UserID == userID {
			r := b.billing[i]
			out = append(out, &r)
		}
	}
	return out, nil
}

type PlanChangeLogStore SubscriptionStore

func (p *PlanChangeLogStore) Create(_ context.Context, l *subscription.PlanChangeLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logs = append(p.logs, *l)
	return nil
}

func (p *PlanChangeLogStore) List(_ context.Context, f subscription.LogFilter) ([]*subscription.PlanChangeLog, int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*subscription.PlanChangeLog
	for i := len(p.logs) - 1; i >= 0; i-- {
		l := p.logs[i]
		if f.UserID != "" && l.UserID != f.UserID {
			continue
		}
		if f.Type != "" && l.Type != f.Type {
			continue
		}
		matched = append(matched, &l)
	}
	return page(matched, f.Page, f.Limit), len(matched), nil
}
