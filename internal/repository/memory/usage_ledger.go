// internal/repository/memory/usage_ledger.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
)

type recordKey struct {
	userID  string
	period  usage.PeriodType
	dateKey string
}

// UsageLedger keeps usage records in process memory. One mutex guards every
// record, which makes Consume trivially atomic.
type UsageLedger struct {
	mu      sync.Mutex
	records map[recordKey]*usage.Record
}

func NewUsageLedger() *UsageLedger {
	return &UsageLedger{records: make(map[recordKey]*usage.Record)}
}

func (l *UsageLedger) upsert(userID string, period usage.PeriodType, req usage.ConsumeRequest) *usage.Record {
	k := recordKey{userID, period, period.Key(req.At)}
	rec, ok := l.records[k]
	if !ok {
		rec = usage.EmptyRecord(userID, period, req.At, req.Tier)
		rec.CreatedAt = req.At
		l.records[k] = rec
	}
	return rec
}

func add(c *usage.Counters, d usage.Counters, sign int64) {
	c.AIMessages = max(c.AIMessages+sign*d.AIMessages, 0)
	c.AIConsultationMessages = max(c.AIConsultationMessages+sign*d.AIConsultationMessages, 0)
	c.SymptomCheckerMessages = max(c.SymptomCheckerMessages+sign*d.SymptomCheckerMessages, 0)
	c.Appointments = max(c.Appointments+sign*d.Appointments, 0)
}

func (l *UsageLedger) Consume(_ context.Context, req usage.ConsumeRequest) (*usage.ConsumeResult, error) {
	if _, err := usage.ParseAction(string(req.Action)); err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, req.Action)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := recordKey{req.UserID, usage.PeriodMonthly, usage.PeriodMonthly.Key(req.At)}
	var current int64
	if rec, ok := l.records[k]; ok {
		current = rec.Usage.Get(req.Action)
	}
	if req.Limit >= 0 && current+1 > req.Limit {
		return &usage.ConsumeResult{Allowed: false, Current: current}, nil
	}

	d := usage.Delta(req.Action, req.Channel)
	for _, p := range []usage.PeriodType{usage.PeriodMonthly, usage.PeriodDaily} {
		rec := l.upsert(req.UserID, p, req)
		add(&rec.Usage, d, 1)
		rec.SubscriptionTier = req.Tier
		rec.UpdatedAt = req.At
	}
	return &usage.ConsumeResult{Allowed: true, Current: current + 1}, nil
}

func (l *UsageLedger) Release(_ context.Context, req usage.ConsumeRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d := usage.Delta(req.Action, req.Channel)
	for _, p := range []usage.PeriodType{usage.PeriodMonthly, usage.PeriodDaily} {
		if rec, ok := l.records[recordKey{req.UserID, p, p.Key(req.At)}]; ok {
			add(&rec.Usage, d, -1)
			rec.UpdatedAt = req.At
		}
	}
	return nil
}

func (l *UsageLedger) Get(_ context.Context, userID string, period usage.PeriodType, dateKey string) (*usage.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[recordKey{userID, period, dateKey}]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *UsageLedger) History(_ context.Context, userID string, period usage.PeriodType, limit int) ([]*usage.Record, error) {
	out := l.filter(func(r *usage.Record) bool {
		return r.UserID == userID && r.Period == period
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *UsageLedger) Reset(_ context.Context, userID string, period usage.PeriodType, dateKey string, at time.Time) (*usage.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[recordKey{userID, period, dateKey}]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	rec.Usage = usage.Counters{}
	ts := at
	rec.LastReset = &ts
	rec.UpdatedAt = at
	cp := *rec
	return &cp, nil
}

func (l *UsageLedger) ListSince(_ context.Context, period usage.PeriodType, since time.Time) ([]*usage.Record, error) {
	return l.filter(func(r *usage.Record) bool {
		return r.Period == period && !r.PeriodStart.Before(since)
	}), nil
}

// filter returns copies of matching records, newest period first.
func (l *UsageLedger) filter(keep func(*usage.Record) bool) []*usage.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*usage.Record
	for _, rec := range l.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return out
}
