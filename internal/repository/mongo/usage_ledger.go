// internal/repository/mongo/usage_ledger.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
)

const collectionName = "usage_records"

var gatedFields = map[usage.Action]string{
	usage.ActionAIMessage:   "usage.ai_messages",
	usage.ActionAppointment: "usage.appointments",
}

// UsageLedger stores usage records as documents, one per user, period and date key.
type UsageLedger struct {
	coll *mongo.Collection
}

func NewUsageLedger(db *mongo.Database) *UsageLedger {
	return &UsageLedger{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique record key index the upserts rely on.
func (l *UsageLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "period", Value: 1}, {Key: "date_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_period_key"),
		},
		{
			Keys:    bson.D{{Key: "period", Value: 1}, {Key: "period_start", Value: -1}},
			Options: options.Index().SetName("period_start"),
		},
	})
	if err != nil {
		return fmt.Errorf("create usage indexes: %w", err)
	}
	return nil
}

func keyFilter(userID string, period usage.PeriodType, dateKey string) bson.M {
	return bson.M{"user_id": userID, "period": period, "date_key": dateKey}
}

func incDoc(d usage.Counters, sign int64) bson.M {
	return bson.M{
		"usage.ai_messages":              sign * d.AIMessages,
		"usage.ai_consultation_messages": sign * d.AIConsultationMessages,
		"usage.symptom_checker_messages": sign * d.SymptomCheckerMessages,
		"usage.appointments":             sign * d.Appointments,
	}
}

// ensureMonthly creates the monthly document with zero counters if missing. A
// lost race on the unique index means another request created it first.
func (l *UsageLedger) ensureMonthly(ctx context.Context, req usage.ConsumeRequest) error {
	_, err := l.coll.UpdateOne(ctx,
		keyFilter(req.UserID, usage.PeriodMonthly, usage.PeriodMonthly.Key(req.At)),
		bson.M{"$setOnInsert": bson.M{
			"period_start":      usage.PeriodMonthly.Start(req.At),
			"subscription_tier": req.Tier,
			"usage":             usage.Counters{},
			"created_at":        req.At,
			"updated_at":        req.At,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("create monthly usage: %w", err)
	}
	return nil
}

// Consume increments the monthly counter with a single guarded
// FindOneAndUpdate: the filter only matches while the counter is below the
// limit, so the document-level atomicity of the update enforces the cap.
func (l *UsageLedger) Consume(ctx context.Context, req usage.ConsumeRequest) (*usage.ConsumeResult, error) {
	field, ok := gatedFields[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, req.Action)
	}
	monthKey := usage.PeriodMonthly.Key(req.At)

	if req.Limit == 0 {
		current, err := l.current(ctx, req.UserID, monthKey, req.Action)
		if err != nil {
			return nil, err
		}
		return &usage.ConsumeResult{Allowed: false, Current: current}, nil
	}

	if err := l.ensureMonthly(ctx, req); err != nil {
		return nil, err
	}

	filter := keyFilter(req.UserID, usage.PeriodMonthly, monthKey)
	if req.Limit > 0 {
		filter[field] = bson.M{"$lt": req.Limit}
	}
	d := usage.Delta(req.Action, req.Channel)
	update := bson.M{
		"$inc": incDoc(d, 1),
		"$set": bson.M{"subscription_tier": req.Tier, "updated_at": req.At},
	}

	var rec usage.Record
	err := l.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, err := l.current(ctx, req.UserID, monthKey, req.Action)
		if err != nil {
			return nil, err
		}
		return &usage.ConsumeResult{Allowed: false, Current: current}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("increment monthly usage: %w", err)
	}

	_, err = l.coll.UpdateOne(ctx,
		keyFilter(req.UserID, usage.PeriodDaily, usage.PeriodDaily.Key(req.At)),
		bson.M{
			"$inc": incDoc(d, 1),
			"$set": bson.M{"subscription_tier": req.Tier, "updated_at": req.At},
			"$setOnInsert": bson.M{
				"period_start": usage.PeriodDaily.Start(req.At),
				"created_at":   req.At,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		// undo the monthly increment so the caller sees a clean failure
		if _, undoErr := l.coll.UpdateOne(ctx, keyFilter(req.UserID, usage.PeriodMonthly, monthKey),
			bson.M{"$inc": incDoc(d, -1)}); undoErr != nil {
			err = errors.Join(err, undoErr)
		}
		return nil, fmt.Errorf("increment daily usage: %w", err)
	}

	return &usage.ConsumeResult{Allowed: true, Current: rec.Usage.Get(req.Action)}, nil
}

func (l *UsageLedger) current(ctx context.Context, userID, monthKey string, action usage.Action) (int64, error) {
	rec, err := l.Get(ctx, userID, usage.PeriodMonthly, monthKey)
	if errors.Is(err, xerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Usage.Get(action), nil
}

// Release decrements both records. Counters are floored at zero, so a reset
// between Consume and Release cannot drive any of them negative.
func (l *UsageLedger) Release(ctx context.Context, req usage.ConsumeRequest) error {
	if _, ok := gatedFields[req.Action]; !ok {
		return fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, req.Action)
	}
	update := releasePipeline(usage.Delta(req.Action, req.Channel), req.At)

	for _, p := range []usage.PeriodType{usage.PeriodMonthly, usage.PeriodDaily} {
		if _, err := l.coll.UpdateOne(ctx, keyFilter(req.UserID, p, p.Key(req.At)), update); err != nil {
			return fmt.Errorf("release %s usage: %w", p, err)
		}
	}
	return nil
}

// releasePipeline sets every counter touched by d to max(counter - delta, 0).
func releasePipeline(d usage.Counters, at time.Time) mongo.Pipeline {
	set := bson.D{}
	for _, c := range []struct {
		field string
		delta int64
	}{
		{"usage.ai_messages", d.AIMessages},
		{"usage.ai_consultation_messages", d.AIConsultationMessages},
		{"usage.symptom_checker_messages", d.SymptomCheckerMessages},
		{"usage.appointments", d.Appointments},
	} {
		if c.delta == 0 {
			continue
		}
		set = append(set, bson.E{Key: c.field, Value: bson.D{{Key: "$max", Value: bson.A{
			0,
			bson.D{{Key: "$subtract", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$" + c.field, 0}}}, c.delta}}},
		}}}})
	}
	set = append(set, bson.E{Key: "updated_at", Value: at})
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (l *UsageLedger) Get(ctx context.Context, userID string, period usage.PeriodType, dateKey string) (*usage.Record, error) {
	var rec usage.Record
	err := l.coll.FindOne(ctx, keyFilter(userID, period, dateKey)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find usage record: %w", err)
	}
	return &rec, nil
}

func (l *UsageLedger) History(ctx context.Context, userID string, period usage.PeriodType, limit int) ([]*usage.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "period_start", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return l.find(ctx, bson.M{"user_id": userID, "period": period}, opts)
}

func (l *UsageLedger) Reset(ctx context.Context, userID string, period usage.PeriodType, dateKey string, at time.Time) (*usage.Record, error) {
	var rec usage.Record
	err := l.coll.FindOneAndUpdate(ctx,
		keyFilter(userID, period, dateKey),
		bson.M{"$set": bson.M{"usage": usage.Counters{}, "last_reset": at, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reset usage record: %w", err)
	}
	return &rec, nil
}

func (l *UsageLedger) ListSince(ctx context.Context, period usage.PeriodType, since time.Time) ([]*usage.Record, error) {
	return l.find(ctx,
		bson.M{"period": period, "period_start": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "period_start", Value: -1}}),
	)
}

func (l *UsageLedger) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*usage.Record, error) {
	cur, err := l.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	var out []*usage.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode usage records: %w", err)
	}
	return out, nil
}
