// internal/repository/postgres/usage_ledger.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
)

// gatedColumns whitelists the counter each action is limited on. Column names
// are interpolated into SQL, so they must never come from input.
var gatedColumns = map[usage.Action]string{
	usage.ActionAIMessage:   "ai_messages",
	usage.ActionAppointment: "appointments",
}

const recordColumns = `user_id, period, date_key, period_start, subscription_tier,
	ai_messages, ai_consultation_messages, symptom_checker_messages, appointments,
	last_reset, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*usage.Record, error) {
	var r usage.Record
	err := row.Scan(
		&r.UserID, &r.Period, &r.DateKey, &r.PeriodStart, &r.SubscriptionTier,
		&r.Usage.AIMessages, &r.Usage.AIConsultationMessages, &r.Usage.SymptomCheckerMessages, &r.Usage.Appointments,
		&r.LastReset, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UsageLedger stores usage records in the usage_records table.
type UsageLedger struct {
	db *pgxpool.Pool
}

func NewUsageLedger(db *pgxpool.Pool) *UsageLedger {
	return &UsageLedger{db: db}
}

// Consume raises the monthly counter with one conditional upsert. The WHERE
// clause of ON CONFLICT DO UPDATE runs under the row lock, so concurrent
// requests for the same user and month are serialized by Postgres and the
// counter can never pass the limit.
func (r *UsageLedger) Consume(ctx context.Context, req usage.ConsumeRequest) (*usage.ConsumeResult, error) {
	col, ok := gatedColumns[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, req.Action)
	}

	monthKey := usage.PeriodMonthly.Key(req.At)
	if req.Limit == 0 {
		current, err := r.current(ctx, r.db, req.UserID, monthKey, col)
		if err != nil {
			return nil, err
		}
		return &usage.ConsumeResult{Allowed: false, Current: current}, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	d := usage.Delta(req.Action, req.Channel)

	query := fmt.Sprintf(`
		INSERT INTO usage_records (
			user_id, period, date_key, period_start, subscription_tier,
			ai_messages, ai_consultation_messages, symptom_checker_messages, appointments,
			created_at, updated_at
		) VALUES ($1, 'monthly', $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id, period, date_key) DO UPDATE SET
			ai_messages = usage_records.ai_messages + EXCLUDED.ai_messages,
			ai_consultation_messages = usage_records.ai_consultation_messages + EXCLUDED.ai_consultation_messages,
			symptom_checker_messages = usage_records.symptom_checker_messages + EXCLUDED.symptom_checker_messages,
			appointments = usage_records.appointments + EXCLUDED.appointments,
			subscription_tier = EXCLUDED.subscription_tier,
			updated_at = EXCLUDED.updated_at
		WHERE $10::bigint < 0 OR usage_records.%[1]s + EXCLUDED.%[1]s <= $10::bigint
		RETURNING %[1]s
	`, col)

	var current int64
	err = tx.QueryRow(ctx, query,
		req.UserID, monthKey, usage.PeriodMonthly.Start(req.At), req.Tier,
		d.AIMessages, d.AIConsultationMessages, d.SymptomCheckerMessages, d.Appointments,
		req.At, req.Limit,
	).Scan(&current)

	if errors.Is(err, pgx.ErrNoRows) {
		// the guard rejected the update; report the counter as it stands
		current, err = r.current(ctx, tx, req.UserID, monthKey, col)
		if err != nil {
			return nil, err
		}
		return &usage.ConsumeResult{Allowed: false, Current: current}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment monthly usage: %w", err)
	}

	dailyQuery := `
		INSERT INTO usage_records (
			user_id, period, date_key, period_start, subscription_tier,
			ai_messages, ai_consultation_messages, symptom_checker_messages, appointments,
			created_at, updated_at
		) VALUES ($1, 'daily', $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id, period, date_key) DO UPDATE SET
			ai_messages = usage_records.ai_messages + EXCLUDED.ai_messages,
			ai_consultation_messages = usage_records.ai_consultation_messages + EXCLUDED.ai_consultation_messages,
			symptom_checker_messages = usage_records.symptom_checker_messages + EXCLUDED.symptom_checker_messages,
			appointments = usage_records.appointments + EXCLUDED.appointments,
			subscription_tier = EXCLUDED.subscription_tier,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, dailyQuery,
		req.UserID, usage.PeriodDaily.Key(req.At), usage.PeriodDaily.Start(req.At), req.Tier,
		d.AIMessages, d.AIConsultationMessages, d.SymptomCheckerMessages, d.Appointments,
		req.At,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment daily usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit usage: %w", err)
	}
	return &usage.ConsumeResult{Allowed: true, Current: current}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *UsageLedger) current(ctx context.Context, q querier, userID, monthKey, col string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM usage_records
		WHERE user_id = $1 AND period = 'monthly' AND date_key = $2
	`, col)

	var current int64
	err := q.QueryRow(ctx, query, userID, monthKey).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read monthly usage: %w", err)
	}
	return current, nil
}

// Release decrements the monthly and daily records, flooring at zero.
func (r *UsageLedger) Release(ctx context.Context, req usage.ConsumeRequest) error {
	if _, ok := gatedColumns[req.Action]; !ok {
		return fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, req.Action)
	}
	d := usage.Delta(req.Action, req.Channel)

	query := `
		UPDATE usage_records SET
			ai_messages = GREATEST(ai_messages - $4, 0),
			ai_consultation_messages = GREATEST(ai_consultation_messages - $5, 0),
			symptom_checker_messages = GREATEST(symptom_checker_messages - $6, 0),
			appointments = GREATEST(appointments - $7, 0),
			updated_at = NOW()
		WHERE user_id = $1 AND (
			(period = 'monthly' AND date_key = $2) OR
			(period = 'daily' AND date_key = $3)
		)
	`
	_, err := r.db.Exec(ctx, query,
		req.UserID, usage.PeriodMonthly.Key(req.At), usage.PeriodDaily.Key(req.At),
		d.AIMessages, d.AIConsultationMessages, d.SymptomCheckerMessages, d.Appointments,
	)
	if err != nil {
		return fmt.Errorf("failed to release usage: %w", err)
	}
	return nil
}

func (r *UsageLedger) Get(ctx context.Context, userID string, period usage.PeriodType, dateKey string) (*usage.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM usage_records
		WHERE user_id = $1 AND period = $2 AND date_key = $3
	`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID, period, dateKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find usage record: %w", err)
	}
	return rec, nil
}

// History returns the user's most recent records of a period type.
func (r *UsageLedger) History(ctx context.Context, userID string, period usage.PeriodType, limit int) ([]*usage.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM usage_records
		WHERE user_id = $1 AND period = $2
		ORDER BY period_start DESC
		LIMIT $3
	`
	return r.list(ctx, query, userID, period, limit)
}

// Reset zeroes a record and stamps last_reset.
func (r *UsageLedger) Reset(ctx context.Context, userID string, period usage.PeriodType, dateKey string, at time.Time) (*usage.Record, error) {
	query := `
		UPDATE usage_records SET
			ai_messages = 0,
			ai_consultation_messages = 0,
			symptom_checker_messages = 0,
			appointments = 0,
			last_reset = $4,
			updated_at = $4
		WHERE user_id = $1 AND period = $2 AND date_key = $3
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID, period, dateKey, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset usage record: %w", err)
	}
	return rec, nil
}

func (r *UsageLedger) ListSince(ctx context.Context, period usage.PeriodType, since time.Time) ([]*usage.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM usage_records
		WHERE period = $1 AND period_start >= $2
		ORDER BY period_start DESC
	`
	return r.list(ctx, query, period, since)
}

func (r *UsageLedger) list(ctx context.Context, query string, args ...any) ([]*usage.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var out []*usage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return out, nil
}
