// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medconnect-service/internal/domain/subscription"
	xerrors "medconnect-service/internal/pkg/errors"
)

const subscriptionColumns = `user_id, user_name, user_email, tier, status,
	start_date, end_date, next_payment_date, last_payment_date,
	cancelled_at, cancel_reason, auto_renew, manual_override, payment_method_id,
	last_modified_by, last_modification_reason, created_at, updated_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row scanner) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.UserID, &s.UserName, &s.UserEmail, &s.Tier, &s.Status,
		&s.StartDate, &s.EndDate, &s.NextPaymentDate, &s.LastPaymentDate,
		&s.CancelledAt, &s.CancelReason, &s.AutoRenew, &s.ManualOverride, &s.PaymentMethodID,
		&s.LastModifiedBy, &s.LastModificationReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves a user's subscription
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	s, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return s, nil
}

// Save inserts or replaces the subscription row
func (r *SubscriptionRepository) Save(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (user_id) DO UPDATE SET
			user_name = EXCLUDED.user_name,
			user_email = EXCLUDED.user_email,
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			end_date = EXCLUDED.end_date,
			next_payment_date = EXCLUDED.next_payment_date,
			last_payment_date = EXCLUDED.last_payment_date,
			cancelled_at = EXCLUDED.cancelled_at,
			cancel_reason = EXCLUDED.cancel_reason,
			auto_renew = EXCLUDED.auto_renew,
			manual_override = EXCLUDED.manual_override,
			payment_method_id = EXCLUDED.payment_method_id,
			last_modified_by = EXCLUDED.last_modified_by,
			last_modification_reason = EXCLUDED.last_modification_reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		s.UserID, s.UserName, s.UserEmail, s.Tier, s.Status,
		s.StartDate, s.EndDate, s.NextPaymentDate, s.LastPaymentDate,
		s.CancelledAt, s.CancelReason, s.AutoRenew, s.ManualOverride, s.PaymentMethodID,
		s.LastModifiedBy, s.LastModificationReason, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// List pages through subscriptions matching the filter
func (r *SubscriptionRepository) List(ctx context.Context, f subscription.ListFilter) ([]*subscription.Subscription, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(user_name ILIKE $%d OR user_email ILIKE $%d OR user_id ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+f.Search+"%")
		argPos++
	}
	if f.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argPos))
		args = append(args, f.Tier)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM subscriptions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, total, nil
}

func (r *SubscriptionRepository) TierCounts(ctx context.Context) ([]subscription.TierCount, error) {
	query := `
		SELECT tier, COUNT(*), COUNT(*) FILTER (WHERE status = 'active')
		FROM subscriptions
		GROUP BY tier
		ORDER BY tier
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count tiers: %w", err)
	}
	defer rows.Close()

	counts := []subscription.TierCount{}
	for rows.Next() {
		var tc subscription.TierCount
		if err := rows.Scan(&tc.Tier, &tc.Count, &tc.ActiveCount); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func (r *SubscriptionRepository) CountManualOverrides(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE manual_override`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count manual overrides: %w", err)
	}
	return n, nil
}

// AppendHistory records a lifecycle event
func (r *SubscriptionRepository) AppendHistory(ctx context.Context, e *subscription.HistoryEntry) error {
	query := `
		INSERT INTO subscription_history (
			id, user_id, action, from_tier, to_tier, changed_by, changed_by_id, reason, change_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.UserID, e.Action, e.FromTier, e.ToTier, e.ChangedBy, e.ChangedByID, e.Reason, e.Type, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append subscription history: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) History(ctx context.Context, userID string, limit int) ([]*subscription.HistoryEntry, error) {
	query := `
		SELECT id, user_id, action, from_tier, to_tier, changed_by, changed_by_id, reason, change_type, created_at
		FROM subscription_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription history: %w", err)
	}
	defer rows.Close()

	var out []*subscription.HistoryEntry
	for rows.Next() {
		var e subscription.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.FromTier, &e.ToTier,
			&e.ChangedBy, &e.ChangedByID, &e.Reason, &e.Type, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan subscription history: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
