// internal/repository/postgres/billing_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"medconnect-service/internal/domain/subscription"
)

type BillingRepository struct {
	db *pgxpool.Pool
}

func NewBillingRepository(db *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) Add(ctx context.Context, b *subscription.BillingRecord) error {
	query := `
		INSERT INTO billing_records (
			id, user_id, tier, amount, currency, status, transaction_id, payment_method_id, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		b.ID, b.UserID, b.Tier, b.Amount, b.Currency, b.Status,
		b.TransactionID, b.PaymentMethodID, b.Description, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add billing record: %w", err)
	}
	return nil
}

// ListByUser returns the most recent charges first
func (r *BillingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*subscription.BillingRecord, error) {
	query := `
		SELECT id, user_id, tier, amount::float8, currency, status, transaction_id, payment_method_id, description, created_at
		FROM billing_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing records: %w", err)
	}
	defer rows.Close()

	var out []*subscription.BillingRecord
	for rows.Next() {
		var b subscription.BillingRecord
		if err := rows.Scan(&b.ID, &b.UserID, &b.Tier, &b.Amount, &b.Currency, &b.Status,
			&b.TransactionID, &b.PaymentMethodID, &b.Description, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
