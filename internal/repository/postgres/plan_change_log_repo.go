// internal/repository/postgres/plan_change_log_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"medconnect-service/internal/domain/subscription"
)

type PlanChangeLogRepository struct {
	db *pgxpool.Pool
}

func NewPlanChangeLogRepository(db *pgxpool.Pool) *PlanChangeLogRepository {
	return &PlanChangeLogRepository{db: db}
}

func (r *PlanChangeLogRepository) Create(ctx context.Context, l *subscription.PlanChangeLog) error {
	query := `
		INSERT INTO plan_change_logs (
			id, user_id, user_name, user_email, from_tier, to_tier,
			changed_by, changed_by_id, reason, change_type, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var metadataJSON []byte
	var err error
	if l.Metadata != nil {
		metadataJSON, err = json.Marshal(l.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, query,
		l.ID, l.UserID, l.UserName, l.UserEmail, l.FromTier, l.ToTier,
		l.ChangedBy, l.ChangedByID, l.Reason, l.Type, metadataJSON, l.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create plan change log: %w", err)
	}
	return nil
}

// List returns logs newest first with the total matching count
func (r *PlanChangeLogRepository) List(ctx context.Context, f subscription.LogFilter) ([]*subscription.PlanChangeLog, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if f.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, f.UserID)
		argPos++
	}
	if f.Type != "" {
		conditions = append(conditions, fmt.Sprintf("change_type = $%d", argPos))
		args = append(args, f.Type)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM plan_change_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plan change logs: %w", err)
	}

	query := `
		SELECT id, user_id, user_name, user_email, from_tier, to_tier,
		       changed_by, changed_by_id, reason, change_type, metadata, created_at
		FROM plan_change_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list plan change logs: %w", err)
	}
	defer rows.Close()

	var out []*subscription.PlanChangeLog
	for rows.Next() {
		var l subscription.PlanChangeLog
		var metadataJSON []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.UserName, &l.UserEmail, &l.FromTier, &l.ToTier,
			&l.ChangedBy, &l.ChangedByID, &l.Reason, &l.Type, &metadataJSON, &l.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan change log: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate plan change logs: %w", err)
	}
	return out, total, nil
}
