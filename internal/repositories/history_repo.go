package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subineru/redmine-stakeholder/internal/models"
)

// HistoryRepo is the append-only audit ledger. Rows are never updated or
// deleted individually; they go away only when their stakeholder cascades.
type HistoryRepo struct {
	pool     *pgxpool.Pool
	pageSize int
}

// NewHistoryRepo builds the ledger over pool. pageSize is the limit applied
// when a caller does not ask for one; non-positive values fall back to 100.
func NewHistoryRepo(pool *pgxpool.Pool, pageSize int) *HistoryRepo {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &HistoryRepo{pool: pool, pageSize: pageSize}
}

func (r *HistoryRepo) Record(ctx context.Context, h *models.History) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO stakeholder_histories (stakeholder_id, user_id, action, field_name, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, h.StakeholderID, h.UserID, h.Action, h.FieldName, h.OldValue, h.NewValue).Scan(&h.ID, &h.CreatedAt)
}

// ListByStakeholder returns the ledger most-recent-first. Rows sharing a
// timestamp (a multi-field update written in one batch) come back in
// insertion order, which the ascending id tiebreak preserves under the
// descending timestamp sort.
func (r *HistoryRepo) ListByStakeholder(ctx context.Context, stakeholderID uuid.UUID, limit, offset int) ([]models.History, error) {
	if limit <= 0 {
		limit = r.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, stakeholder_id, user_id, action, field_name, old_value, new_value, created_at
		FROM stakeholder_histories
		WHERE stakeholder_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, stakeholderID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.History
	for rows.Next() {
		var h models.History
		if err := rows.Scan(&h.ID, &h.StakeholderID, &h.UserID, &h.Action,
			&h.FieldName, &h.OldValue, &h.NewValue, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
