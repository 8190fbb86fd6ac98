package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/simplidoc/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HistoryRepo implements HistoryRepository over the documents table.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Recent returns at most limit documents for the user, newest first.
func (r *HistoryRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		return []model.HistoryEntry{}, nil
	}
	const q = `
SELECT id, title, created_at
FROM documents
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var e model.HistoryEntry
		if err = rows.Scan(&e.ID, &e.Title, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
