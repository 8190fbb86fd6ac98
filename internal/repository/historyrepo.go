package repository

import (
	"context"

	"github.com/and161185/simplidoc/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HistoryRepository reads an identity's processed-document history.
type HistoryRepository interface {
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.HistoryEntry, error)
}
