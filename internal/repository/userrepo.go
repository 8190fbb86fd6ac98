// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/simplidoc/internal/model"
	"github.com/gofrs/uuid/v5"
)

// IdentityStore owns identities. Implementations hash passwords themselves
// before committing and must give read-your-writes consistency per identity.
type IdentityStore interface {
	// Create hashes the password and inserts a new identity. Returns errs.ErrAlreadyExists on duplicate email.
	Create(ctx context.Context, in model.NewIdentity) (*model.Identity, error)
	// GetByID loads an identity by ID. Returns errs.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	// GetByEmail loads an identity by (case-insensitive) email. Returns errs.ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*model.Identity, error)
	// CheckPassword compares password against the identity's stored hash.
	CheckPassword(u *model.Identity, password string) bool
	// TouchLastLogin stamps the last-login time.
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// UpdateProfile applies a partial update and returns the stored result.
	UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (*model.Identity, error)
}
