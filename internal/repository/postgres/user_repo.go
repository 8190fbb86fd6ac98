package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements IdentityStore using PostgreSQL.
type UserRepo struct {
	db     *DB
	hasher *crypto.Hasher
}

// NewUserRepo constructs a user repository. Passwords are hashed with hasher before insert.
func NewUserRepo(db *DB, hasher *crypto.Hasher) *UserRepo {
	return &UserRepo{db: db, hasher: hasher}
}

const userColumns = `id, email, pwd_hash, name, preferences, created_at, updated_at, last_login_at`

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create hashes the password and inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, in model.NewIdentity) (*model.Identity, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := r.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	prefs := in.Preferences
	if prefs == nil {
		prefs = model.Preferences{}
	}
	rawPrefs, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	u := &model.Identity{
		ID:          id,
		Email:       NormalizeEmail(in.Email),
		PwdHash:     hash,
		Name:        strings.TrimSpace(in.Name),
		Preferences: prefs,
	}

	const q = `
INSERT INTO users (id, email, pwd_hash, name, preferences)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	err = r.db.Pool.QueryRow(ctx, q, u.ID, u.Email, u.PwdHash, u.Name, rawPrefs).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, errs.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, NormalizeEmail(email)))
}

// CheckPassword compares password against the stored bcrypt hash.
func (r *UserRepo) CheckPassword(u *model.Identity, password string) bool {
	if u == nil {
		return false
	}
	return r.hasher.VerifyPassword(password, u.PwdHash)
}

// TouchLastLogin stamps last_login_at.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE users SET last_login_at = $2 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateProfile merges patch into the stored row and returns the result.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (*model.Identity, error) {
	prefs := patch.Preferences
	if prefs == nil {
		prefs = model.Preferences{}
	}
	rawPrefs, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	const q = `
UPDATE users
SET name = COALESCE($2, name), preferences = preferences || $3::jsonb, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns
	return scanUser(r.db.Pool.QueryRow(ctx, q, id, patch.Name, rawPrefs))
}

func scanUser(row pgx.Row) (*model.Identity, error) {
	var (
		u        model.Identity
		rawPrefs []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.PwdHash, &u.Name, &rawPrefs, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Preferences = model.Preferences{}
	if len(rawPrefs) > 0 {
		if err := json.Unmarshal(rawPrefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &u, nil
}
