// Package memory provides in-memory IdentityStore and HistoryRepository
// implementations for development runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/model"
)

// Users stores identities in memory.
type Users struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]model.Identity
	byEmail map[string]uuid.UUID
	hasher  *crypto.Hasher
	now     func() time.Time
}

// NewUsers creates an empty store hashing passwords with hasher.
func NewUsers(hasher *crypto.Hasher) *Users {
	return &Users{
		byID:    make(map[uuid.UUID]model.Identity),
		byEmail: make(map[string]uuid.UUID),
		hasher:  hasher,
		now:     time.Now,
	}
}

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes the password and stores a new identity.
func (s *Users) Create(ctx context.Context, in model.NewIdentity) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := normalize(in.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, errs.ErrAlreadyExists
	}
	now := s.now().UTC()
	u := model.Identity{
		ID:          id,
		Email:       email,
		PwdHash:     hash,
		Name:        in.Name,
		Preferences: copyPrefs(in.Preferences),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byID[id] = u
	s.byEmail[email] = id
	return clone(u), nil
}

// GetByID loads an identity by ID.
func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(u), nil
}

// GetByEmail loads an identity by email.
func (s *Users) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

// CheckPassword compares password against u's hash.
func (s *Users) CheckPassword(u *model.Identity, password string) bool {
	if u == nil {
		return false
	}
	return s.hasher.VerifyPassword(password, u.PwdHash)
}

// TouchLastLogin stamps the last-login time.
func (s *Users) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.LastLoginAt = &at
	s.byID[id] = u
	return nil
}

// UpdateProfile merges patch into the stored identity.
func (s *Users) UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if len(patch.Preferences) > 0 {
		p := copyPrefs(u.Preferences)
		for k, v := range patch.Preferences {
			p[k] = v
		}
		u.Preferences = p
	}
	u.UpdatedAt = s.now().UTC()
	s.byID[id] = u
	return clone(u), nil
}

// History stores document history entries in memory.
type History struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]model.HistoryEntry
}

// NewHistory creates an empty history store.
func NewHistory() *History {
	return &History{entries: make(map[uuid.UUID][]model.HistoryEntry)}
}

// Add appends an entry to userID's history.
func (h *History) Add(userID uuid.UUID, e model.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[userID] = append(h.entries[userID], e)
}

// Recent returns at most limit entries, newest first.
func (h *History) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	h.mu.Lock()
	out := append([]model.HistoryEntry(nil), h.entries[userID]...)
	h.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyPrefs(p model.Preferences) model.Preferences {
	out := make(model.Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func clone(u model.Identity) *model.Identity {
	u.PwdHash = append([]byte(nil), u.PwdHash...)
	u.Preferences = copyPrefs(u.Preferences)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return &u
}
