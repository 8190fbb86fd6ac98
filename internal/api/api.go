// Package api holds the JSON bodies exchanged between the HTTP server and its clients.
package api

import (
	"time"

	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/model"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ProfileRequest is the body of PATCH /auth/me.
type ProfileRequest struct {
	Name        *string        `json:"name,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// History is a processed document as shown to its owner.
type History struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the sanitized identity sent over the wire. It has no password field.
type Identity struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Preferences map[string]any `json:"preferences"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	History     []History      `json:"history,omitempty"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Identity     Identity   `json:"identity"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	Token string `json:"token"`
}

// IdentityResponse is returned by GET and PATCH /auth/me.
type IdentityResponse struct {
	Identity Identity `json:"identity"`
}

// MessageResponse is a plain acknowledgment.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Message string    `json:"message"`
	Error   errs.Code `json:"error"`
}

// FromIdentity converts a domain identity to its wire form. The password hash is never copied.
func FromIdentity(u model.Identity, history []model.HistoryEntry) Identity {
	u = u.Sanitized()
	prefs := map[string]any(u.Preferences)
	if prefs == nil {
		prefs = map[string]any{}
	}
	out := Identity{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Preferences: prefs,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
	for _, h := range history {
		out.History = append(out.History, History{ID: h.ID.String(), Title: h.Title, CreatedAt: h.CreatedAt})
	}
	return out
}

// Merge applies a partial identity onto i. Empty strings, nil maps and zero
// times in p leave the corresponding fields of i untouched; preference keys are merged.
func (i Identity) Merge(p Identity) Identity {
	if p.ID != "" {
		i.ID = p.ID
	}
	if p.Email != "" {
		i.Email = p.Email
	}
	if p.Name != "" {
		i.Name = p.Name
	}
	if p.Preferences != nil {
		merged := make(map[string]any, len(i.Preferences)+len(p.Preferences))
		for k, v := range i.Preferences {
			merged[k] = v
		}
		for k, v := range p.Preferences {
			merged[k] = v
		}
		i.Preferences = merged
	}
	if !p.CreatedAt.IsZero() {
		i.CreatedAt = p.CreatedAt
	}
	if !p.UpdatedAt.IsZero() {
		i.UpdatedAt = p.UpdatedAt
	}
	if p.LastLoginAt != nil {
		i.LastLoginAt = p.LastLoginAt
	}
	if p.History != nil {
		i.History = p.History
	}
	return i
}

// StatusResponse is returned by GET /auth/status.
type StatusResponse struct {
	Authenticated bool      `json:"authenticated"`
	Identity      *Identity `json:"identity,omitempty"`
}
