// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// Preferences is a free-form per-identity settings bag stored as JSONB.
type Preferences map[string]any

// Identity represents an account stored on the server. The password is never stored in plaintext.
type Identity struct {
	ID          uuid.UUID // PK
	Email       string    // unique, lowercase
	PwdHash     []byte    // bcrypt(password)
	Name        string
	Preferences Preferences
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// Sanitized returns a copy of the identity without the password hash.
func (i Identity) Sanitized() Identity {
	i.PwdHash = nil
	if i.Preferences != nil {
		p := make(Preferences, len(i.Preferences))
		for k, v := range i.Preferences {
			p[k] = v
		}
		i.Preferences = p
	}
	return i
}

// NewIdentity is the input to IdentityStore.Create. Password is plaintext and is
// hashed by the store before it is persisted.
type NewIdentity struct {
	Email       string
	Password    string
	Name        string
	Preferences Preferences
}

// ProfilePatch is a partial identity update. Nil fields are left untouched;
// Preferences keys are merged into the existing bag.
type ProfilePatch struct {
	Name        *string
	Preferences Preferences
}

// HistoryEntry is a processed document in the identity's history.
type HistoryEntry struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
}
