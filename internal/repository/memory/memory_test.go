package memory

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/and161185/simplidoc/internal/repository"
)

var (
	_ repository.IdentityStore     = (*Users)(nil)
	_ repository.HistoryRepository = (*History)(nil)
)

func newUsers(t *testing.T) *Users {
	t.Helper()
	h, err := crypto.NewHasher(4)
	require.NoError(t, err)
	return NewUsers(h)
}

func TestUsers_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newUsers(t)

	u, err := s.Create(ctx, model.NewIdentity{Email: " A@B.com ", Password: "secret1", Name: "A"})
	require.NoError(t, err)
	require.Equal(t, "a@b.com", u.Email)
	require.NotEqual(t, []byte("secret1"), u.PwdHash)
	require.True(t, s.CheckPassword(u, "secret1"))
	require.False(t, s.CheckPassword(u, "wrong12"))
	require.False(t, s.CheckPassword(nil, "secret1"))

	got, err := s.GetByEmail(ctx, "a@B.COM")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "A", got.Name)

	_, err = s.Create(ctx, model.NewIdentity{Email: "a@b.com", Password: "other12"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = s.GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetByEmail(ctx, "nobody@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newUsers(t)
	u, err := s.Create(ctx, model.NewIdentity{Email: "a@b.com", Password: "secret1", Preferences: model.Preferences{"k": 1}})
	require.NoError(t, err)

	u.Preferences["k"] = 2
	u.Name = "changed"

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Preferences["k"])
	require.Empty(t, got.Name)
}

func TestUsers_TouchAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newUsers(t)
	u, err := s.Create(ctx, model.NewIdentity{Email: "a@b.com", Password: "secret1", Preferences: model.Preferences{"lang": "en"}})
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchLastLogin(ctx, u.ID, at))
	got, _ := s.GetByID(ctx, u.ID)
	require.Equal(t, at, *got.LastLoginAt)

	name := "B"
	upd, err := s.UpdateProfile(ctx, u.ID, model.ProfilePatch{Name: &name, Preferences: model.Preferences{"theme": "dark"}})
	require.NoError(t, err)
	require.Equal(t, "B", upd.Name)
	require.Equal(t, model.Preferences{"lang": "en", "theme": "dark"}, upd.Preferences)

	missing := uuid.Must(uuid.NewV4())
	require.ErrorIs(t, s.TouchLastLogin(ctx, missing, at), errs.ErrNotFound)
	_, err = s.UpdateProfile(ctx, missing, model.ProfilePatch{Name: &name})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_CanceledContext(t *testing.T) {
	s := newUsers(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GetByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHistory_RecentNewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	h := NewHistory()
	uid := uuid.Must(uuid.NewV4())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Add(uid, model.HistoryEntry{ID: uuid.Must(uuid.NewV4()), Title: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	got, err := h.Recent(ctx, uid, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "e", got[0].Title)
	require.Equal(t, "c", got[2].Title)

	got, err = h.Recent(ctx, uid, 0)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = h.Recent(ctx, uuid.Must(uuid.NewV4()), 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
