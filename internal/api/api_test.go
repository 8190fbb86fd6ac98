package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestFromIdentity_NoPasswordOnWire(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	u := model.Identity{ID: id, Email: "a@b.com", PwdHash: []byte("$2a$hash"), Name: "A"}

	b, err := json.Marshal(FromIdentity(u, nil))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, id.String(), m["id"])
	require.Equal(t, map[string]any{}, m["preferences"])
	require.NotContains(t, string(b), "hash")
	require.NotContains(t, m, "history")
	require.NotContains(t, m, "lastLoginAt")
}

func TestFromIdentity_History(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := []model.HistoryEntry{{ID: uuid.Must(uuid.NewV4()), Title: "lease.pdf", CreatedAt: now}}

	out := FromIdentity(model.Identity{Email: "a@b.com"}, h)
	require.Len(t, out.History, 1)
	require.Equal(t, "lease.pdf", out.History[0].Title)
	require.Equal(t, now, out.History[0].CreatedAt)
}

func TestIdentityMerge(t *testing.T) {
	base := Identity{ID: "1", Email: "a@b.com", Name: "A", Preferences: map[string]any{"lang": "en", "theme": "dark"}}

	got := base.Merge(Identity{Name: "B", Preferences: map[string]any{"lang": "fr"}})
	require.Equal(t, "1", got.ID)
	require.Equal(t, "a@b.com", got.Email)
	require.Equal(t, "B", got.Name)
	require.Equal(t, map[string]any{"lang": "fr", "theme": "dark"}, got.Preferences)
	// base untouched
	require.Equal(t, "en", base.Preferences["lang"])
}

func TestErrorBodyShape(t *testing.T) {
	b, err := json.Marshal(ErrorBody{Message: "No token provided", Error: errs.CodeNoToken})
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"No token provided","error":"NO_TOKEN"}`, string(b))
}
