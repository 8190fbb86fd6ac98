package httpserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/simplidoc/internal/model"
)

func TestWithIdentity_And_IdentityFromCtx(t *testing.T) {
	t.Parallel()

	if _, ok := IdentityFromCtx(context.Background()); ok {
		t.Fatalf("expected no identity in empty ctx")
	}

	want := model.Identity{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com"}
	got, ok := IdentityFromCtx(WithIdentity(context.Background(), want))
	if !ok {
		t.Fatalf("expected identity in ctx")
	}
	if got.ID != want.ID || got.Email != want.Email {
		t.Fatalf("mismatch: got %+v, want %+v", got, want)
	}

	type ctxKey string
	bad := context.WithValue(context.Background(), ctxKey("identity"), want)
	if _, ok := IdentityFromCtx(bad); ok {
		t.Fatalf("expected miss on foreign key")
	}
}
