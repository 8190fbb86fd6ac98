package httpserver

import (
	"context"

	"github.com/and161185/simplidoc/internal/model"
)

type identityKey struct{}

// WithIdentity stores the authenticated, sanitized identity in context.
func WithIdentity(ctx context.Context, u model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, u)
}

// IdentityFromCtx fetches the identity attached by the auth middleware.
func IdentityFromCtx(ctx context.Context) (model.Identity, bool) {
	u, ok := ctx.Value(identityKey{}).(model.Identity)
	return u, ok
}
