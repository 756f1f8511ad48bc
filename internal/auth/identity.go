package auth

import (
	"context"
	"errors"
)

// ErrNotAuthenticated is returned when an operation runs without a verified identity.
var ErrNotAuthenticated = errors.New("not authenticated")

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity stores the identity in the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireIdentity returns the caller identity or ErrNotAuthenticated.
// Every capsule operation goes through it before touching storage.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrNotAuthenticated
	}
	return id, nil
}

// Authorize checks that the context carries an identity and returns the
// owner ID that store queries must be scoped to.
func Authorize(ctx context.Context) (string, error) {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}
