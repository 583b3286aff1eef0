// ABOUTME: Request context helpers for propagating authenticated identities
// ABOUTME: Provides WithUser/UserFromContext and WithVault/VaultFromContext

package auth

import (
	"context"

	"github.com/obsidianecho/echo-gateway/internal/store"
)

// userContextKey is the key type for storing the authenticated user.
type userContextKey struct{}

// vaultContextKey is the key type for storing the authenticated vault.
type vaultContextKey struct{}

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the authenticated user, returning nil if not present.
func UserFromContext(ctx context.Context) *store.User {
	user, ok := ctx.Value(userContextKey{}).(*store.User)
	if !ok {
		return nil
	}
	return user
}

// WithVault returns a new context with the authenticated vault attached.
func WithVault(ctx context.Context, vault *store.Vault) context.Context {
	return context.WithValue(ctx, vaultContextKey{}, vault)
}

// VaultFromContext retrieves the authenticated vault, returning nil if not present.
func VaultFromContext(ctx context.Context) *store.Vault {
	vault, ok := ctx.Value(vaultContextKey{}).(*store.Vault)
	if !ok {
		return nil
	}
	return vault
}
