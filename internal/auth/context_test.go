package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/obsidianecho/echo-gateway/internal/store"
)

func TestUserContextRoundTrip(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))

	user := &store.User{ID: "user-1"}
	ctx := WithUser(context.Background(), user)
	assert.Equal(t, user, UserFromContext(ctx))
}

func TestVaultContextRoundTrip(t *testing.T) {
	assert.Nil(t, VaultFromContext(context.Background()))

	vault := &store.Vault{ID: "vault-1"}
	ctx := WithVault(context.Background(), vault)
	assert.Equal(t, vault, VaultFromContext(ctx))
}
