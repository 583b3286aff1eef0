package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianecho/echo-gateway/internal/store"
)

// fakeUserStore holds users by ID.
type fakeUserStore struct {
	users map[string]*store.User
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user *store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

// fakeVaultStore holds vaults by token.
type fakeVaultStore struct {
	vaults map[string]*store.Vault
}

func (f *fakeVaultStore) CreateVault(ctx context.Context, v *store.Vault) error {
	f.vaults[v.Token] = v
	return nil
}

func (f *fakeVaultStore) GetVault(ctx context.Context, id string) (*store.Vault, error) {
	for _, v := range f.vaults {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeVaultStore) GetUserVault(ctx context.Context, id, userID string) (*store.Vault, error) {
	v, err := f.GetVault(ctx, id)
	if err != nil || v.UserID != userID {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeVaultStore) GetVaultByToken(ctx context.Context, token string) (*store.Vault, error) {
	if v, ok := f.vaults[token]; ok {
		return v, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeVaultStore) ListVaultsByUser(ctx context.Context, userID string) ([]*store.Vault, error) {
	return nil, nil
}

func (f *fakeVaultStore) UpdateVaultName(ctx context.Context, id, userID, name string) (*store.Vault, error) {
	return nil, store.ErrNotFound
}

func (f *fakeVaultStore) DeleteVault(ctx context.Context, id, userID string) error {
	return store.ErrNotFound
}

func TestRequireUser(t *testing.T) {
	users := &fakeUserStore{users: map[string]*store.User{
		"user-1": {ID: "user-1", Username: "alice"},
	}}
	verifier := NewJWTVerifier([]byte("secret"))

	var seenUser *store.User
	handler := RequireUser(users, verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		token, err := verifier.Generate("user-1", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seenUser)
		assert.Equal(t, "alice", seenUser.Username)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token for deleted user", func(t *testing.T) {
		token, err := verifier.Generate("user-gone", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireVault(t *testing.T) {
	vaults := &fakeVaultStore{vaults: map[string]*store.Vault{
		"vault_tok-1": {ID: "vault-1", UserID: "user-1", Name: "inbox", Token: "vault_tok-1"},
	}}

	var seenVault *store.Vault
	handler := RequireVault(vaults)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenVault = VaultFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer vault_tok-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seenVault)
		assert.Equal(t, "vault-1", seenVault.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer vault_bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
		req.Header.Set("Authorization", "vault_tok-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
