// ABOUTME: HTTP API handlers for accounts, vaults, and the note queue
// ABOUTME: Maps queue outcomes to status codes: not-found 404, not-claimable 409

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianecho/echo-gateway/internal/auth"
	"github.com/obsidianecho/echo-gateway/internal/queue"
	"github.com/obsidianecho/echo-gateway/internal/store"
)

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the JSON representation of a user. The password hash is
// never serialized.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the JSON response for a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// VaultRequest is the JSON request body for creating or renaming a vault.
type VaultRequest struct {
	Name string `json:"name"`
}

// VaultResponse is the JSON representation of a vault, including its queue
// bearer token (the vault owner needs it to configure clients).
type VaultResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateNoteRequest is the JSON request body for POST /api/notes.
type CreateNoteRequest struct {
	ExternalID string `json:"external_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
}

// ClaimRequest is the JSON request body for POST /api/notes/{id}/claim.
type ClaimRequest struct {
	ClientID string `json:"client_id"`
}

// NoteResponse is the JSON representation of a note.
type NoteResponse struct {
	ID             string `json:"id"`
	VaultID        string `json:"vault_id"`
	ExternalID     string `json:"external_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Content        string `json:"content"`
	State          string `json:"state"`
	ClaimOwner     string `json:"claim_owner,omitempty"`
	ClaimTimestamp string `json:"claim_timestamp,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func vaultToResponse(v *store.Vault) VaultResponse {
	return VaultResponse{
		ID:        v.ID,
		UserID:    v.UserID,
		Name:      v.Name,
		Token:     v.Token,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func noteToResponse(n *store.Note) NoteResponse {
	resp := NoteResponse{
		ID:         n.ID,
		VaultID:    n.VaultID,
		ExternalID: n.ExternalID,
		Title:      n.Title,
		Content:    n.Content,
		State:      n.State,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if n.ClaimOwner != nil {
		resp.ClaimOwner = *n.ClaimOwner
	}
	if n.ClaimTimestamp != nil {
		resp.ClaimTimestamp = n.ClaimTimestamp.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func notesToResponse(notes []*store.Note) []NoteResponse {
	resp := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, noteToResponse(n))
	}
	return resp
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendQueueError maps queue/store error outcomes to HTTP statuses.
// not-claimable is a conflict, not a server failure.
func (g *Gateway) sendQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, store.ErrNotClaimable):
		g.sendJSONError(w, http.StatusConflict, "note not in a claimable state")
	case errors.Is(err, queue.ErrInvalidInput):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		g.logger.Error("queue operation failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleRegister handles POST /api/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.logger.Error("hashing password", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := g.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) || errors.Is(err, store.ErrEmailExists) {
			g.sendJSONError(w, http.StatusConflict, err.Error())
			return
		}
		g.logger.Error("creating user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("registered user", "id", user.ID, "username", user.Username)
	g.sendJSON(w, http.StatusCreated, userToResponse(user))
}

// handleLogin handles POST /api/login, accepting JSON or form-encoded
// credentials (the latter for OAuth2 password-flow clients).
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	if req.Username == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if !g.loginLimiter.Allow(req.Username) {
		g.logger.Warn("login throttled", "username", req.Username)
		g.sendJSONError(w, http.StatusTooManyRequests, "too many failed login attempts, try again later")
		return
	}

	user, err := g.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same bcrypt work so timing doesn't reveal whether
			// the username exists
			auth.DummyCompare(req.Password)
			g.loginLimiter.RecordFailure(req.Username)
			g.sendJSONError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}
		g.logger.Error("looking up user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		g.loginLimiter.RecordFailure(req.Username)
		g.sendJSONError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	g.loginLimiter.Reset(req.Username)

	token, err := g.verifier.Generate(user.ID, g.config.Auth.TokenTTL)
	if err != nil {
		g.logger.Error("generating token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleMe handles GET /api/me.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := auth.UserFromContext(r.Context())
	g.sendJSON(w, http.StatusOK, userToResponse(user))
}

// handleVaults handles GET /api/vaults (list) and POST /api/vaults (create).
func (g *Gateway) handleVaults(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		vaults, err := g.store.ListVaultsByUser(r.Context(), user.ID)
		if err != nil {
			g.logger.Error("listing vaults", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp := make([]VaultResponse, 0, len(vaults))
		for _, v := range vaults {
			resp = append(resp, vaultToResponse(v))
		}
		g.sendJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		var req VaultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Name == "" {
			g.sendJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		now := time.Now().UTC()
		vault := &store.Vault{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Name:      req.Name,
			Token:     "vault_" + uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := g.store.CreateVault(r.Context(), vault); err != nil {
			g.logger.Error("creating vault", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		g.logger.Info("created vault", "id", vault.ID, "user_id", user.ID)
		g.sendJSON(w, http.StatusCreated, vaultToResponse(vault))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVaultByID handles GET/PUT/DELETE /api/vaults/{id}.
func (g *Gateway) handleVaultByID(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	vaultID := strings.TrimPrefix(r.URL.Path, "/api/vaults/")
	if vaultID == "" || strings.Contains(vaultID, "/") {
		g.sendJSONError(w, http.StatusNotFound, "vault not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		vault, err := g.store.GetUserVault(r.Context(), vaultID, user.ID)
		if err != nil {
			g.sendVaultError(w, err)
			return
		}
		g.sendJSON(w, http.StatusOK, vaultToResponse(vault))

	case http.MethodPut:
		var req VaultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Name == "" {
			g.sendJSONError(w, http.StatusBadRequest, "name is required")
			return
		}
		vault, err := g.store.UpdateVaultName(r.Context(), vaultID, user.ID, req.Name)
		if err != nil {
			g.sendVaultError(w, err)
			return
		}
		g.sendJSON(w, http.StatusOK, vaultToResponse(vault))

	case http.MethodDelete:
		if err := g.store.DeleteVault(r.Context(), vaultID, user.ID); err != nil {
			g.sendVaultError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) sendVaultError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "vault not found")
		return
	}
	g.logger.Error("vault operation failed", "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// handleNotes handles POST /api/notes (enqueue) and GET /api/notes (list),
// both scoped to the vault resolved from the bearer token.
func (g *Gateway) handleNotes(w http.ResponseWriter, r *http.Request) {
	vault := auth.VaultFromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		var req CreateNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Content == "" {
			g.sendJSONError(w, http.StatusBadRequest, "content is required")
			return
		}

		note, err := g.queue.Enqueue(r.Context(), queue.EnqueueRequest{
			VaultID:    vault.ID,
			ExternalID: req.ExternalID,
			Title:      req.Title,
			Content:    req.Content,
		})
		if err != nil {
			g.sendQueueError(w, err)
			return
		}
		g.sendJSON(w, http.StatusCreated, noteToResponse(note))

	case http.MethodGet:
		limit := queryInt(r, "limit", 10)
		offset := queryInt(r, "offset", 0)
		state := r.URL.Query().Get("state")

		var notes []*store.Note
		var err error
		if state == "" {
			notes, err = g.queue.List(r.Context(), vault.ID, limit, offset)
		} else {
			notes, err = g.queue.ListByState(r.Context(), vault.ID, state, limit, offset)
		}
		if err != nil {
			g.sendQueueError(w, err)
			return
		}
		g.sendJSON(w, http.StatusOK, notesToResponse(notes))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleNoteRoutes dispatches /api/notes/{id}/claim, /api/notes/{id}/download,
// and /api/notes/{id}/confirm.
func (g *Gateway) handleNoteRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notes/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	noteID, action := parts[0], parts[1]

	switch action {
	case "claim":
		g.handleClaim(w, r, noteID)
	case "download":
		g.handleDownload(w, r, noteID)
	case "confirm":
		g.handleConfirm(w, r, noteID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleClaim handles POST /api/notes/{id}/claim. Exactly one concurrent
// claimant wins; the rest get 409.
func (g *Gateway) handleClaim(w http.ResponseWriter, r *http.Request, noteID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ClientID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "client_id required")
		return
	}

	note, err := g.queue.Claim(r.Context(), noteID, req.ClientID)
	if err != nil {
		g.sendQueueError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, noteToResponse(note))
}

// handleDownload handles GET /api/notes/{id}/download. Notes belonging to a
// different vault are reported as absent, not forbidden, so note IDs can't
// be probed across tenants.
func (g *Gateway) handleDownload(w http.ResponseWriter, r *http.Request, noteID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vault := auth.VaultFromContext(r.Context())

	note, err := g.queue.Fetch(r.Context(), noteID)
	if err != nil {
		g.sendQueueError(w, err)
		return
	}
	if note.VaultID != vault.ID {
		g.sendJSONError(w, http.StatusNotFound, "note not found")
		return
	}
	g.sendJSON(w, http.StatusOK, noteToResponse(note))
}

// handleConfirm handles POST /api/notes/{id}/confirm.
func (g *Gateway) handleConfirm(w http.ResponseWriter, r *http.Request, noteID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	note, err := g.queue.Confirm(r.Context(), noteID)
	if err != nil {
		g.sendQueueError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, noteToResponse(note))
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
