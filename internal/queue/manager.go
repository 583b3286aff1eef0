// ABOUTME: Queue manager owning the note delivery lifecycle for a vault
// ABOUTME: Validates input, generates identities, and drives atomic claim/confirm transitions

package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianecho/echo-gateway/internal/store"
)

// ErrInvalidInput is returned when a request is malformed before it reaches
// the store (missing content, empty identifiers, missing worker id).
var ErrInvalidInput = errors.New("invalid input")

// Manager implements the note queue operations on top of a NoteStore.
// All state reads and writes of the lifecycle fields go through here; the
// store guarantees each transition is a single conditional write, so the
// manager needs no locking of its own.
type Manager struct {
	notes  store.NoteStore
	logger *slog.Logger
}

// NewManager creates a queue manager backed by the given note store.
func NewManager(notes store.NoteStore) *Manager {
	return &Manager{
		notes:  notes,
		logger: slog.Default().With("component", "queue"),
	}
}

// EnqueueRequest carries the producer-supplied fields for a new note.
// ExternalID and Title are optional; ExternalID is opaque and deliberately
// not deduplicated.
type EnqueueRequest struct {
	VaultID    string
	ExternalID string
	Title      string
	Content    string
}

// Enqueue creates a new PENDING note in the vault's queue.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (*store.Note, error) {
	if req.VaultID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("vault id required"))
	}
	if req.Content == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("content required"))
	}

	now := time.Now().UTC()
	note := &store.Note{
		ID:         uuid.New().String(),
		VaultID:    req.VaultID,
		ExternalID: req.ExternalID,
		Title:      req.Title,
		Content:    req.Content,
		State:      store.NoteStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.notes.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	m.logger.Info("enqueued note", "id", note.ID, "vault_id", note.VaultID)
	return note, nil
}

// ListPending returns a vault's PENDING notes, oldest first. The result is a
// snapshot: a listed note may already be claimed by the time the caller acts
// on it, which is why Claim re-checks state atomically.
func (m *Manager) ListPending(ctx context.Context, vaultID string, limit, offset int) ([]*store.Note, error) {
	return m.ListByState(ctx, vaultID, store.NoteStatePending, limit, offset)
}

// ListByState returns a vault's notes in the given state, oldest first.
// The state filter is normalized to upper case; unknown values yield an
// empty list rather than an error.
func (m *Manager) ListByState(ctx context.Context, vaultID, state string, limit, offset int) ([]*store.Note, error) {
	if vaultID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("vault id required"))
	}

	state = strings.ToUpper(state)
	notes, err := m.notes.ListNotesByState(ctx, vaultID, state, limit, offset)
	if err != nil {
		// Listing is read-only and safe to retry once on a store failure
		notes, err = m.notes.ListNotesByState(ctx, vaultID, state, limit, offset)
	}
	return notes, err
}

// List returns a vault's notes in all states, oldest first.
func (m *Manager) List(ctx context.Context, vaultID string, limit, offset int) ([]*store.Note, error) {
	if vaultID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("vault id required"))
	}

	notes, err := m.notes.ListNotesByVault(ctx, vaultID, limit, offset)
	if err != nil {
		notes, err = m.notes.ListNotesByVault(ctx, vaultID, limit, offset)
	}
	return notes, err
}

// Claim attempts the PENDING -> CLAIMED transition for one worker. Exactly
// one of any number of concurrent claims on the same note succeeds; the rest
// receive store.ErrNotClaimable. Claims are never retried here: after an
// ambiguous store failure the caller must re-fetch current state, or a retry
// could double-assign work.
func (m *Manager) Claim(ctx context.Context, noteID, workerID string) (*store.Note, error) {
	if noteID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("note id required"))
	}
	if workerID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("worker id required"))
	}

	note, err := m.notes.ClaimNote(ctx, noteID, workerID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("claimed note", "id", note.ID, "owner", workerID)
	return note, nil
}

// Fetch returns the full note regardless of state. Vault ownership checks
// belong to the boundary layer, not here.
func (m *Manager) Fetch(ctx context.Context, noteID string) (*store.Note, error) {
	if noteID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("note id required"))
	}

	note, err := m.notes.GetNote(ctx, noteID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		note, err = m.notes.GetNote(ctx, noteID)
	}
	return note, err
}

// Confirm attempts the CLAIMED -> DELIVERED transition. Like Claim it is a
// single conditional write and is not retried. The claim owner is not
// verified; see the package doc.
func (m *Manager) Confirm(ctx context.Context, noteID string) (*store.Note, error) {
	if noteID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("note id required"))
	}

	note, err := m.notes.ConfirmNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("confirmed note delivery", "id", note.ID)
	return note, nil
}
