package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupNoteFixtures creates a user and vault for note tests.
func setupNoteFixtures(t *testing.T) (*SQLiteStore, *Vault) {
	t.Helper()
	store := setupTestStore(t)
	user := createTestUser(t, store, "producer")
	vault := createTestVault(t, store, user.ID, "inbox")
	return store, vault
}

// createTestNote inserts a PENDING note with the given id suffix.
func createTestNote(t *testing.T, s *SQLiteStore, vaultID, suffix string, createdAt time.Time) *Note {
	t.Helper()
	note := &Note{
		ID:        "note-" + suffix,
		VaultID:   vaultID,
		Title:     "title " + suffix,
		Content:   "content " + suffix,
		State:     NoteStatePending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, s.CreateNote(context.Background(), note))
	return note
}

func TestStore_CreateNote(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	note := createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	retrieved, err := store.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, NoteStatePending, retrieved.State)
	assert.Equal(t, vault.ID, retrieved.VaultID)
	assert.Equal(t, "content a", retrieved.Content)
	assert.Nil(t, retrieved.ClaimOwner)
	assert.Nil(t, retrieved.ClaimTimestamp)
}

func TestStore_GetNote_NotFound(t *testing.T) {
	store, _ := setupNoteFixtures(t)

	_, err := store.GetNote(context.Background(), "note-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNotesByState_Ordering(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	base := time.Now().UTC()
	// Insert out of order to prove ordering comes from created_at
	createTestNote(t, store, vault.ID, "third", base.Add(2*time.Second))
	createTestNote(t, store, vault.ID, "first", base)
	createTestNote(t, store, vault.ID, "second", base.Add(time.Second))

	notes, err := store.ListNotesByState(ctx, vault.ID, NoteStatePending, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "note-first", notes[0].ID)
	assert.Equal(t, "note-second", notes[1].ID)
	assert.Equal(t, "note-third", notes[2].ID)
}

func TestStore_ListNotesByState_Pagination(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		createTestNote(t, store, vault.ID, fmt.Sprintf("%d", i), base.Add(time.Duration(i)*time.Millisecond))
	}

	page, err := store.ListNotesByState(ctx, vault.ID, NoteStatePending, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "note-2", page[0].ID)
	assert.Equal(t, "note-3", page[1].ID)
}

func TestStore_ListNotesByState_UnknownState(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	// Lenient filter: unknown state matches nothing instead of erroring
	notes, err := store.ListNotesByState(ctx, vault.ID, "SHIPPED", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestStore_ListNotesByVault_AllStates(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	base := time.Now().UTC()
	createTestNote(t, store, vault.ID, "a", base)
	createTestNote(t, store, vault.ID, "b", base.Add(time.Millisecond))

	_, err := store.ClaimNote(ctx, "note-a", "w1")
	require.NoError(t, err)

	notes, err := store.ListNotesByVault(ctx, vault.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, NoteStateClaimed, notes[0].State)
	assert.Equal(t, NoteStatePending, notes[1].State)
}

func TestStore_ClaimNote(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	before := time.Now().UTC()
	createTestNote(t, store, vault.ID, "a", before)

	claimed, err := store.ClaimNote(ctx, "note-a", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, NoteStateClaimed, claimed.State)
	require.NotNil(t, claimed.ClaimOwner)
	assert.Equal(t, "worker-1", *claimed.ClaimOwner)
	require.NotNil(t, claimed.ClaimTimestamp)
	assert.False(t, claimed.ClaimTimestamp.Before(before.Truncate(time.Second)))
	assert.False(t, claimed.UpdatedAt.Before(claimed.CreatedAt))
}

func TestStore_ClaimNote_AlreadyClaimed(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	_, err := store.ClaimNote(ctx, "note-a", "worker-1")
	require.NoError(t, err)

	// Second claim must lose without touching the row
	_, err = store.ClaimNote(ctx, "note-a", "worker-2")
	assert.ErrorIs(t, err, ErrNotClaimable)

	note, err := store.GetNote(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, NoteStateClaimed, note.State)
	assert.Equal(t, "worker-1", *note.ClaimOwner)
}

func TestStore_ClaimNote_NotFound(t *testing.T) {
	store, _ := setupNoteFixtures(t)

	_, err := store.ClaimNote(context.Background(), "note-missing", "worker-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ClaimNote_Concurrent(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "contested", time.Now().UTC())

	const workers = 16
	var wg sync.WaitGroup
	type outcome struct {
		owner string
		err   error
	}
	results := make(chan outcome, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("worker-%d", i)
			_, err := store.ClaimNote(ctx, "note-contested", owner)
			results <- outcome{owner: owner, err: err}
		}(i)
	}
	wg.Wait()
	close(results)

	var winners []string
	losers := 0
	for r := range results {
		switch {
		case r.err == nil:
			winners = append(winners, r.owner)
		default:
			require.ErrorIs(t, r.err, ErrNotClaimable)
			losers++
		}
	}

	// Exactly one winner; everyone else saw not-claimable
	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, losers)

	note, err := store.GetNote(ctx, "note-contested")
	require.NoError(t, err)
	assert.Equal(t, NoteStateClaimed, note.State)
	assert.Equal(t, winners[0], *note.ClaimOwner)
}

func TestStore_ConfirmNote(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	_, err := store.ClaimNote(ctx, "note-a", "worker-1")
	require.NoError(t, err)

	confirmed, err := store.ConfirmNote(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, NoteStateDelivered, confirmed.State)
	// Claim provenance survives delivery
	require.NotNil(t, confirmed.ClaimOwner)
	assert.Equal(t, "worker-1", *confirmed.ClaimOwner)
}

func TestStore_ConfirmNote_Pending(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	// Confirm may not skip the CLAIMED step
	_, err := store.ConfirmNote(ctx, "note-a")
	assert.ErrorIs(t, err, ErrNotClaimable)

	note, err := store.GetNote(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, NoteStatePending, note.State)
}

func TestStore_ConfirmNote_Delivered(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())
	_, err := store.ClaimNote(ctx, "note-a", "worker-1")
	require.NoError(t, err)
	_, err = store.ConfirmNote(ctx, "note-a")
	require.NoError(t, err)

	// DELIVERED is absorbing
	_, err = store.ConfirmNote(ctx, "note-a")
	assert.ErrorIs(t, err, ErrNotClaimable)
	_, err = store.ClaimNote(ctx, "note-a", "worker-2")
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestStore_ConfirmNote_NotFound(t *testing.T) {
	store, _ := setupNoteFixtures(t)

	_, err := store.ConfirmNote(context.Background(), "note-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_NoteLifecycle(t *testing.T) {
	store, vault := setupNoteFixtures(t)
	ctx := context.Background()

	createTestNote(t, store, vault.ID, "a", time.Now().UTC())

	pending, err := store.ListNotesByState(ctx, vault.ID, NoteStatePending, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = store.ClaimNote(ctx, "note-a", "w1")
	require.NoError(t, err)

	// A claimed note no longer appears in the pending list
	pending, err = store.ListNotesByState(ctx, vault.ID, NoteStatePending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Fetch keeps returning the same content regardless of state
	note, err := store.GetNote(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, "content a", note.Content)

	_, err = store.ConfirmNote(ctx, "note-a")
	require.NoError(t, err)

	note, err = store.GetNote(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, NoteStateDelivered, note.State)
	assert.Equal(t, "content a", note.Content)
}
