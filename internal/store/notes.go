// ABOUTME: Note queue persistence with atomic claim/confirm state transitions
// ABOUTME: Claim and confirm are single conditional UPDATEs so races have exactly one winner

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// noteTimeFormat is a fixed-width RFC3339 layout with microsecond precision.
// Fixed width keeps the TEXT timestamp columns lexicographically sortable,
// which the created_at ASC queue ordering depends on; RFC3339Nano drops
// trailing zeros and breaks that.
const noteTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

const noteColumns = `id, vault_id, external_id, title, content, state, claim_owner, claim_timestamp, created_at, updated_at`

// CreateNote inserts a new note in PENDING state with claim fields unset.
func (s *SQLiteStore) CreateNote(ctx context.Context, note *Note) error {
	query := `
		INSERT INTO notes (id, vault_id, external_id, title, content, state, claim_owner, claim_timestamp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		note.ID,
		note.VaultID,
		nullString(note.ExternalID),
		nullString(note.Title),
		note.Content,
		note.State,
		note.CreatedAt.UTC().Format(noteTimeFormat),
		note.UpdatedAt.UTC().Format(noteTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	s.logger.Debug("created note", "id", note.ID, "vault_id", note.VaultID)
	return nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetNote retrieves a note by ID regardless of state.
// Returns ErrNotFound if the note doesn't exist.
func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	return s.scanNote(s.db.QueryRowContext(ctx, query, id))
}

// ListNotesByVault returns a vault's notes in all states, ordered by
// creation time ascending. Limit and offset are clamped: a non-positive
// limit gets a default, a hard cap applies, and negative offsets become 0.
func (s *SQLiteStore) ListNotesByVault(ctx context.Context, vaultID string, limit, offset int) ([]*Note, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE vault_id = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`
	return s.queryNotes(ctx, query, vaultID, limit, offset)
}

// ListNotesByState returns a vault's notes in one state, oldest first so
// delivery is FIFO-ish. Unknown state values match no rows rather than
// erroring; the filter is deliberately lenient.
func (s *SQLiteStore) ListNotesByState(ctx context.Context, vaultID, state string, limit, offset int) ([]*Note, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE vault_id = ? AND state = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`
	return s.queryNotes(ctx, query, vaultID, state, limit, offset)
}

// clampPage applies pagination defaults and caps.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ClaimNote transitions a note from PENDING to CLAIMED, stamping the claim
// owner and timestamp. The state predicate lives in the UPDATE's WHERE
// clause, so it is a single atomic conditional write: under N concurrent
// callers racing on one note, exactly one UPDATE matches a row and the rest
// match none. There is no window where two callers both hold the claim.
//
// Returns the post-transition note on success, ErrNotClaimable when the note
// exists but is not PENDING, and ErrNotFound when no such note exists.
func (s *SQLiteStore) ClaimNote(ctx context.Context, id, owner string) (*Note, error) {
	now := time.Now().UTC().Format(noteTimeFormat)
	query := `
		UPDATE notes
		SET state = ?, claim_owner = ?, claim_timestamp = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		NoteStateClaimed, owner, now, now,
		id, NoteStatePending,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, s.explainNoTransition(ctx, id)
	}

	s.logger.Debug("claimed note", "id", id, "owner", owner)
	return s.GetNote(ctx, id)
}

// ConfirmNote transitions a note from CLAIMED to DELIVERED using the same
// conditional-write shape as ClaimNote. The claim owner is not checked;
// vault-token auth at the boundary already restricts callers to one tenant.
//
// Returns ErrNotClaimable when the note exists but is not CLAIMED, and
// ErrNotFound when no such note exists.
func (s *SQLiteStore) ConfirmNote(ctx context.Context, id string) (*Note, error) {
	query := `
		UPDATE notes
		SET state = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		NoteStateDelivered, time.Now().UTC().Format(noteTimeFormat),
		id, NoteStateClaimed,
	)
	if err != nil {
		return nil, fmt.Errorf("confirming note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, s.explainNoTransition(ctx, id)
	}

	s.logger.Debug("confirmed note", "id", id)
	return s.GetNote(ctx, id)
}

// explainNoTransition distinguishes the two reasons a conditional state
// update can match zero rows: the note is missing (ErrNotFound) or it exists
// in the wrong state (ErrNotClaimable).
func (s *SQLiteStore) explainNoTransition(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking note existence: %w", err)
	}
	return ErrNotClaimable
}

func (s *SQLiteStore) queryNotes(ctx context.Context, query string, args ...any) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		note, err := scanNoteRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating note rows: %w", err)
	}
	return notes, nil
}

func (s *SQLiteStore) scanNote(row *sql.Row) (*Note, error) {
	note, err := scanNoteRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return note, err
}

// scanNoteRow scans one note from either a *sql.Row or *sql.Rows scan func.
func scanNoteRow(scan func(...any) error) (*Note, error) {
	var note Note
	var externalID, title, claimOwner, claimTimestampStr sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&note.ID,
		&note.VaultID,
		&externalID,
		&title,
		&note.Content,
		&note.State,
		&claimOwner,
		&claimTimestampStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}

	note.ExternalID = externalID.String
	note.Title = title.String
	if claimOwner.Valid {
		note.ClaimOwner = &claimOwner.String
	}
	if claimTimestampStr.Valid {
		t, err := time.Parse(noteTimeFormat, claimTimestampStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing claim_timestamp: %w", err)
		}
		note.ClaimTimestamp = &t
	}

	note.CreatedAt, err = time.Parse(noteTimeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	note.UpdatedAt, err = time.Parse(noteTimeFormat, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &note, nil
}
