// ABOUTME: Store interfaces and data types for echo-gateway persistence
// ABOUTME: Defines User, Vault, Note structs and the store interfaces for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrNotClaimable is returned when a note exists but is not in the state
// required by a conditional transition (claim on non-PENDING, confirm on
// non-CLAIMED). It is an expected outcome of concurrent workers racing on
// the same note, not a defect.
var ErrNotClaimable = errors.New("note not claimable")

// ErrUsernameExists is returned when trying to register a user with a taken username
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when trying to register a user with a taken email
var ErrEmailExists = errors.New("email already exists")

// NoteState values for the note delivery lifecycle.
// Transitions are strictly PENDING -> CLAIMED -> DELIVERED; DELIVERED is terminal.
const (
	NoteStatePending   = "PENDING"   // Enqueued, claimable by any worker
	NoteStateClaimed   = "CLAIMED"   // Exclusively owned by one worker
	NoteStateDelivered = "DELIVERED" // Delivery confirmed, terminal
)

// ValidNoteState reports whether s is one of the known note states.
func ValidNoteState(s string) bool {
	switch s {
	case NoteStatePending, NoteStateClaimed, NoteStateDelivered:
		return true
	}
	return false
}

// User represents a registered account that owns vaults
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Vault is a tenant-scoped namespace partitioning notes and queues.
// Token is the opaque bearer credential producer and worker clients present.
type Vault struct {
	ID        string
	UserID    string
	Name      string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is the unit of queued work. Content is an opaque payload; the store
// only manages the lifecycle fields. ClaimOwner and ClaimTimestamp are nil
// exactly while State is PENDING.
type Note struct {
	ID             string
	VaultID        string
	ExternalID     string // optional producer correlation key, not unique
	Title          string
	Content        string
	State          string
	ClaimOwner     *string
	ClaimTimestamp *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserStore defines user account persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// VaultStore defines vault persistence. Ownership-checked operations take
// the owning user's ID and return ErrNotFound when the vault is absent or
// owned by someone else.
type VaultStore interface {
	CreateVault(ctx context.Context, vault *Vault) error
	GetVault(ctx context.Context, id string) (*Vault, error)
	GetUserVault(ctx context.Context, id, userID string) (*Vault, error)
	GetVaultByToken(ctx context.Context, token string) (*Vault, error)
	ListVaultsByUser(ctx context.Context, userID string) ([]*Vault, error)
	UpdateVaultName(ctx context.Context, id, userID, name string) (*Vault, error)
	DeleteVault(ctx context.Context, id, userID string) error
}

// NoteStore defines note queue persistence. ClaimNote and ConfirmNote are
// single conditional writes: the state predicate is part of the UPDATE
// itself, so concurrent callers racing on one note see exactly one success.
type NoteStore interface {
	CreateNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, id string) (*Note, error)
	ListNotesByVault(ctx context.Context, vaultID string, limit, offset int) ([]*Note, error)
	ListNotesByState(ctx context.Context, vaultID, state string, limit, offset int) ([]*Note, error)
	ClaimNote(ctx context.Context, id, owner string) (*Note, error)
	ConfirmNote(ctx context.Context, id string) (*Note, error)
}

// Store combines all persistence interfaces. SQLiteStore implements it.
type Store interface {
	UserStore
	VaultStore
	NoteStore
	Close() error
}
