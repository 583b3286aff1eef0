// Package store provides persistent storage for echo-gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - UserStore: account registration and lookup
//   - VaultStore: vault CRUD and bearer-token lookup
//   - NoteStore: the note delivery queue, including the atomic
//     claim/confirm state transitions
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Note lifecycle
//
// Notes move through exactly one path:
//
//	PENDING -> CLAIMED -> DELIVERED
//
// ClaimNote and ConfirmNote express each transition as a single conditional
// UPDATE whose WHERE clause re-checks the current state. SQLite serializes
// writers, so concurrent claims on one note have exactly one winner; losers
// get ErrNotClaimable. Claim owner and timestamp are set only by a
// successful claim and are NULL exactly while the note is PENDING.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as UTC text. Note timestamps use a fixed-width
// microsecond layout so created_at ordering holds lexicographically.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrNotClaimable: note exists but failed a state predicate
//   - ErrUsernameExists / ErrEmailExists: registration conflicts
//
// ErrNotClaimable is a normal queue outcome, not a failure; callers surface
// it as a conflict and move on to another note. All methods accept
// context.Context for cancellation support.
package store
