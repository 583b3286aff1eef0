// Package queue implements the note delivery queue manager.
//
// Each vault owns an independent queue of notes moving through a strict
// lifecycle:
//
//	PENDING -> CLAIMED -> DELIVERED
//
// A producer enqueues a note, any worker lists the vault's pending notes,
// one worker wins the claim, downloads the content, and confirms delivery.
// The claim is the only contended step: it is delegated to the store as a
// single conditional write, so N workers racing on one note produce exactly
// one CLAIMED row and N-1 not-claimable outcomes. The manager itself holds
// no locks and no state beyond its store handle.
//
// not-claimable (store.ErrNotClaimable) is an expected outcome of normal
// operation, not an error condition; callers surface it as a conflict and
// pick another note.
//
// Confirm deliberately does not check which worker owns the claim: vault
// token auth at the HTTP boundary already limits callers to one tenant, and
// the store-level race guard exists only on the PENDING -> CLAIMED edge.
package queue
