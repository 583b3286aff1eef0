// Package auth provides authentication for echo-gateway's two caller types.
//
// Human users authenticate with HS256 JWTs issued at login: JWTVerifier
// generates and verifies tokens whose "sub" claim carries the user ID and
// whose "iss" claim must match this service, and RequireUser middleware
// resolves that ID against the user store.
//
// Producer and worker clients authenticate with an opaque per-vault bearer
// token created alongside the vault. RequireVault middleware looks the token
// up directly and scopes the request to the matching vault; the vault is the
// tenancy boundary for the note queue.
//
// Passwords are hashed with bcrypt. Login paths call DummyCompare when the
// account doesn't exist so response timing doesn't enumerate usernames.
package auth
