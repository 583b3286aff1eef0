// ABOUTME: Package documentation for the failed-login rate limiter
// ABOUTME: Describes windowed failure counting and eviction behavior

// Package ratelimit provides a windowed failure counter used to throttle
// repeated failed login attempts per username. Keys over their failure
// budget are blocked until the window elapses; a successful login resets
// the key. The table is size-limited with oldest-first eviction so an
// attacker cycling usernames cannot grow it without bound.
package ratelimit
