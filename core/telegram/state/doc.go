// Package state keeps one in-memory conversation session per user.
// Sessions are never persisted; they exist between flow start and completion,
// cancellation or expiry.
package state
