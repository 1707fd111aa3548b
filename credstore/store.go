// Package credstore provides durable key/value persistence for session
// credentials: the access token, refresh token and the last-known identity
// snapshot. It carries no business logic; the session manager is the only
// writer.
//
// Store implementations never surface storage failures to callers. A store
// that cannot reach its backing medium degrades to in-memory behaviour for
// the life of the process, logging the failure.
package credstore

import "github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"

// Credentials holds the persisted token pair. Absence of either value is
// not an error; both are always written and cleared together.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store persists session credentials across process restarts.
type Store interface {
	// Save writes both tokens. Tokens are never left half-written: a
	// completed Save leaves either both values or, on Clear, neither.
	Save(accessToken, refreshToken string)

	// Load returns whatever credentials are present.
	Load() Credentials

	// SaveIdentitySnapshot caches the last known user record so callers can
	// paint instantly before the network round-trip confirming it completes.
	SaveIdentitySnapshot(id *identity.Identity)

	// LoadIdentitySnapshot returns the cached user record, or nil. The
	// snapshot is untrusted until revalidated against the backend.
	LoadIdentitySnapshot() *identity.Identity

	// Clear removes all session-related state.
	Clear()
}
