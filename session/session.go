// Package session owns the authoritative in-memory authentication state
// for a process: it orchestrates login, logout, silent token refresh and
// session-expiry detection against an identity backend, persisting
// credentials through a credstore.Store. UI layers and domain-service
// clients are read-only observers plus callers of the public operations;
// they never touch tokens or storage directly.
package session

import (
	"time"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
	StatusExpired         Status = "expired"
)

// Snapshot is a consistent, read-only view of the session published to
// observers. It never carries token material; callers needing a token go
// through EnsureFreshToken.
type Snapshot struct {
	Status       Status
	Identity     *identity.Identity
	LastError    string
	LastActivity time.Time
}

// IsAuthenticated reports whether the session holds a confirmed identity.
// A session mid-refresh is still authenticated.
func (s Snapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusRefreshing
}

// IsLoading reports whether an authentication transition is in flight.
func (s Snapshot) IsLoading() bool {
	return s.Status == StatusInitializing || s.Status == StatusRefreshing
}
