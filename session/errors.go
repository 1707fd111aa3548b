package session

import "errors"

// Error kinds for session operations. Callers match them with errors.Is;
// every rejected operation carries exactly one of these in its chain.
var (
	// ErrValidation is returned for malformed input (email shape, password
	// policy) before any network call is made.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited is returned when the backend (or the client-side
	// limiter) throttles the identifier.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetworkTimeout is returned when a backend call exceeds the request
	// timeout. Retryable; never forces a logout on its own.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrNetworkUnavailable is returned when the backend cannot be reached.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrSessionExpired means re-authentication is required: the refresh
	// token was rejected, the idle timeout elapsed, or no credentials
	// remain. Local credentials are always cleared before this propagates.
	ErrSessionExpired = errors.New("session expired")

	// ErrServer is returned for 5xx responses and malformed envelopes.
	ErrServer = errors.New("server error")

	// ErrDecode is returned when an identity payload is missing required
	// fields or carries a role outside the closed role set.
	ErrDecode = errors.New("malformed identity payload")

	// ErrRegisteredLoginFailed means the account was created but the
	// automatic login afterwards failed; the caller should redirect to a
	// manual login prompt rather than report a registration failure.
	ErrRegisteredLoginFailed = errors.New("registered but automatic login failed")
)

const (
	msgSessionExpired = "Session expired, please sign in again"
	msgIdleExpired    = "Session expired due to inactivity"
)

// sanitize maps an operation failure to the user-facing message recorded
// in the session's lastError. Raw backend messages never reach the UI.
func sanitize(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts, please wait and try again"
	case errors.Is(err, ErrNetworkTimeout), errors.Is(err, ErrNetworkUnavailable):
		return "Could not reach the server, please try again"
	case errors.Is(err, ErrSessionExpired):
		return msgSessionExpired
	case errors.Is(err, ErrDecode):
		return "Unexpected response from the server"
	default:
		return "Something went wrong, please try again later"
	}
}
