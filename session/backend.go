package session

import (
	"context"
	"time"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
)

// TokenGrant is the token material minted by the identity backend.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // access token lifetime in seconds
}

// LoginResult is the backend's login payload: a token grant plus whatever
// identity fields the response carried. Identity is nil when the response
// lacked them, in which case the manager falls back to a follow-up
// CurrentUser fetch.
type LoginResult struct {
	TokenGrant
	Identity  *identity.Identity
	LoginTime time.Time
}

// Backend is the identity backend the Manager issues network calls
// against. Implementations map transport and envelope failures onto the
// session error kinds (ErrInvalidCredentials, ErrNetworkTimeout, ...).
type Backend interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Register(ctx context.Context, reg identity.Registration) error
	CurrentUser(ctx context.Context, accessToken string) (*identity.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
	Logout(ctx context.Context, accessToken string) error
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error
}
