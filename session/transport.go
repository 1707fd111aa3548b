package session

import (
	"context"
	"net/http"

	errs "github.com/sethnakola1/healthcare-mvp-v2-sub000/internal/errors"
	"golang.org/x/oauth2"
)

// Transport injects Authorization: Bearer headers minted by the session
// manager into outgoing requests. Domain-service clients use this (via
// Manager.Client) instead of reading tokens from storage.
type Transport struct {
	Manager *Manager

	// Base is the wrapped round tripper; nil means http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Manager.EnsureFreshToken(req.Context())
	if err != nil {
		return nil, errs.Wrapf(err, "[Transport.RoundTrip] bearer token")
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// Client returns an *http.Client whose requests carry a current bearer
// token, refreshing it transparently when near expiry.
func (m *Manager) Client() *http.Client {
	return &http.Client{Transport: &Transport{Manager: m}}
}

// TokenSource adapts the manager to oauth2-aware HTTP stacks.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m}
}

type managerTokenSource struct {
	ctx     context.Context
	manager *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.manager.EnsureFreshToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	ts.manager.mu.Lock()
	expiry := ts.manager.accessTokenExpiry
	ts.manager.mu.Unlock()
	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
