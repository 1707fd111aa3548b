package backendfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/session"
)

var _ session.Backend = (*FakeBackend)(nil)

// FakeBackend is a configurable identity backend for tests. Each operation
// delegates to the corresponding Fn field and counts its invocations, so
// tests can assert coalescing behaviour.
type FakeBackend struct {
	LoginFn          func(ctx context.Context, email, password string) (*session.LoginResult, error)
	RegisterFn       func(ctx context.Context, reg identity.Registration) error
	CurrentUserFn    func(ctx context.Context, accessToken string) (*identity.Identity, error)
	RefreshFn        func(ctx context.Context, refreshToken string) (*session.TokenGrant, error)
	LogoutFn         func(ctx context.Context, accessToken string) error
	ChangePasswordFn func(ctx context.Context, accessToken, currentPassword, newPassword string) error

	mu                  sync.Mutex
	loginCalls          int
	registerCalls       int
	currentUserCalls    int
	refreshCalls        int
	logoutCalls         int
	changePasswordCalls int
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

var errNotConfigured = errors.New("fake backend: operation not configured")

func (f *FakeBackend) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	f.count(&f.loginCalls)
	if f.LoginFn == nil {
		return nil, errNotConfigured
	}
	return f.LoginFn(ctx, email, password)
}

func (f *FakeBackend) Register(ctx context.Context, reg identity.Registration) error {
	f.count(&f.registerCalls)
	if f.RegisterFn == nil {
		return errNotConfigured
	}
	return f.RegisterFn(ctx, reg)
}

func (f *FakeBackend) CurrentUser(ctx context.Context, accessToken string) (*identity.Identity, error) {
	f.count(&f.currentUserCalls)
	if f.CurrentUserFn == nil {
		return nil, errNotConfigured
	}
	return f.CurrentUserFn(ctx, accessToken)
}

func (f *FakeBackend) Refresh(ctx context.Context, refreshToken string) (*session.TokenGrant, error) {
	f.count(&f.refreshCalls)
	if f.RefreshFn == nil {
		return nil, errNotConfigured
	}
	return f.RefreshFn(ctx, refreshToken)
}

func (f *FakeBackend) Logout(ctx context.Context, accessToken string) error {
	f.count(&f.logoutCalls)
	if f.LogoutFn == nil {
		return nil
	}
	return f.LogoutFn(ctx, accessToken)
}

func (f *FakeBackend) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	f.count(&f.changePasswordCalls)
	if f.ChangePasswordFn == nil {
		return errNotConfigured
	}
	return f.ChangePasswordFn(ctx, accessToken, currentPassword, newPassword)
}

func (f *FakeBackend) LoginCalls() int          { return f.calls(&f.loginCalls) }
func (f *FakeBackend) RegisterCalls() int       { return f.calls(&f.registerCalls) }
func (f *FakeBackend) CurrentUserCalls() int    { return f.calls(&f.currentUserCalls) }
func (f *FakeBackend) RefreshCalls() int        { return f.calls(&f.refreshCalls) }
func (f *FakeBackend) LogoutCalls() int         { return f.calls(&f.logoutCalls) }
func (f *FakeBackend) ChangePasswordCalls() int { return f.calls(&f.changePasswordCalls) }

func (f *FakeBackend) count(field *int) {
	f.mu.Lock()
	*field++
	f.mu.Unlock()
}

func (f *FakeBackend) calls(field *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *field
}
