package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/credstore"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	errs "github.com/sethnakola1/healthcare-mvp-v2-sub000/internal/errors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultRefreshThreshold is how close to expiry an access token may
	// get before EnsureFreshToken triggers a silent refresh.
	DefaultRefreshThreshold = 5 * time.Minute

	// DefaultIdleTimeout is the inactivity window after which the session
	// is expired.
	DefaultIdleTimeout = 30 * time.Minute

	defaultLogoutNotifyTimeout = 10 * time.Second
	defaultLoginRate           = rate.Limit(10.0 / 60.0) // 10 attempts per minute
	defaultLoginBurst          = 5
)

// singleflight keys; one shared in-flight operation per kind.
const (
	flightRefresh     = "refresh"
	flightCurrentUser = "current-user"
)

// Manager is the sole authority for session state transitions and the
// single place identity network calls are issued from. All methods are
// safe for concurrent use.
type Manager struct {
	backend Backend
	store   credstore.Store
	logger  zerolog.Logger
	nowTime func() time.Time

	refreshThreshold    time.Duration
	idleTimeout         time.Duration
	logoutNotifyTimeout time.Duration
	loginRate           rate.Limit
	loginBurst          int

	// authMu serializes authenticating transitions (login, register) so a
	// second call never races the first to set state.
	authMu sync.Mutex

	// flight coalesces concurrent refresh / current-user calls into one
	// in-flight backend exchange.
	flight singleflight.Group

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObsID int

	mu sync.Mutex

	// epoch increments whenever the credential set is replaced or cleared.
	// A network exchange suspended across a teardown compares the epoch it
	// started under and discards its result rather than resurrect a session
	// that ended while it was in flight.
	epoch             uint64
	status            Status
	ident             *identity.Identity
	accessToken       string
	refreshTokenValue string
	accessTokenExpiry time.Time
	lastActivity      time.Time
	lastError         string

	closeOnce sync.Once
	idleStop  chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) { m.nowTime = nowFunc }
}

// WithRefreshThreshold overrides DefaultRefreshThreshold.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) { m.refreshThreshold = d }
}

// WithIdleTimeout overrides DefaultIdleTimeout. Zero disables idle expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithLoginRateLimit sets the client-side per-identifier login limiter.
// A zero limit disables it.
func WithLoginRateLimit(r rate.Limit, burst int) Option {
	return func(m *Manager) {
		m.loginRate = r
		m.loginBurst = burst
	}
}

// NewManager creates a session manager over the given backend and
// credential store.
func NewManager(backend Backend, store credstore.Store, options ...Option) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("[NewManager] backend is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}

	m := &Manager{
		backend:             backend,
		store:               store,
		logger:              zerolog.Nop(),
		nowTime:             time.Now,
		refreshThreshold:    DefaultRefreshThreshold,
		idleTimeout:         DefaultIdleTimeout,
		logoutNotifyTimeout: defaultLogoutNotifyTimeout,
		loginRate:           defaultLoginRate,
		loginBurst:          defaultLoginBurst,
		limiters:            make(map[string]*rate.Limiter),
		observers:           make(map[int]func(Snapshot)),
		status:              StatusUnauthenticated,
		idleStop:            make(chan struct{}),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Snapshot returns a consistent view of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// OnChange registers an observer invoked after every published state
// transition. The returned function unsubscribes it.
func (m *Manager) OnChange(fn func(Snapshot)) func() {
	m.obsMu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.obsMu.Unlock()
	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Initialize hydrates the session from persisted credentials. With tokens
// present it publishes the cached identity snapshot for instant paint,
// then confirms it against the backend. Safe to call again after a
// network failure.
func (m *Manager) Initialize(ctx context.Context) error {
	creds := m.store.Load()
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		m.mu.Lock()
		m.status = StatusUnauthenticated
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
		return nil
	}

	m.mu.Lock()
	m.status = StatusInitializing
	m.accessToken = creds.AccessToken
	m.refreshTokenValue = creds.RefreshToken
	if exp, ok := jwtExpiry(creds.AccessToken); ok {
		m.accessTokenExpiry = exp
	} else {
		// Unknown expiry: first EnsureFreshToken refreshes.
		m.accessTokenExpiry = time.Time{}
	}
	if cached := m.store.LoadIdentitySnapshot(); cached != nil {
		m.ident = cached // untrusted until confirmed below
	}
	m.lastActivity = m.nowTime()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	ident, err := m.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, ErrNetworkTimeout) || errors.Is(err, ErrNetworkUnavailable) {
			// Retryable: keep the persisted credentials so a later
			// Initialize can try again, but don't claim authentication.
			m.mu.Lock()
			m.status = StatusUnauthenticated
			m.accessToken = ""
			m.refreshTokenValue = ""
			m.accessTokenExpiry = time.Time{}
			m.ident = nil
			m.lastError = sanitize(err)
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.publish(snap)
			return errs.Wrapf(err, "[Initialize] identity confirmation")
		}
		// CurrentUser already tore the session down for expiry; make sure
		// every other failure leaves no credentials behind either.
		m.mu.Lock()
		snaps := m.expireLocked(sanitize(err))
		m.mu.Unlock()
		m.publish(snaps...)
		return errs.Wrapf(err, "[Initialize] identity confirmation")
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.ident = ident
	m.lastError = ""
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	return nil
}

// Login authenticates the user and establishes a session. Validation
// failures resolve locally; backend rejections leave the session
// unauthenticated with lastError set.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := identity.ValidateCredentials(email, password); err != nil {
		return fmt.Errorf("[Login] %w: %s", ErrValidation, err.Error())
	}

	m.authMu.Lock()
	defer m.authMu.Unlock()

	if !m.allowLogin(email) {
		m.setError(sanitize(ErrRateLimited))
		return fmt.Errorf("[Login] %w: too many attempts for %q", ErrRateLimited, email)
	}

	if err := m.login(ctx, email, password); err != nil {
		return err
	}
	m.resetLoginLimiter(email)
	return nil
}

// login performs the authenticating transition. Caller holds authMu.
func (m *Manager) login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.status = StatusInitializing
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	result, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.failLogin(err)
		return errs.Wrapf(err, "[Login] backend login")
	}

	// Prefer identity fields already present in the login response; fall
	// back to a follow-up fetch when they are incomplete.
	ident := result.Identity
	if ident == nil || ident.UserID == "" || ident.Role == "" {
		ident, err = m.backend.CurrentUser(ctx, result.AccessToken)
		if err != nil {
			m.failLogin(err)
			return errs.Wrapf(err, "[Login] identity fetch")
		}
	}

	now := m.nowTime()
	m.mu.Lock()
	m.epoch++
	m.accessToken = result.AccessToken
	m.refreshTokenValue = result.RefreshToken
	m.accessTokenExpiry = tokenExpiry(result.TokenGrant, now)
	m.ident = ident
	m.status = StatusAuthenticated
	m.lastError = ""
	m.lastActivity = now
	m.store.Save(result.AccessToken, result.RefreshToken)
	m.store.SaveIdentitySnapshot(ident)
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	m.logger.Debug().Str("user_id", ident.UserID).Str("role", string(ident.Role)).Msg("session established")
	return nil
}

// failLogin reverts a failed authenticating transition. The persisted pair
// is cleared along with the in-memory one, so a re-login attempt that fails
// cannot leave the previous session's tokens behind for a later Initialize
// to resurrect.
func (m *Manager) failLogin(cause error) {
	m.mu.Lock()
	m.epoch++
	m.status = StatusUnauthenticated
	m.accessToken = ""
	m.refreshTokenValue = ""
	m.accessTokenExpiry = time.Time{}
	m.ident = nil
	m.lastError = sanitize(cause)
	m.store.Clear()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// Register creates a new account and then logs in with the submitted
// credentials. A failed auto-login is reported as ErrRegisteredLoginFailed,
// never as a registration failure.
func (m *Manager) Register(ctx context.Context, reg identity.Registration) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("[Register] %w: %s", ErrValidation, err.Error())
	}

	m.authMu.Lock()
	defer m.authMu.Unlock()

	if err := m.backend.Register(ctx, reg); err != nil {
		m.setError(sanitize(err))
		return errs.Wrapf(err, "[Register] backend registration")
	}

	if err := m.login(ctx, reg.Email, reg.Password); err != nil {
		m.setError("Account created, please sign in")
		return fmt.Errorf("[Register] %w: %s", ErrRegisteredLoginFailed, err.Error())
	}
	return nil
}

// CurrentUser fetches the confirmed identity record. Concurrent calls
// coalesce into one backend exchange and share its result.
func (m *Manager) CurrentUser(ctx context.Context) (*identity.Identity, error) {
	v, err, _ := m.flight.Do(flightCurrentUser, func() (interface{}, error) {
		token, err := m.EnsureFreshToken(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		epoch := m.epoch
		m.mu.Unlock()

		ident, err := m.backend.CurrentUser(ctx, token)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				m.mu.Lock()
				var snaps []Snapshot
				if m.epoch == epoch {
					snaps = m.expireLocked(msgSessionExpired)
				}
				m.mu.Unlock()
				m.publish(snaps...)
			} else {
				m.setError(sanitize(err))
			}
			return nil, errs.Wrapf(err, "[CurrentUser] backend fetch")
		}

		m.mu.Lock()
		if m.epoch != epoch {
			// Session ended while the fetch was in flight; discard.
			m.mu.Unlock()
			return nil, fmt.Errorf("[CurrentUser] %w: session ended during fetch", ErrSessionExpired)
		}
		m.ident = ident
		m.lastActivity = m.nowTime()
		m.store.SaveIdentitySnapshot(ident)
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
		return ident, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*identity.Identity), nil
}

// EnsureFreshToken returns an access token valid for at least the refresh
// threshold, refreshing first when necessary. Every outgoing authenticated
// domain request obtains its bearer token here, never from a raw store
// read.
func (m *Manager) EnsureFreshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.accessToken == "" && m.refreshTokenValue == "" {
		m.mu.Unlock()
		return "", fmt.Errorf("[EnsureFreshToken] %w: no credentials", ErrSessionExpired)
	}

	now := m.nowTime()
	if m.idleExpiredLocked(now) {
		snaps := m.expireLocked(msgIdleExpired)
		m.mu.Unlock()
		m.publish(snaps...)
		return "", fmt.Errorf("[EnsureFreshToken] %w: idle timeout", ErrSessionExpired)
	}

	// Threshold is inclusive: a token exactly at it refreshes.
	if m.accessToken != "" && m.accessTokenExpiry.Sub(now) > m.refreshThreshold {
		token := m.accessToken
		m.lastActivity = now
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh exchanges the stored refresh token for a new token pair.
// Concurrent callers await the same in-flight exchange; a backend that
// single-uses refresh tokens therefore never sees a replay. A rejection
// tears the session down; a network timeout leaves it untouched.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, _ := m.flight.Do(flightRefresh, func() (interface{}, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	refreshToken := m.refreshTokenValue
	if refreshToken == "" {
		snaps := m.expireLocked(msgSessionExpired)
		m.mu.Unlock()
		m.publish(snaps...)
		return "", fmt.Errorf("[Refresh] %w: no refresh token", ErrSessionExpired)
	}
	previous := m.status
	epoch := m.epoch
	m.status = StatusRefreshing
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	grant, err := m.backend.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNetworkTimeout) || errors.Is(err, ErrNetworkUnavailable) {
			// Transient: restore the previous state, keep credentials.
			m.mu.Lock()
			if m.epoch != epoch {
				m.mu.Unlock()
				return "", fmt.Errorf("[Refresh] %w: session ended during refresh", ErrSessionExpired)
			}
			if m.status == StatusRefreshing {
				m.status = previous
			}
			m.lastError = sanitize(err)
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.publish(snap)
			return "", errs.Wrapf(err, "[Refresh] backend unreachable")
		}

		m.logger.Warn().Err(err).Msg("refresh token rejected, expiring session")
		m.mu.Lock()
		var snaps []Snapshot
		if m.epoch == epoch {
			snaps = m.expireLocked(msgSessionExpired)
		}
		m.mu.Unlock()
		m.publish(snaps...)
		if !errors.Is(err, ErrSessionExpired) {
			err = fmt.Errorf("%w: %s", ErrSessionExpired, err.Error())
		}
		return "", errs.Wrapf(err, "[Refresh] backend refresh")
	}

	now := m.nowTime()
	m.mu.Lock()
	if m.epoch != epoch {
		// Logged out (or expired) while the exchange was in flight; the
		// teardown is final, the fresh grant is discarded.
		m.mu.Unlock()
		return "", fmt.Errorf("[Refresh] %w: session ended during refresh", ErrSessionExpired)
	}
	m.accessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		m.refreshTokenValue = grant.RefreshToken
	}
	m.accessTokenExpiry = tokenExpiry(*grant, now)
	m.status = StatusAuthenticated
	m.lastError = ""
	m.lastActivity = now
	m.store.Save(m.accessToken, m.refreshTokenValue)
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	return grant.AccessToken, nil
}

// Logout clears local state and persisted tokens immediately; the backend
// notification is best-effort and its failure is swallowed.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	token := m.accessToken
	m.accessToken = ""
	m.refreshTokenValue = ""
	m.accessTokenExpiry = time.Time{}
	m.ident = nil
	m.status = StatusUnauthenticated
	m.lastError = ""
	m.store.Clear()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	if token != "" {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutNotifyTimeout)
		go func() {
			defer cancel()
			if err := m.backend.Logout(notifyCtx, token); err != nil {
				m.logger.Debug().Err(err).Msg("logout notification failed")
			}
		}()
	}
	return nil
}

// ChangePassword delegates to the backend without altering session state.
// Existing tokens remain valid unless the backend invalidates them, which
// the next EnsureFreshToken discovers naturally.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if err := identity.ValidatePasswordStrength(newPassword); err != nil {
		return fmt.Errorf("[ChangePassword] %w: %s", ErrValidation, err.Error())
	}

	token, err := m.EnsureFreshToken(ctx)
	if err != nil {
		return errs.Wrapf(err, "[ChangePassword] token")
	}

	if err := m.backend.ChangePassword(ctx, token, currentPassword, newPassword); err != nil {
		m.setError(sanitize(err))
		return errs.Wrapf(err, "[ChangePassword] backend")
	}

	m.mu.Lock()
	m.lastActivity = m.nowTime()
	m.mu.Unlock()
	return nil
}

// ClearError clears lastError without any other state change.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.lastError = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// StartIdleWatch runs a low-frequency check for idle expiry. Idle timeout
// is also evaluated lazily on every authenticated operation, so the
// watcher is an optional supplement, not a guarantee.
func (m *Manager) StartIdleWatch(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.idleStop:
				return
			case <-ticker.C:
				m.checkIdle()
			}
		}
	}()
}

// Close stops the idle watcher.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.idleStop) })
}

func (m *Manager) checkIdle() {
	m.mu.Lock()
	if (m.status != StatusAuthenticated && m.status != StatusRefreshing) || !m.idleExpiredLocked(m.nowTime()) {
		m.mu.Unlock()
		return
	}
	snaps := m.expireLocked(msgIdleExpired)
	m.mu.Unlock()
	m.publish(snaps...)
}

func (m *Manager) idleExpiredLocked(now time.Time) bool {
	if m.idleTimeout <= 0 || m.lastActivity.IsZero() {
		return false
	}
	return now.Sub(m.lastActivity) > m.idleTimeout
}

// expireLocked tears the session down: Expired is observed first, then
// Unauthenticated with all credentials cleared. Caller holds mu and
// publishes the returned snapshots after unlocking.
func (m *Manager) expireLocked(reason string) []Snapshot {
	m.epoch++
	m.status = StatusExpired
	expired := m.snapshotLocked()

	m.accessToken = ""
	m.refreshTokenValue = ""
	m.accessTokenExpiry = time.Time{}
	m.ident = nil
	m.status = StatusUnauthenticated
	m.lastError = reason
	m.store.Clear()

	return []Snapshot{expired, m.snapshotLocked()}
}

func (m *Manager) setError(message string) {
	m.mu.Lock()
	m.lastError = message
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:       m.status,
		LastError:    m.lastError,
		LastActivity: m.lastActivity,
	}
	if m.ident != nil {
		copied := *m.ident
		snap.Identity = &copied
	}
	return snap
}

// publish delivers snapshots to observers outside any state lock.
func (m *Manager) publish(snaps ...Snapshot) {
	m.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()

	for _, snap := range snaps {
		for _, fn := range fns {
			fn(snap)
		}
	}
}

func (m *Manager) allowLogin(email string) bool {
	if m.loginRate <= 0 {
		return true
	}
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	limiter, ok := m.limiters[email]
	if !ok {
		limiter = rate.NewLimiter(m.loginRate, m.loginBurst)
		m.limiters[email] = limiter
	}
	return limiter.Allow()
}

// resetLoginLimiter drops the attempt counter for an identifier after a
// successful login.
func (m *Manager) resetLoginLimiter(email string) {
	m.limiterMu.Lock()
	delete(m.limiters, email)
	m.limiterMu.Unlock()
}
