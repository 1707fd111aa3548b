// Package authapi is the HTTP client for the identity backend. It speaks
// the backend's uniform response envelope and maps transport and envelope
// failures onto the session error kinds, so callers never inspect status
// codes themselves.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	errs "github.com/sethnakola1/healthcare-mvp-v2-sub000/internal/errors"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/session"
)

// DefaultRequestTimeout bounds every backend exchange.
const DefaultRequestTimeout = 30 * time.Second

const (
	loginPath          = "/auth/login"
	registerPath       = "/auth/register"
	currentUserPath    = "/auth/me"
	refreshPath        = "/auth/refresh"
	logoutPath         = "/auth/logout"
	changePasswordPath = "/auth/change-password"
)

var _ session.Backend = (*Client)(nil)

// Client talks to the identity backend over REST.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultRequestTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a backend client for the given base URL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// envelope is the backend's uniform response wrapper. success=false is a
// domain failure even when the transport status is 200.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

type loginPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	LoginTime    string `json:"loginTime"`
}

type refreshPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

type userPayload struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	HospitalID string `json:"hospitalId"`
	CreatedAt  string `json:"createdAt"`
	LastLogin  string `json:"lastLogin"`
}

type registerPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

// Login implements session.Backend.
func (c *Client) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := c.do(ctx, http.MethodPost, loginPath, "", body, session.ErrInvalidCredentials)
	if err != nil {
		return nil, errs.Wrapf(err, "[Login] %s", loginPath)
	}

	var payload loginPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("[Login] %w: %s", session.ErrDecode, err.Error())
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("[Login] %w: missing token material", session.ErrDecode)
	}

	result := &session.LoginResult{
		TokenGrant: session.TokenGrant{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			TokenType:    payload.TokenType,
			ExpiresIn:    payload.ExpiresIn,
		},
		LoginTime: parseTime(payload.LoginTime),
	}

	// Derive the identity from fields already present in the response to
	// save a round trip. An unknown role is a data error; incomplete
	// fields just leave Identity nil for the manager's follow-up fetch.
	if payload.UserID != "" && payload.Role != "" {
		role, err := identity.ParseRole(payload.Role)
		if err != nil {
			return nil, fmt.Errorf("[Login] %w: %s", session.ErrDecode, err.Error())
		}
		result.Identity = &identity.Identity{
			UserID:    payload.UserID,
			Email:     payload.Email,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
			Role:      role,
			LastLogin: parseTime(payload.LoginTime),
		}
	}

	return result, nil
}

// Register implements session.Backend.
func (c *Client) Register(ctx context.Context, reg identity.Registration) error {
	body := registerPayload{
		Email:     reg.Email,
		Password:  reg.Password,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Phone:     reg.Phone,
		Role:      string(reg.Role),
	}
	if _, err := c.do(ctx, http.MethodPost, registerPath, "", body, session.ErrValidation); err != nil {
		return errs.Wrapf(err, "[Register] %s", registerPath)
	}
	return nil
}

// CurrentUser implements session.Backend.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*identity.Identity, error) {
	data, err := c.do(ctx, http.MethodGet, currentUserPath, accessToken, nil, session.ErrSessionExpired)
	if err != nil {
		return nil, errs.Wrapf(err, "[CurrentUser] %s", currentUserPath)
	}

	var payload userPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("[CurrentUser] %w: %s", session.ErrDecode, err.Error())
	}
	if payload.UserID == "" || payload.Email == "" {
		return nil, fmt.Errorf("[CurrentUser] %w: missing required identity fields", session.ErrDecode)
	}
	role, err := identity.ParseRole(payload.Role)
	if err != nil {
		return nil, fmt.Errorf("[CurrentUser] %w: %s", session.ErrDecode, err.Error())
	}

	return &identity.Identity{
		UserID:     payload.UserID,
		Email:      payload.Email,
		Username:   payload.Username,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Phone:      payload.Phone,
		Role:       role,
		HospitalID: payload.HospitalID,
		CreatedAt:  parseTime(payload.CreatedAt),
		LastLogin:  parseTime(payload.LastLogin),
	}, nil
}

// Refresh implements session.Backend.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.TokenGrant, error) {
	body := map[string]string{"refreshToken": refreshToken}
	data, err := c.do(ctx, http.MethodPost, refreshPath, "", body, session.ErrSessionExpired)
	if err != nil {
		return nil, errs.Wrapf(err, "[Refresh] %s", refreshPath)
	}

	var payload refreshPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("[Refresh] %w: %s", session.ErrDecode, err.Error())
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("[Refresh] %w: missing access token", session.ErrDecode)
	}

	return &session.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// Logout implements session.Backend. The caller treats failures as
// best-effort; this method still reports them.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if _, err := c.do(ctx, http.MethodPost, logoutPath, accessToken, nil, session.ErrServer); err != nil {
		return errs.Wrapf(err, "[Logout] %s", logoutPath)
	}
	return nil
}

// ChangePassword implements session.Backend.
func (c *Client) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}
	if _, err := c.do(ctx, http.MethodPost, changePasswordPath, accessToken, body, session.ErrValidation); err != nil {
		return errs.Wrapf(err, "[ChangePassword] %s", changePasswordPath)
	}
	return nil
}

// do executes one backend exchange and returns the envelope's data field.
// unauthorizedKind is the error kind a 401 (or a success=false envelope
// with no more specific status) maps to for this operation.
func (c *Client) do(ctx context.Context, method, path, bearer string, body interface{}, unauthorizedKind error) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errs.Wrapf(err, "encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errs.Wrapf(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %s", session.ErrNetworkUnavailable, err.Error())
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	// The transport status wins; the envelope only contributes a message.
	if kind := statusKind(resp.StatusCode, unauthorizedKind); kind != nil {
		return nil, fmt.Errorf("%w: %s", kind, envelopeMessage(env, resp.StatusCode))
	}

	if decodeErr != nil {
		c.logger.Debug().Int("status", resp.StatusCode).Msg("malformed response envelope")
		return nil, fmt.Errorf("%w: malformed envelope (status %d)", session.ErrServer, resp.StatusCode)
	}

	if !env.Success {
		// Domain failure behind a 2xx transport status.
		return nil, fmt.Errorf("%w: %s", unauthorizedKind, envelopeMessage(env, resp.StatusCode))
	}

	return env.Data, nil
}

// statusKind maps a non-2xx transport status to an error kind; nil means
// the status itself is not a failure.
func statusKind(status int, unauthorizedKind error) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return unauthorizedKind
	case status == http.StatusTooManyRequests:
		return session.ErrRateLimited
	case status >= 500:
		return session.ErrServer
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return session.ErrValidation
	default:
		return session.ErrServer
	}
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", session.ErrNetworkTimeout, err.Error())
	}
	return fmt.Errorf("%w: %s", session.ErrNetworkUnavailable, err.Error())
}

func envelopeMessage(env envelope, status int) string {
	if env.Error != "" {
		return env.Error
	}
	if env.Message != "" {
		return env.Message
	}
	return fmt.Sprintf("status %d", status)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
