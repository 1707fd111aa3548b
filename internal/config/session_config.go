package config

import (
	"strconv"
	"time"
)

type SessionConfig interface {
	GetRefreshThreshold() time.Duration
	GetIdleTimeout() time.Duration
	GetLoginRatePerMinute() int
	GetLoginBurst() int
	GetCredentialSecret() string
}

const (
	refreshThresholdVar   = "REFRESH_THRESHOLD"
	idleTimeoutVar        = "IDLE_TIMEOUT"
	loginRatePerMinuteVar = "LOGIN_RATE_PER_MINUTE"
	loginBurstVar         = "LOGIN_BURST"
	credentialSecretVar   = "CREDENTIAL_SECRET"

	defaultRefreshThreshold   = 5 * time.Minute
	defaultIdleTimeout        = 30 * time.Minute
	defaultLoginRatePerMinute = 10
	defaultLoginBurst         = 5
)

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshThreshold() time.Duration {
	return getDuration(refreshThresholdVar, defaultRefreshThreshold)
}

func (Session) GetIdleTimeout() time.Duration {
	return getDuration(idleTimeoutVar, defaultIdleTimeout)
}

func (Session) GetLoginRatePerMinute() int {
	return getInt(loginRatePerMinuteVar, defaultLoginRatePerMinute)
}

func (Session) GetLoginBurst() int {
	return getInt(loginBurstVar, defaultLoginBurst)
}

// GetCredentialSecret returns the secret used to encrypt persisted
// credentials at rest. Empty means credentials are stored unencrypted.
func (Session) GetCredentialSecret() string {
	return GetEnv(credentialSecretVar, "")
}

func getInt(envVar string, defaultValue int) int {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
