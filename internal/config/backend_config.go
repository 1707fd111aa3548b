package config

import "time"

type BackendConfig interface {
	GetBackendBaseURL() string
	GetRequestTimeout() time.Duration
}

const (
	backendBaseURLVar = "BACKEND_BASE_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"

	defaultRequestTimeout = 30 * time.Second
)

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetBackendBaseURL() string {
	return GetEnv(backendBaseURLVar, "http://localhost:8080/api")
}

func (Backend) GetRequestTimeout() time.Duration {
	return getDuration(requestTimeoutVar, defaultRequestTimeout)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
