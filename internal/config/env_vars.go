package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	stateDirVar = "STATE_DIR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Healthcare Admin")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "development")
}

// GetStateDir returns the directory credentials are persisted under.
// Defaults to a per-user config directory.
func (EnvVars) GetStateDir() string {
	if dir := GetEnv(stateDirVar, ""); dir != "" {
		return dir
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".healthcare-admin"
	}
	return filepath.Join(configDir, "healthcare-admin")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
