package config

type Config interface {
	EnvConfig
	BackendConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetStateDir() string
}

type mainConfig struct {
	EnvVars
	Backend
	Session
}

func New() Config {
	return mainConfig{}
}
