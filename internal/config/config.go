package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

type Config interface {
	EnvConfig
	SessionConfig
	TransportConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetMediaBaseURL() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Session
	Transport
	Store
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New reads the configuration from the environment and validates it.
func New() (Config, error) {
	c := mainConfig{}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}
