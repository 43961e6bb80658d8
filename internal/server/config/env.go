package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is an intermediate DTO for environment parsing. Lifetimes are
// accepted as integer minutes to match the deployment convention.
type envConfig struct {
	EndpointAddrHTTP             string `env:"ENDPOINT_ADDR_HTTP"`
	DatabaseDSN                  string `env:"DATABASE_DSN"`
	JwtKey                       string `env:"JWT_KEY"`
	AccessTokenExpiresInMinutes  int64  `env:"ACCESS_TOKEN_EXPIRES_IN_MINUTES"`
	RefreshTokenExpiresInMinutes int64  `env:"REFRESH_TOKEN_EXPIRES_IN_MINUTES"`
}

// parseEnv overlays environment variables onto the provided Config.
// Unset variables leave the current values untouched.
func parseEnv(config *Config) error {
	c := envConfig{}
	if err := env.Parse(&c); err != nil {
		return err
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.JwtKey != "" {
		config.JwtKey = c.JwtKey
	}
	if c.AccessTokenExpiresInMinutes != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenExpiresInMinutes) * time.Minute
	}
	if c.RefreshTokenExpiresInMinutes != 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenExpiresInMinutes) * time.Minute
	}

	return nil
}
