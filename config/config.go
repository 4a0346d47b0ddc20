package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity providers and bridge behavior
//   - api.go: CityCycle backend client
//   - storage.go: durable token storage (SQLite, Redis)
//   - http.go: local backend-for-frontend server
//   - observability.go: metrics
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Identity provider configuration
	Auth AuthConfig

	// Backend API configuration
	API APIConfig `envPrefix:"API_"`

	// Token storage configuration
	Storage StorageConfig `envPrefix:"TOKEN_STORE_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.API.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// Validate reports every misconfiguration at once. Call it after Sanitize;
// a non-nil result is fatal at startup.
func (c *AppConfig) Validate() error {
	errs := []error{
		c.Auth.Validate(c.IsDev),
		c.API.Validate(),
		c.Storage.Validate(),
		c.HTTP.Validate(),
	}
	if c.Storage.Backend == TokenStoreRedis {
		errs = append(errs, c.Redis.Validate())
	}
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
