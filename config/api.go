package config

import (
	"errors"
	"strings"
	"time"

	"github.com/sudheendra1210/Citycycle/internal/adapters/backend"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
)

// APIConfig configures the CityCycle backend client.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. "https://api.citycycle.example".
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"15s"`

	// Profile holds JMESPath expressions mapping the /api/auth/me document to a user.
	// Empty expressions use the built-in defaults.
	Profile ProfileConfig `envPrefix:"PROFILE_"`
}

// ProfileConfig holds per-field JMESPath expressions.
type ProfileConfig struct {
	ID            string `env:"ID"`
	Email         string `env:"EMAIL"`
	Name          string `env:"NAME"`
	Phone         string `env:"PHONE"`
	Area          string `env:"AREA"`
	Role          string `env:"ROLE"`
	PhoneVerified string `env:"PHONE_VERIFIED"`
}

// Expressions converts the config into backend.ProfileExpressions.
func (p ProfileConfig) Expressions() backend.ProfileExpressions {
	return backend.ProfileExpressions{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Phone:         p.Phone,
		Area:          p.Area,
		Role:          p.Role,
		PhoneVerified: p.PhoneVerified,
	}
}

// Sanitize trims the base URL and applies a sane timeout floor.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate requires an absolute base URL and compilable profile expressions.
func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return apperrors.Misconfigured("API_BASE_URL is required")
	}
	errs := []error{requireAbsoluteURL("API_BASE_URL", c.BaseURL)}
	for name, expr := range map[string]string{
		"API_PROFILE_ID":             c.Profile.ID,
		"API_PROFILE_EMAIL":          c.Profile.Email,
		"API_PROFILE_NAME":           c.Profile.Name,
		"API_PROFILE_PHONE":          c.Profile.Phone,
		"API_PROFILE_AREA":           c.Profile.Area,
		"API_PROFILE_ROLE":           c.Profile.Role,
		"API_PROFILE_PHONE_VERIFIED": c.Profile.PhoneVerified,
	} {
		if err := backend.ValidateExpression(expr); err != nil {
			errs = append(errs, apperrors.Misconfiguredf("%s: %v", name, err))
		}
	}
	return errors.Join(errs...)
}
