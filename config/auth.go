package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
)

// HostedMode selects the hosted-identity provider.
type HostedMode string

const (
	// HostedModeOIDC uses an OIDC issuer for hosted sign-in.
	HostedModeOIDC HostedMode = "oidc"
	// HostedModeDev uses the development provider (for development only).
	HostedModeDev HostedMode = "dev"
	// HostedModeNone disables hosted sign-in.
	HostedModeNone HostedMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for HostedMode.
func (m *HostedMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "dev", "none":
		*m = HostedMode(v)
		return nil
	case "mock":
		*m = HostedModeDev
		return nil
	default:
		return fmt.Errorf("invalid HostedMode: %q (valid options: oidc, dev, none)", v)
	}
}

// OIDCConfig contains OAuth/OIDC configuration for the hosted provider.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
	// RefreshKey is the token-store key holding the hosted refresh token.
	RefreshKey string `env:"REFRESH_KEY" envDefault:"hosted_refresh_token"`
}

// DevAuthConfig controls the development hosted identity.
// Used when AUTH_HOSTED_MODE=dev for development and testing.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	Email           string        `env:"EMAIL"            envDefault:"dev@citycycle.local"`
	Name            string        `env:"NAME"             envDefault:"Dev User"`
	Secret          string        `env:"SECRET"           envDefault:"citycycle-dev-secret"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
	SignedIn        bool          `env:"SIGNED_IN"        envDefault:"false"`
}

// LegacyAuthConfig configures the legacy database-auth (GoTrue) provider.
type LegacyAuthConfig struct {
	Enabled bool   `env:"AUTH_LEGACY_ENABLED"  envDefault:"false"`
	URL     string `env:"LEGACY_AUTH_URL"`
	AnonKey string `env:"LEGACY_AUTH_ANON_KEY"`
	// RefreshKey is the token-store key holding the legacy refresh token.
	RefreshKey string `env:"LEGACY_AUTH_REFRESH_KEY" envDefault:"legacy_refresh_token"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// HostedMode determines which hosted-identity provider to use.
	HostedMode HostedMode `env:"AUTH_HOSTED_MODE" envDefault:"oidc"`

	// OIDC configuration (used when HostedMode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when HostedMode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	Legacy LegacyAuthConfig

	// ClaimsFallback projects hosted claims into a guest user when the backend is unreachable.
	ClaimsFallback bool `env:"AUTH_CLAIMS_FALLBACK" envDefault:"false"`

	// MaxRejections bounds consecutive backend rejections handled within one pass.
	MaxRejections int `env:"AUTH_MAX_REJECTIONS" envDefault:"3"`
}

// Sanitize trims values and clamps numeric settings.
func (c *AuthConfig) Sanitize() {
	c.OIDC.ClientID = strings.TrimSpace(c.OIDC.ClientID)
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	c.OIDC.RedirectURL = strings.TrimSpace(c.OIDC.RedirectURL)
	c.Legacy.URL = strings.TrimRight(strings.TrimSpace(c.Legacy.URL), "/")
	c.Legacy.AnonKey = strings.TrimSpace(c.Legacy.AnonKey)
	if c.HostedMode == "" {
		c.HostedMode = HostedModeOIDC
	}
	if c.MaxRejections < 1 {
		c.MaxRejections = 1
	}
	if c.DevAuth.SessionDuration <= 0 {
		c.DevAuth.SessionDuration = 8 * time.Hour
	}
}

// Validate checks the provider settings required by the selected modes.
func (c *AuthConfig) Validate(isDev bool) error {
	var errs []error
	switch c.HostedMode {
	case HostedModeOIDC:
		if c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" {
			errs = append(errs, apperrors.Misconfigured("OIDC_CLIENT_ID and OIDC_CLIENT_SECRET are required when AUTH_HOSTED_MODE=oidc"))
		}
		if err := requireAbsoluteURL("OIDC_DISCOVERY_URL", c.OIDC.DiscoveryURL); err != nil {
			errs = append(errs, err)
		}
		if err := requireAbsoluteURL("OIDC_REDIRECT_URL", c.OIDC.RedirectURL); err != nil {
			errs = append(errs, err)
		}
	case HostedModeDev:
		if !isDev {
			errs = append(errs, apperrors.Misconfigured("AUTH_HOSTED_MODE=dev requires DEV=true"))
		}
		if c.DevAuth.Secret == "" {
			errs = append(errs, apperrors.Misconfigured("DEV_AUTH_SECRET is required when AUTH_HOSTED_MODE=dev"))
		}
	}
	if c.Legacy.Enabled {
		if err := requireAbsoluteURL("LEGACY_AUTH_URL", c.Legacy.URL); err != nil {
			errs = append(errs, err)
		}
		if c.Legacy.AnonKey == "" {
			errs = append(errs, apperrors.Misconfigured("LEGACY_AUTH_ANON_KEY is required when AUTH_LEGACY_ENABLED=true"))
		}
	}
	return errors.Join(errs...)
}

func requireAbsoluteURL(name, raw string) error {
	if raw == "" {
		return apperrors.Misconfiguredf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.Misconfiguredf("%s %q is not an absolute URL", name, raw)
	}
	return nil
}
