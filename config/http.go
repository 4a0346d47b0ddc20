package config

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// Used to resolve the post-sign-out redirect.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for the login state cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// AllowedOrigins lists browser origins allowed to call the server.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// APIProxy mounts an authenticated reverse proxy to the backend API at /api/.
	APIProxy bool `env:"HTTP_API_PROXY" envDefault:"true"`
	// APIProxyRole is the minimum role a session needs to use the proxy. Empty allows any
	// authenticated session.
	APIProxyRole string `env:"HTTP_API_PROXY_ROLE" envDefault:"viewer"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")
	h.APIProxyRole = strings.ToLower(strings.TrimSpace(h.APIProxyRole))
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))

	origins := h.AllowedOrigins[:0]
	for _, o := range h.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	h.AllowedOrigins = origins
}

// Validate rejects an unknown proxy role and a cookie domain that is itself a public suffix.
func (h *HTTPConfig) Validate() error {
	if h.APIProxyRole != "" {
		if _, ok := domainauth.LookupRole(h.APIProxyRole); !ok {
			return apperrors.Misconfiguredf(
				"HTTP_API_PROXY_ROLE %q is not one of guest, viewer, operator, worker, admin", h.APIProxyRole)
		}
	}
	if h.CookieDomain == "" {
		return nil
	}
	if h.CookieDomain == "localhost" {
		return nil
	}
	if suffix, _ := publicsuffix.PublicSuffix(h.CookieDomain); suffix == h.CookieDomain {
		return apperrors.Misconfiguredf("APP_COOKIE_DOMAIN %q is a public suffix", h.CookieDomain)
	}
	return nil
}
