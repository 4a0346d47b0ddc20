package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sudheendra1210/Citycycle/config"
	"github.com/sudheendra1210/Citycycle/internal/adapters/devauth"
	"github.com/sudheendra1210/Citycycle/internal/adapters/gotrue"
	"github.com/sudheendra1210/Citycycle/internal/adapters/oidc"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// restorer is implemented by providers that resume a persisted session at startup.
type restorer interface {
	Restore(ctx context.Context) error
}

// Providers is the configured identity provider set.
type Providers struct {
	// List is in precedence order: hosted first, then legacy.
	List []ports.IdentityProvider
	// Flow is the redirect login flow, nil when hosted sign-in is disabled.
	Flow ports.LoginFlow
	// Password is the email/password sign-in, nil when no provider offers it.
	Password ports.PasswordLogin
	// LogoutURL is the hosted end-session URL handed to the browser on sign-out.
	LogoutURL string

	restorers []restorer
}

// Restore resumes every persisted provider session concurrently.
// Providers report loaded when their restore finishes, whatever the outcome.
func (p *Providers) Restore(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range p.restorers {
		g.Go(func() error { return r.Restore(gctx) })
	}
	return g.Wait()
}

// ProviderConfig contains dependencies for BuildProviders.
type ProviderConfig struct {
	Config *config.AppConfig
	Stores *TokenStores
	Logger *slog.Logger
}

// BuildProviders constructs the hosted and legacy providers the configuration enables.
func BuildProviders(cfg ProviderConfig) (*Providers, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Config.Auth
	out := &Providers{}

	switch auth.HostedMode {
	case config.HostedModeOIDC:
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     auth.OIDC.ClientID,
			ClientSecret: auth.OIDC.ClientSecret,
			RedirectURL:  auth.OIDC.RedirectURL,
			Scope:        auth.OIDC.Scope,
			DiscoveryURL: auth.OIDC.DiscoveryURL,
			LogoutURL:    auth.OIDC.LogoutURL,
			HTTPClient:   &http.Client{Timeout: 30 * time.Second},
			RefreshStore: cfg.Stores.Hosted,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		out.List = append(out.List, prov)
		out.Flow = prov
		out.LogoutURL = prov.LogoutURL()
		out.restorers = append(out.restorers, prov)
		logger.Info("hosted sign-in enabled", "mode", "oidc")

	case config.HostedModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:          auth.DevAuth.UserID,
			Email:           auth.DevAuth.Email,
			Name:            auth.DevAuth.Name,
			Secret:          auth.DevAuth.Secret,
			SessionDuration: auth.DevAuth.SessionDuration,
			SignedIn:        auth.DevAuth.SignedIn,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		out.List = append(out.List, prov)
		out.Flow = prov
		out.Password = prov
		logger.Warn("hosted sign-in uses the development provider", "user_id", auth.DevAuth.UserID)

	case config.HostedModeNone:
		logger.Info("hosted sign-in disabled")
	}

	if auth.Legacy.Enabled {
		prov, err := gotrue.NewProvider(gotrue.Config{
			URL:          auth.Legacy.URL,
			AnonKey:      auth.Legacy.AnonKey,
			HTTPClient:   &http.Client{Timeout: 30 * time.Second},
			RefreshStore: cfg.Stores.Legacy,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("legacy auth provider: %w", err)
		}
		out.List = append(out.List, prov)
		out.Password = prov
		out.restorers = append(out.restorers, prov)
		logger.Info("legacy sign-in enabled")
	}

	return out, nil
}
