package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sudheendra1210/Citycycle/config"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	httpx "github.com/sudheendra1210/Citycycle/internal/http"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPHandler assembles the router and its middleware.
// Order: Recover -> Logging -> CORS -> CSRF -> Router.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	svc := cfg.Services

	services := httpx.RouterServices{
		Sessions:     svc.Sessions,
		Bridge:       svc.Bridge,
		Flow:         svc.Providers.Flow,
		Password:     svc.Providers.Password,
		CookieDomain: appCfg.HTTP.CookieDomain,
		LogoutURL:    svc.Providers.LogoutURL,
		Logger:       logger,
	}

	if appCfg.HTTP.APIProxy {
		target, err := url.Parse(appCfg.API.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse API base URL: %w", err)
		}
		services.API = httpx.NewAPIProxy(target, svc.Transport, logger)
		services.APIRole = domainauth.RoleGuest
		if appCfg.HTTP.APIProxyRole != "" {
			role, ok := domainauth.LookupRole(appCfg.HTTP.APIProxyRole)
			if !ok {
				return nil, apperrors.Misconfiguredf("unknown API proxy role %q", appCfg.HTTP.APIProxyRole)
			}
			services.APIRole = role
		}
	}

	h := httpx.NewRouter(services)
	h = httpx.CSRFProtection(httpx.CSRFConfig{
		CookieDomain:   appCfg.HTTP.CookieDomain,
		AllowedOrigins: appCfg.HTTP.AllowedOrigins,
	})(h)
	h = httpx.CORS(appCfg.HTTP.AllowedOrigins)(h)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h, nil
}

func newServer(handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	// WriteTimeout stays zero: /session/events is a long-lived stream.
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serveHTTP runs server until ctx is canceled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
