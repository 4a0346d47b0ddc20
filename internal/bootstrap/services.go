package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sudheendra1210/Citycycle/config"
	"github.com/sudheendra1210/Citycycle/internal/adapters/backend"
	"github.com/sudheendra1210/Citycycle/internal/credential"
	"github.com/sudheendra1210/Citycycle/internal/gateway"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
	"github.com/sudheendra1210/Citycycle/internal/service"
	"github.com/sudheendra1210/Citycycle/internal/session"
)

// ServiceContainer holds the wired session bridging layer.
type ServiceContainer struct {
	Stores    *TokenStores
	Providers *Providers
	Sessions  *session.Store
	Chain     *credential.Chain
	Bridge    *service.Bridge
	// Gateway is the authenticated client for backend requests.
	Gateway *http.Client
	// Transport is the gateway transport, shared with the API proxy.
	Transport *gateway.Transport
	API       *backend.Client
	Metrics   statsd.Sink

	closers []func() error
}

// Close releases stores and the metrics connection.
func (c *ServiceContainer) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
	// Stores overrides BuildTokenStores, mainly for tests.
	Stores *TokenStores
	// Providers overrides BuildProviders, mainly for tests.
	Providers *Providers
	// Metrics overrides the configured sink.
	Metrics statsd.Sink
}

// NewServices wires stores, providers, the credential chain, the gateway and the bridge.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &ServiceContainer{}

	c.Metrics = deps.Metrics
	if c.Metrics == nil {
		sink, closer, err := buildMetrics(logger, cfg.Observability)
		if err != nil {
			return nil, err
		}
		c.Metrics = sink
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	c.Stores = deps.Stores
	if c.Stores == nil {
		stores, err := BuildTokenStores(TokenStoreConfig{Config: cfg, Logger: logger})
		if err != nil {
			return nil, closeOnError(c, err)
		}
		c.Stores = stores
		c.closers = append(c.closers, stores.Close)
	}

	c.Providers = deps.Providers
	if c.Providers == nil {
		providers, err := BuildProviders(ProviderConfig{Config: cfg, Stores: c.Stores, Logger: logger})
		if err != nil {
			return nil, closeOnError(c, err)
		}
		c.Providers = providers
	}

	c.Chain = credential.New(credential.Options{
		Providers: c.Providers.List,
		Tokens:    c.Stores.OTP,
		Logger:    logger,
	})
	c.Transport = gateway.NewTransport(gateway.TransportOptions{
		Resolver: c.Chain,
		Logger:   logger,
		Metrics:  c.Metrics,
	})
	c.Gateway = &http.Client{Timeout: cfg.API.Timeout, Transport: c.Transport}

	mapper, err := backend.NewProfileMapper(cfg.API.Profile.Expressions())
	if err != nil {
		return nil, closeOnError(c, fmt.Errorf("profile mapping: %w", err))
	}
	c.API, err = backend.NewClient(backend.Options{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Gateway:    c.Gateway,
		Mapper:     mapper,
		Logger:     logger,
	})
	if err != nil {
		return nil, closeOnError(c, err)
	}

	c.Sessions = session.NewStore()
	c.Bridge, err = service.NewBridge(service.BridgeOptions{
		Providers:      c.Providers.List,
		Tokens:         c.Stores.OTP,
		API:            c.API,
		Store:          c.Sessions,
		Chain:          c.Chain,
		Logger:         logger,
		Metrics:        c.Metrics,
		ClaimsFallback: cfg.Auth.ClaimsFallback,
		MaxRejections:  cfg.Auth.MaxRejections,
	})
	if err != nil {
		return nil, closeOnError(c, err)
	}

	return c, nil
}

func closeOnError(c *ServiceContainer, err error) error {
	if cerr := c.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// buildMetrics returns a StatsD client when metrics are enabled, otherwise a no-op sink.
func buildMetrics(logger *slog.Logger, cfg config.ObservabilityConfig) (statsd.Sink, func() error, error) {
	if !cfg.Metrics.IsEnabled() {
		return statsd.Nop{}, nil, nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.Metrics.StatsdAddress,
		Prefix:     cfg.Metrics.Prefix,
		Logger:     logger.With("component", "statsd"),
		GlobalTags: cfg.Metrics.StaticTags(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("statsd client: %w", err)
	}
	logger.Info("metrics enabled", "address", cfg.Metrics.StatsdAddress, "prefix", cfg.Metrics.Prefix)
	return client, client.Close, nil
}
