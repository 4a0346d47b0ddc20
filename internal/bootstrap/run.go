package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sudheendra1210/Citycycle/config"
)

// Run wires the services, starts the bridge, restores provider sessions and serves HTTP until
// SIGINT or SIGTERM.
func Run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Error("close services", "error", cerr)
		}
	}()

	handler, err := BuildHTTPHandler(&HTTPServerConfig{Config: cfg, Services: svc, Logger: logger})
	if err != nil {
		return err
	}
	return Serve(ctx, svc, newServer(handler, cfg.HTTP.Addr), logger)
}

// Serve runs the bridge, provider restore and the HTTP server until ctx is canceled or one
// of them fails.
func Serve(ctx context.Context, svc *ServiceContainer, server *http.Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := svc.Bridge.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := svc.Providers.Restore(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return serveHTTP(gctx, server, logger) })

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}
