package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sudheendra1210/Citycycle/config"
	"github.com/sudheendra1210/Citycycle/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)
	return bootstrap.Run(&cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting citycycle session server",
		"addr", cfg.HTTP.Addr,
		"api_base_url", cfg.API.BaseURL,
		"hosted_mode", cfg.Auth.HostedMode,
		"legacy_auth", cfg.Auth.Legacy.Enabled,
		"token_store", cfg.Storage.Backend,
		"dev", cfg.IsDev)
}
