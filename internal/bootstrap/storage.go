package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sudheendra1210/Citycycle/config"
	redisadapter "github.com/sudheendra1210/Citycycle/internal/adapters/redis"
	"github.com/sudheendra1210/Citycycle/internal/adapters/sqlite"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// TokenStores holds the durable slots the bridge and providers persist into.
type TokenStores struct {
	// OTP holds the custom-otp-backend session token.
	OTP ports.TokenStore
	// Hosted and Legacy hold provider refresh tokens.
	Hosted ports.TokenStore
	Legacy ports.TokenStore

	closers []func() error
}

// Close releases the underlying database or client.
func (s *TokenStores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TokenStoreConfig contains dependencies for BuildTokenStores.
type TokenStoreConfig struct {
	Config *config.AppConfig
	// Redis is used when the backend is redis. ConnectRedis is called when nil.
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// BuildTokenStores opens the configured token store backend.
func BuildTokenStores(cfg TokenStoreConfig) (*TokenStores, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	keys := storeKeys{
		otp:    appCfg.Storage.Key,
		hosted: appCfg.Auth.OIDC.RefreshKey,
		legacy: appCfg.Auth.Legacy.RefreshKey,
	}

	switch appCfg.Storage.Backend {
	case config.TokenStoreRedis:
		client := cfg.Redis
		stores := &TokenStores{}
		if client == nil {
			c, err := ConnectRedis(RedisConnConfig{RedisConfig: appCfg.Redis, Logger: logger})
			if err != nil {
				return nil, err
			}
			client = c
			stores.closers = append(stores.closers, c.Close)
		}
		prefix := appCfg.Redis.KeyPrefix
		stores.OTP = redisadapter.NewTokenStoreWithPrefix(client, prefix, keys.otp)
		stores.Hosted = redisadapter.NewTokenStoreWithPrefix(client, prefix, keys.hosted)
		stores.Legacy = redisadapter.NewTokenStoreWithPrefix(client, prefix, keys.legacy)
		logger.Info("token store ready", "backend", "redis", "prefix", prefix)
		return stores, nil

	case config.TokenStoreMemory:
		return openSQLite(sqlite.MemoryPath, keys, logger)

	case config.TokenStoreSQLite, "":
		return openSQLite(appCfg.Storage.Path, keys, logger)

	default:
		return nil, fmt.Errorf("unsupported token store backend %q", appCfg.Storage.Backend)
	}
}

type storeKeys struct {
	otp, hosted, legacy string
}

func openSQLite(path string, keys storeKeys, logger *slog.Logger) (*TokenStores, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	logger.Info("token store ready", "backend", "sqlite", "path", path)
	return &TokenStores{
		OTP:     db.Key(keys.otp),
		Hosted:  db.Key(keys.hosted),
		Legacy:  db.Key(keys.legacy),
		closers: []func() error{db.Close},
	}, nil
}
