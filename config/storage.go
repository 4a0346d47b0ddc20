package config

import (
	"fmt"
	"strings"

	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
)

// TokenStoreBackend selects where the custom-otp-backend token (and provider refresh tokens) live.
type TokenStoreBackend string

const (
	TokenStoreSQLite TokenStoreBackend = "sqlite"
	TokenStoreRedis  TokenStoreBackend = "redis"
	TokenStoreMemory TokenStoreBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenStoreBackend.
func (b *TokenStoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "sqlite", "redis", "memory":
		*b = TokenStoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid TokenStoreBackend: %q (valid options: sqlite, redis, memory)", v)
	}
}

// StorageConfig configures durable token storage.
type StorageConfig struct {
	Backend TokenStoreBackend `env:"BACKEND" envDefault:"sqlite"`
	// Path is the SQLite database file.
	Path string `env:"PATH" envDefault:"citycycle-session.db"`
	// Key is the durable key of the custom-otp-backend token.
	Key string `env:"KEY" envDefault:"citycycle_token"`
}

// Sanitize trims values and fills defaults.
func (c *StorageConfig) Sanitize() {
	c.Path = strings.TrimSpace(c.Path)
	c.Key = strings.TrimSpace(c.Key)
	if c.Backend == "" {
		c.Backend = TokenStoreSQLite
	}
	if c.Key == "" {
		c.Key = "citycycle_token"
	}
}

// Validate requires a path for the SQLite backend.
func (c *StorageConfig) Validate() error {
	if c.Backend == TokenStoreSQLite && c.Path == "" {
		return apperrors.Misconfigured("TOKEN_STORE_PATH is required when TOKEN_STORE_BACKEND=sqlite")
	}
	return nil
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"citycycle:"`
}

// Validate checks the selected topology has addresses.
func (c *RedisConfig) Validate() error {
	switch {
	case c.UseCluster && len(c.ClusterNodes) == 0:
		return apperrors.Misconfigured("REDIS_CLUSTER_NODES is required when REDIS_USE_CLUSTER=true")
	case c.UseSentinel && len(c.SentinelNodes) == 0:
		return apperrors.Misconfigured("REDIS_SENTINEL_NODES is required when REDIS_USE_SENTINEL=true")
	case !c.UseCluster && !c.UseSentinel && strings.TrimSpace(c.URI) == "":
		return apperrors.Misconfigured("REDIS_URI is required")
	}
	return nil
}
