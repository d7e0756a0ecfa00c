package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Bridge modes.
const (
	BridgeModeLocal = "local"
	BridgeModeHTTP  = "http"
)

// HTTPConfig holds the serving address.
type HTTPConfig struct {
	Port string `yaml:"port" env:"PARKMETER_HTTP_PORT"`
}

// DatabaseConfig holds the postgres DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"PARKMETER_POSTGRES_DSN"`
}

// RedisConfig holds the snapshot cache connection. Addr may be empty to run
// without the cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"PARKMETER_REDIS_ADDR"`
	Password string `yaml:"password" env:"PARKMETER_REDIS_PASSWORD"`
	TTL      int    `yaml:"ttlSeconds" env:"PARKMETER_REDIS_TTL"`
}

// TariffConfig holds the hourly rate snapshotted into new sessions.
type TariffConfig struct {
	HourlyRateCents int64 `yaml:"hourlyRateCents" env:"PARKMETER_RATE_CENTS"`
}

// SyncConfig tunes the adaptive polling loop.
type SyncConfig struct {
	BaseInterval time.Duration `yaml:"baseInterval" env:"PARKMETER_SYNC_BASE_INTERVAL"`
}

// BridgeConfig selects how the ledger is reached. In "local" mode the
// in-process ledger is the authority; in "http" mode a remote instance is.
type BridgeConfig struct {
	Mode    string        `yaml:"mode" env:"PARKMETER_BRIDGE_MODE"`
	BaseURL string        `yaml:"baseUrl" env:"PARKMETER_BRIDGE_BASE_URL"`
	APIKey  string        `yaml:"apiKey" env:"PARKMETER_BRIDGE_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"PARKMETER_BRIDGE_TIMEOUT"`
}

// Config defines parkmeter configuration.
type Config struct {
	LogLevel string         `yaml:"logLevel" env:"LOG_LEVEL"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tariff   TariffConfig   `yaml:"tariff"`
	Sync     SyncConfig     `yaml:"sync"`
	Bridge   BridgeConfig   `yaml:"bridge"`
}

// Load reads configuration from YAML plus env overrides and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:   HTTPConfig{Port: "8090"},
		Tariff: TariffConfig{HourlyRateCents: 150000},
		Sync:   SyncConfig{BaseInterval: 15 * time.Second},
		Bridge: BridgeConfig{Mode: BridgeModeLocal, Timeout: 10 * time.Second},
		Redis:  RedisConfig{TTL: 120},
	}

	if err := load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if cfg.Tariff.HourlyRateCents <= 0 {
		return nil, errors.New("config: hourly rate must be positive")
	}
	if cfg.Sync.BaseInterval <= 0 {
		return nil, errors.New("config: sync base interval must be positive")
	}
	switch cfg.Bridge.Mode {
	case BridgeModeLocal:
	case BridgeModeHTTP:
		if strings.TrimSpace(cfg.Bridge.BaseURL) == "" {
			return nil, errors.New("config: bridge base url required in http mode")
		}
	default:
		return nil, fmt.Errorf("config: unknown bridge mode %q", cfg.Bridge.Mode)
	}

	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SnapshotTTL returns the redis snapshot expiry as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Redis.TTL) * time.Second
}
