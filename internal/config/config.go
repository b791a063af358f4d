// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"p2p-lending/pkg/db" // Import db package for its Config structs
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// EnvProduction is the APP_ENV value that forbids development-only shortcuts.
const EnvProduction = "production"

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Driver string
	Path   string // file driver only
}

// KYCConfig holds the identity-verification settings.
type KYCConfig struct {
	Required bool
	BaseURL  string
	APIKey   string
	DevMode  bool // accept any document id of MinDocumentLength characters, no network call
}

// WalletConfig holds the wallet partner settings.
type WalletConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort      string
	Env             string
	DB              db.Config
	Redis           db.RedisConfig
	RedisKey        string
	Store           StoreConfig
	KYC             KYCConfig
	Wallet          WalletConfig
	Log             LogConfig
	UpstreamTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreDriverFile)
	v.SetDefault("STORE_PATH", "data.json")

	v.SetDefault("DB_HOST", "localhost")    // Default to localhost for local development
	v.SetDefault("DB_PORT", 5432)           // Default PostgreSQL port
	v.SetDefault("DB_USER", "user")         // Default user for local development
	v.SetDefault("DB_PASSWORD", "password") // Default password for local development
	v.SetDefault("DB_NAME", "lendingdb")    // Default database name for local development
	v.SetDefault("DB_SSLMODE", "disable")   // Default to disable for local development

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY", "lending:snapshot")

	v.SetDefault("KYC_REQUIRED", false)
	v.SetDefault("KYC_BASE_URL", "")
	v.SetDefault("KYC_API_KEY", "")
	v.SetDefault("KYC_DEV_MODE", false)

	v.SetDefault("WALLET_PARTNER_ENABLED", false)
	v.SetDefault("WALLET_BASE_URL", "")
	v.SetDefault("WALLET_API_KEY", "")

	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
}

// LoadConfig loads configuration from environment variables, optionally layered over the
// file named by CONFIG_FILE. Environment variables always win.
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("UPSTREAM_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}

	dbPort := v.GetInt("DB_PORT")
	if dbPort <= 0 {
		return nil, fmt.Errorf("invalid DB_PORT: %q", v.GetString("DB_PORT"))
	}

	cfg := &AppConfig{
		ServerPort: v.GetString("SERVER_PORT"),
		Env:        strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		DB: db.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     dbPort,
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: db.RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RedisKey: v.GetString("REDIS_KEY"),
		Store: StoreConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			Path:   v.GetString("STORE_PATH"),
		},
		KYC: KYCConfig{
			Required: v.GetBool("KYC_REQUIRED"),
			BaseURL:  v.GetString("KYC_BASE_URL"),
			APIKey:   v.GetString("KYC_API_KEY"),
			DevMode:  v.GetBool("KYC_DEV_MODE"),
		},
		Wallet: WalletConfig{
			Enabled: v.GetBool("WALLET_PARTNER_ENABLED"),
			BaseURL: v.GetString("WALLET_BASE_URL"),
			APIKey:  v.GetString("WALLET_API_KEY"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		UpstreamTimeout: timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate rejects combinations that cannot be served safely.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case StoreDriverFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("invalid config: STORE_PATH is required for the file driver")
		}
	case StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid config: unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.KYC.DevMode && c.IsProduction() {
		return fmt.Errorf("invalid config: KYC_DEV_MODE is not allowed in production")
	}
	if c.Wallet.Enabled && strings.TrimSpace(c.Wallet.BaseURL) == "" {
		return fmt.Errorf("invalid config: WALLET_BASE_URL is required when WALLET_PARTNER_ENABLED is set")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("invalid config: UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}
