// Package config loads service configuration from config.toml, .env and POS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Store    StoreConfig
	JWT      JWTConfig
	Session  SessionConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool
}

// StoreConfig selects the repository backend: "memory" or "postgres".
type StoreConfig struct {
	Driver string
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// SessionConfig controls cart session eviction.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type HTTPConfig struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DefaultIdleTTL is how long an untouched cart session lives unless configured.
const DefaultIdleTTL = 2 * time.Hour

// DevJWTSecret signs cashier tokens outside production when none is configured.
const DevJWTSecret = "pharmacy-pos-development-secret-not-for-production"

// Load reads configuration. Priority, highest first: POS_* environment variables
// (including those from .env), config.toml, built-in defaults. DATABASE_URL is
// honoured as a fallback for POS_DATABASE_URL.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Set through viper rather than applyDefaults so an explicit 0 survives;
	// a zero idle ttl disables sweeping.
	v.SetDefault("session.idle_ttl", DefaultIdleTTL)

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "POS_DATABASE_URL", "DATABASE_URL")

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("database.url"),
			MaxConns:    v.GetInt32("database.max_conns"),
			AutoMigrate: v.GetBool("database.auto_migrate"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Session: SessionConfig{
			IdleTTL:       v.GetDuration("session.idle_ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: splitList(v.GetString("http.allowed_origins")),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
		},
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pharmacy-pos"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Store.Driver == "" {
		if cfg.Database.URL != "" {
			cfg.Store.Driver = StorePostgres
		} else {
			cfg.Store.Driver = StoreMemory
		}
	}
	if cfg.JWT.Secret == "" && cfg.App.Env != "production" {
		cfg.JWT.Secret = DevJWTSecret
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "pharmacy-pos"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 12 * time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:" + cfg.App.Port}
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required when store.driver is %q", StorePostgres)
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Driver)
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns cannot be negative")
	}
	if c.IsProduction() && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 characters in production")
	}
	if c.Session.IdleTTL < 0 || c.Session.SweepInterval < 0 {
		return fmt.Errorf("session durations cannot be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
