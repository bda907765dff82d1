// Package config provides unified configuration loading for RecaptureDocs.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the RecaptureDocs services.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Splitter      SplitterConfig      `yaml:"splitter"`
	Marketplace   MarketplaceConfig   `yaml:"marketplace"`
	Payment       PaymentConfig       `yaml:"payment"`
	Events        EventsConfig        `yaml:"events"`
	Access        AccessConfig        `yaml:"access"`
	Devel         DevelConfig         `yaml:"devel"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is the externally reachable base used for worker pages and payment callbacks.
	PublicURL        string        `yaml:"public_url"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig holds job store snapshot settings.
type StorageConfig struct {
	Driver       string         `yaml:"driver"` // file, sqlite, postgres, redis or memory
	SnapshotName string         `yaml:"snapshot_name"`
	File         FileConfig     `yaml:"file"`
	SQLite       SQLiteConfig   `yaml:"sqlite"`
	Postgres     PostgresConfig `yaml:"postgres"`
	Redis        RedisConfig    `yaml:"redis"`
}

// FileConfig holds file snapshot settings.
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// SplitterConfig selects and tunes the page splitter.
type SplitterConfig struct {
	Backend        string        `yaml:"backend"` // pdftk or fitz
	PdftkPath      string        `yaml:"pdftk_path"`
	JPEGQuality    int           `yaml:"jpeg_quality"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	Timeout        time.Duration `yaml:"timeout"`
}

// MarketplaceConfig holds crowdsourcing marketplace settings.
type MarketplaceConfig struct {
	Driver             string        `yaml:"driver"` // http or sandbox
	Endpoint           string        `yaml:"endpoint"`
	AccessKey          string        `yaml:"access_key"`
	Timeout            time.Duration `yaml:"timeout"`
	Lifetime           time.Duration `yaml:"lifetime"`
	AssignmentDuration time.Duration `yaml:"assignment_duration"`
	FrameHeight        int           `yaml:"frame_height"`
	MaxAssignments     int           `yaml:"max_assignments"`
	Retries            int           `yaml:"retries"` // 0 disables retries
}

// PaymentConfig holds escrow gateway settings.
type PaymentConfig struct {
	Driver           string        `yaml:"driver"` // http or sandbox
	Endpoint         string        `yaml:"endpoint"`
	PipelineURL      string        `yaml:"pipeline_url"`
	AccessKey        string        `yaml:"access_key"`
	Timeout          time.Duration `yaml:"timeout"`
	SignatureVersion string        `yaml:"signature_version"`
	SignatureMethod  string        `yaml:"signature_method"`
	Retries          int           `yaml:"retries"` // 0 disables retries
}

// EventsConfig controls publishing of lifecycle events over Redis.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// AccessConfig gates uploads behind an invitation code.
type AccessConfig struct {
	RequireInvitation bool   `yaml:"require_invitation"`
	InvitationCode    string `yaml:"invitation_code"`
}

// DevelConfig enables the development-only routes.
type DevelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.Storage.File.Dir = ResolveRelativePath(path, cfg.Storage.File.Dir)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8082,
			PublicURL:        "http://localhost:8082",
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       "file",
			SnapshotName: "server",
			File: FileConfig{
				Dir: "data",
			},
			SQLite: SQLiteConfig{
				Path:         "/tmp/recapturedocs.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "recapture:",
			},
		},
		Splitter: SplitterConfig{
			Backend:        "pdftk",
			PdftkPath:      "pdftk",
			JPEGQuality:    90,
			MaxUploadBytes: 50 * 1024 * 1024,
			Timeout:        2 * time.Minute,
		},
		Marketplace: MarketplaceConfig{
			Driver:             "sandbox",
			Timeout:            30 * time.Second,
			Lifetime:           7 * 24 * time.Hour,
			AssignmentDuration: time.Hour,
			FrameHeight:        600,
			MaxAssignments:     1,
		},
		Payment: PaymentConfig{
			Driver:           "sandbox",
			PipelineURL:      "https://authorize.payments-sandbox.amazon.com/cobranded-ui/actions/start",
			Timeout:          30 * time.Second,
			SignatureVersion: "2",
			SignatureMethod:  "RSA-SHA1",
		},
		Events: EventsConfig{
			Enabled: false,
			Channel: "jobs.events",
		},
		Access: AccessConfig{
			RequireInvitation: false,
			InvitationCode:    "recaptureb1",
		},
		Devel: DevelConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "recapturedocs",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.PublicURL == "" {
		return fmt.Errorf("server public_url is required")
	}

	switch c.Storage.Driver {
	case "file", "sqlite", "memory", "redis":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("postgres storage requires a dsn")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	if c.Storage.SnapshotName == "" {
		return fmt.Errorf("storage snapshot_name is required")
	}

	if c.Splitter.Backend != "pdftk" && c.Splitter.Backend != "fitz" {
		return fmt.Errorf("invalid splitter backend: %s", c.Splitter.Backend)
	}

	if c.Splitter.JPEGQuality < 1 || c.Splitter.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}

	switch c.Marketplace.Driver {
	case "sandbox":
	case "http":
		if c.Marketplace.Endpoint == "" {
			return fmt.Errorf("http marketplace requires an endpoint")
		}
	default:
		return fmt.Errorf("invalid marketplace driver: %s", c.Marketplace.Driver)
	}

	if c.Marketplace.MaxAssignments != 1 {
		return fmt.Errorf("max_assignments must be 1, got %d", c.Marketplace.MaxAssignments)
	}

	if c.Marketplace.Retries < 0 || c.Payment.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}

	switch c.Payment.Driver {
	case "sandbox":
	case "http":
		if c.Payment.Endpoint == "" {
			return fmt.Errorf("http payment gateway requires an endpoint")
		}
	default:
		return fmt.Errorf("invalid payment driver: %s", c.Payment.Driver)
	}

	if c.Events.Enabled && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("events require a redis addr")
	}

	if c.Access.RequireInvitation && c.Access.InvitationCode == "" {
		return fmt.Errorf("require_invitation set without an invitation_code")
	}

	return nil
}

// PublicURLFor joins a path onto the public base URL.
func (c *Config) PublicURLFor(path string) string {
	return strings.TrimRight(c.Server.PublicURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Storage.Driver = "postgres"
			cfg.Storage.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("SPLITTER_BACKEND"); v != "" {
		cfg.Splitter.Backend = v
	}

	if v := os.Getenv("PDFTK_PATH"); v != "" {
		cfg.Splitter.PdftkPath = v
	}

	if v := os.Getenv("MARKETPLACE_ENDPOINT"); v != "" {
		cfg.Marketplace.Driver = "http"
		cfg.Marketplace.Endpoint = v
	}

	if v := os.Getenv("MARKETPLACE_ACCESS_KEY"); v != "" {
		cfg.Marketplace.AccessKey = v
	}

	if v := os.Getenv("PAYMENT_ENDPOINT"); v != "" {
		cfg.Payment.Driver = "http"
		cfg.Payment.Endpoint = v
	}

	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Payment.AccessKey = v
	}

	if v := os.Getenv("INVITATION_CODE"); v != "" {
		cfg.Access.InvitationCode = v
		cfg.Access.RequireInvitation = true
	}

	if v := os.Getenv("DEVEL"); v != "" {
		cfg.Devel.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
