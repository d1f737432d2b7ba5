package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the ISCC HUB configuration.
//
// This structure captures the HUB's static configuration:
//   - Identity: server_id, signing key, did:web domain
//   - Validation: clock skew tolerance
//   - Storage: event store engine and its connection settings
//   - Ambient concerns: logging, telemetry, metrics, HTTP API
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ISCCHUB_*), for keys present in the file
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// The only CLI flag is --config, which selects the file; no flag overrides
// an individual value. When no config file is found, Load returns
// GetDefaultConfig() and environment variables are not applied.
type Config struct {
	// ServerID is the HUB's 12-bit identifier, embedded in every minted
	// ISCC-ID and checked against the top 12 bits of every note's nonce.
	ServerID uint16 `mapstructure:"server_id" validate:"min=0,max=4095" yaml:"server_id"`

	// Seckey is the filesystem path to the HUB's Ed25519 private key,
	// used to sign receipts and to derive the did:web controller id.
	Seckey string `mapstructure:"seckey" validate:"required" yaml:"seckey"`

	// Domain is the DNS name under which this HUB publishes its did:web
	// identity document (e.g. "hub.iscc.foundation").
	Domain string `mapstructure:"domain" validate:"required" yaml:"domain"`

	// SkewSeconds is the maximum allowed difference between a note's
	// client-asserted timestamp and the HUB's clock.
	SkewSeconds int `mapstructure:"skew_seconds" validate:"gte=0" yaml:"skew_seconds"`

	// ShutdownTimeout is the maximum time to wait for the writer lane to
	// drain during graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Store configures the event store backend.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the HTTP ingress/query server configuration.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Archive contains optional periodic S3 export configuration.
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// StoreConfig selects and configures the event store backend.
type StoreConfig struct {
	// Engine selects the backend: "badger" (default), "postgres", or
	// "memory" (tests only, never durable).
	Engine string `mapstructure:"engine" validate:"required,oneof=badger postgres memory" yaml:"engine"`

	// Badger configures the embedded BadgerDB backend.
	Badger BadgerStoreConfig `mapstructure:"badger" yaml:"badger"`

	// Postgres configures the relational backend.
	Postgres PostgresStoreConfig `mapstructure:"postgres" yaml:"postgres"`
}

// BadgerStoreConfig configures the pkg/eventstore/badger backend.
type BadgerStoreConfig struct {
	// Path is the directory BadgerDB uses for its log/value files.
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresStoreConfig configures the pkg/eventstore/postgres backend.
type PostgresStoreConfig struct {
	// DSN is the PostgreSQL connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// MaxConns caps the pgx pool's concurrent connections.
	MaxConns int32 `mapstructure:"max_conns" yaml:"max_conns"`

	// MigrationsPath is read from configuration but not passed to the
	// postgres backend, which always applies its embedded migrations on
	// open.
	MigrationsPath string `mapstructure:"migrations_path" yaml:"migrations_path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig configures the HTTP ingress/query server.
type APIConfig struct {
	// Enabled defaults to true; a pointer distinguishes "unset" from
	// "explicitly false". cmd/iscchubd start does not read it: the API
	// server always starts.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	Port         int           `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// WriterQueueSize bounds the sequencer's single-writer-lane channel,
	// the backpressure knob behind the 429 BUSY response.
	WriterQueueSize int `mapstructure:"writer_queue_size" validate:"omitempty,min=1" yaml:"writer_queue_size"`

	// MaxEventsPageSize caps GET /events?limit= to protect against bulk
	// export being used as a denial-of-service vector.
	MaxEventsPageSize int `mapstructure:"max_events_page_size" validate:"omitempty,min=1" yaml:"max_events_page_size"`
}

// ArchiveConfig configures optional periodic export of committed event
// ranges to S3 for external auditors.
type ArchiveConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Bucket   string        `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region   string        `mapstructure:"region" yaml:"region,omitempty"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval,omitempty"`
	// BatchSize is the number of events exported per archive segment.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	if !v.IsSet("server_id") {
		return nil, fmt.Errorf("configuration validation failed: server_id is required")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// expected config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  iscchubd init\n\n"+
				"Or specify a custom config file:\n"+
				"  iscchubd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  iscchubd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: config may embed a DSN with a password or a path to the HUB's
	// private key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ISCCHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts human-readable duration strings like "30s"
// or "5m" into time.Duration during config unmarshalling.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "iscchub")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "iscchub")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
