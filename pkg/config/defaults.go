package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//
// server_id, seckey, and domain have no defaults: an absent or
// out-of-range server_id is a fatal misconfiguration the HUB must not
// silently paper over.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyStoreDefaults(&cfg.Store)
	applyArchiveDefaults(&cfg.Archive)

	if cfg.SkewSeconds == 0 {
		cfg.SkewSeconds = 600
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets HTTP API server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.WriterQueueSize == 0 {
		cfg.WriterQueueSize = 1024
	}
	if cfg.MaxEventsPageSize == 0 {
		cfg.MaxEventsPageSize = 100
	}
}

// applyStoreDefaults sets event store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Engine == "" {
		cfg.Engine = "badger"
	}
	if cfg.Engine == "badger" && cfg.Badger.Path == "" {
		cfg.Badger.Path = "/var/lib/iscc-hub/events"
	}
	if cfg.Engine == "postgres" && cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
}

// applyArchiveDefaults sets S3 export defaults.
func applyArchiveDefaults(cfg *ArchiveConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10000
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "iscc-hub/events/"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied,
// plus placeholder identity values (server_id 1, seckey
// /etc/iscc-hub/hub.key, domain localhost) so that the result passes
// Validate. Load returns it when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{
		ServerID: 1,
		Seckey:   "/etc/iscc-hub/hub.key",
		Domain:   "localhost",
		Store: StoreConfig{
			Engine: "badger",
			Badger: BadgerStoreConfig{
				Path: "/var/lib/iscc-hub/events",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
