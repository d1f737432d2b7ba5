package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_SkewSeconds(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.SkewSeconds != 600 {
		t.Errorf("Expected default skew_seconds 600, got %d", cfg.SkewSeconds)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
	if cfg.API.MaxEventsPageSize != 100 {
		t.Errorf("Expected default max_events_page_size 100, got %d", cfg.API.MaxEventsPageSize)
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Engine != "badger" {
		t.Errorf("Expected default store engine 'badger', got %q", cfg.Store.Engine)
	}
	if cfg.Store.Badger.Path == "" {
		t.Error("Expected default badger path to be set")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/iscc-hub.log",
		},
		ShutdownTimeout: 60 * time.Second,
		SkewSeconds:     120,
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/iscc-hub.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.SkewSeconds != 120 {
		t.Errorf("Expected explicit skew_seconds to be preserved, got %d", cfg.SkewSeconds)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.Seckey == "" {
		t.Error("Default config missing seckey path")
	}
	if cfg.Domain == "" {
		t.Error("Default config missing domain")
	}
	if cfg.Store.Badger.Path == "" {
		t.Error("Default config missing store badger path")
	}
}
