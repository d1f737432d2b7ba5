// Package postgres is the relational eventstore.Store backend: a pgx v5
// pool over a schema matching spec.md §6's literal DDL, migrated with
// golang-migrate, grounded on the teacher's pkg/store/metadata/postgres
// (hand-written SQL) rather than its older gorm-based layer — see
// DESIGN.md for why.
package postgres

import (
	"fmt"
	"time"
)

// Config holds the configuration for the Postgres event store backend.
type Config struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// ApplyDefaults fills unset fields with conservative defaults, the same
// sizing the teacher's PostgresMetadataStoreConfig applies.
func (c *Config) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 3
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("eventstore/postgres: dsn is required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("eventstore/postgres: max_conns must be at least 1")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("eventstore/postgres: min_conns (%d) cannot exceed max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}
