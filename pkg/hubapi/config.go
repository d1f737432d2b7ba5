package hubapi

import "time"

// Config configures the declaration/lookup HTTP server, mirroring the
// teacher's pkg/api.APIConfig shape.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxEventsPageSize caps GET /events?limit= to protect against bulk
	// export being used as a denial-of-service vector.
	MaxEventsPageSize int
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxEventsPageSize <= 0 {
		c.MaxEventsPageSize = 1000
	}
}
