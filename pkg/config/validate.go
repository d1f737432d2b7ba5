package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration's struct-tag constraints plus a few
// cross-field rules the tags alone can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	if cfg.Store.Engine == "postgres" && cfg.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn is required when store.engine is postgres")
	}

	if cfg.Store.Engine == "badger" && cfg.Store.Badger.Path == "" {
		return fmt.Errorf("store.badger.path is required when store.engine is badger")
	}

	return nil
}
