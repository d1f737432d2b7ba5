package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/eventstore/badger"
	"github.com/iscc/iscc-hub/pkg/eventstore/memory"
	"github.com/iscc/iscc-hub/pkg/eventstore/postgres"
)

// CreateEventStore opens the event store backend selected by cfg.Engine.
func CreateEventStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (eventstore.Store, error) {
	switch cfg.Engine {
	case "memory":
		return memory.New(), nil
	case "badger":
		return createBadgerStore(cfg.Badger)
	case "postgres":
		return createPostgresStore(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown event store engine: %q", cfg.Engine)
	}
}

func createBadgerStore(cfg BadgerStoreConfig) (eventstore.Store, error) {
	store, err := badger.Open(badger.Config{Path: cfg.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to open badger event store: %w", err)
	}
	return store, nil
}

func createPostgresStore(ctx context.Context, cfg PostgresStoreConfig, logger *slog.Logger) (eventstore.Store, error) {
	pgCfg := postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns}
	store, err := postgres.Open(ctx, pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres event store: %w", err)
	}
	return store, nil
}
