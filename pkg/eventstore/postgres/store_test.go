//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/eventstore/postgres"
	"github.com/iscc/iscc-hub/pkg/eventstore/storetest"
)

var sharedDSN string

// TestMain boots a single shared postgres container for the package so
// every conformance run migrates and exercises the same fresh schema.
func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "iscchub_test",
			"POSTGRES_USER":     "iscchub_test",
			"POSTGRES_PASSWORD": "iscchub_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("5432/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	sharedDSN = fmt.Sprintf("postgres://iscchub_test:iscchub_test@%s:%s/iscchub_test?sslmode=disable",
		host, port.Port())

	exitCode := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}

	os.Exit(exitCode)
}

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) eventstore.Store {
		truncateSharedSchema(t)

		cfg := postgres.Config{DSN: sharedDSN}
		store, err := postgres.Open(context.Background(), cfg, slog.Default())
		if err != nil {
			t.Fatalf("postgres.Open() failed: %v", err)
		}
		t.Cleanup(func() {
			store.Close()
		})
		return store
	})
}

// truncateSharedSchema resets the shared container's tables between
// subtests, since every subtest gets its own factory call but all share one
// running postgres instance.
func truncateSharedSchema(t *testing.T) {
	t.Helper()

	db, err := sql.Open("pgx", sharedDSN)
	if err != nil {
		t.Fatalf("truncateSharedSchema: open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`TRUNCATE TABLE units, events RESTART IDENTITY CASCADE`); err != nil {
		// First call races the initial migration; ignore missing-table errors.
		t.Logf("truncateSharedSchema: truncate skipped: %v", err)
	}
}
