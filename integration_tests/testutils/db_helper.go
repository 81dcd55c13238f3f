// Package testutils provides the shared Postgres environment for integration tests.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Black-And-White-Club/parkour-bot/app/migrations"
	"github.com/Black-And-White-Club/parkour-bot/integration_tests/containers"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// appTables are truncated between tests. Order does not matter with CASCADE.
var appTables = []string{"playtest_votes", "playtests", "completions", "pending_map_reconciles", "map_ratings", "maps", "users"}

// Environment is a migrated Postgres database in a container.
type Environment struct {
	DB        *bun.DB
	DSN       string
	container *postgres.PostgresContainer
}

// NewEnvironment starts Postgres and runs every migration, River included.
func NewEnvironment(ctx context.Context) (*Environment, error) {
	container, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
	env := &Environment{DB: db, DSN: dsn, container: container}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrations.Up(ctx, db, dsn, logger); err != nil {
		env.Close(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return env, nil
}

// Reset empties the application tables and the River job table.
func (e *Environment) Reset(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(appTables, ", "))
	if _, err := e.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	if _, err := e.DB.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		return fmt.Errorf("failed to cleanup river jobs: %w", err)
	}
	return nil
}

// Close releases the database and the container.
func (e *Environment) Close(ctx context.Context) {
	if e.DB != nil {
		_ = e.DB.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(ctx)
	}
}
