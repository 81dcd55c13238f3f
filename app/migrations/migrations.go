// Package migrations runs every module's bun migrations and the River schema
// in dependency order.
package migrations

import (
	"context"
	"fmt"
	"log/slog"

	mapmigrations "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories/migrations"
	playtestmigrations "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/repositories/migrations"
	rankmigrations "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories/migrations"
	usermigrations "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Module pairs a module name with its migration set.
type Module struct {
	Name       string
	Migrations *migrate.Migrations
}

// Modules returns the migration sets in foreign key order. Completions
// reference maps and users; playtest votes reference playtests.
func Modules() []Module {
	return []Module{
		{"user", usermigrations.Migrations},
		{"maps", mapmigrations.Migrations},
		{"rank", rankmigrations.Migrations},
		{"playtest", playtestmigrations.Migrations},
	}
}

// Lookup finds a module by name.
func Lookup(name string) (Module, bool) {
	for _, m := range Modules() {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// Migrators builds one bun migrator per module, in order. All modules share
// the bun_migrations table, so Init only needs one of them.
func Migrators(db *bun.DB) []*migrate.Migrator {
	mods := Modules()
	out := make([]*migrate.Migrator, 0, len(mods))
	for _, m := range mods {
		out = append(out, migrate.NewMigrator(db, m.Migrations))
	}
	return out
}

// Up creates the River schema and then applies pending module migrations.
func Up(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error {
	migrators := Migrators(db)
	if err := migrators[0].Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	if err := River(ctx, dsn, rivermigrate.DirectionUp, logger); err != nil {
		return err
	}

	for i, m := range Modules() {
		group, err := migrators[i].Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", m.Name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No new migrations", attr.String("module", m.Name))
			continue
		}
		logger.InfoContext(ctx, "Migrated module",
			attr.String("module", m.Name),
			attr.String("group", group.String()),
		)
	}
	return nil
}

// Rollback reverts the last group of every module, newest module first.
func Rollback(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	mods := Modules()
	migrators := Migrators(db)
	for i := len(mods) - 1; i >= 0; i-- {
		group, err := migrators[i].Rollback(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back %s migrations: %w", mods[i].Name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No groups to roll back", attr.String("module", mods[i].Name))
			continue
		}
		logger.InfoContext(ctx, "Rolled back module",
			attr.String("module", mods[i].Name),
			attr.String("group", group.String()),
		)
	}
	return nil
}

// River migrates the River job tables. River needs pgx, so it opens its own
// short-lived pool.
func River(ctx context.Context, dsn string, direction rivermigrate.Direction, logger *slog.Logger) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN for River migrations: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), &rivermigrate.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}

	opts := &rivermigrate.MigrateOpts{}
	if direction == rivermigrate.DirectionDown {
		// One version per rollback.
		opts.MaxSteps = 1
	}
	res, err := migrator.Migrate(ctx, direction, opts)
	if err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	logger.InfoContext(ctx, "River migrations completed",
		attr.String("direction", string(direction)),
		attr.Int("versions", len(res.Versions)),
	)
	return nil
}
