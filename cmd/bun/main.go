package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/Black-And-White-Club/parkour-bot/app/migrations"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/config"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := observability.NewLogger(os.Stdout, "info")

	cliApp := &cli.App{
		Name:  "bun",
		Usage: "parkour-bot database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", EnvVars: []string{"DATABASE_URL"}, Usage: "postgres DSN"},
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "config file, read when --dsn is empty"},
		},
		Commands: []*cli.Command{
			newMigrateCommand(logger),
			newRiverCommand(logger),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func resolveDSN(c *cli.Context) (string, error) {
	if dsn := c.String("dsn"); dsn != "" {
		return dsn, nil
	}
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return "", fmt.Errorf("no --dsn given and config failed to load: %w", err)
	}
	return cfg.Postgres.DSN, nil
}

// withDB opens bun on the resolved DSN for one command.
func withDB(fn func(c *cli.Context, db *bun.DB, dsn string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dsn, err := resolveDSN(c)
		if err != nil {
			return err
		}
		db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
		defer db.Close()
		return fn(c, db, dsn)
	}
}

func moduleMigrator(db *bun.DB, name string) (*migrate.Migrator, error) {
	m, ok := migrations.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("invalid module name: %s", name)
	}
	return migrate.NewMigrator(db, m.Migrations), nil
}

func newMigrateCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withDB(func(c *cli.Context, db *bun.DB, _ string) error {
					return migrations.Migrators(db)[0].Init(c.Context)
				}),
			},
			{
				Name:  "migrate",
				Usage: "migrate River and every module in dependency order",
				Action: withDB(func(c *cli.Context, db *bun.DB, dsn string) error {
					return migrations.Up(c.Context, db, dsn, logger)
				}),
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group of every module",
				Action: withDB(func(c *cli.Context, db *bun.DB, _ string) error {
					return migrations.Rollback(c.Context, db, logger)
				}),
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "<module> <name...>",
				Action: withDB(func(c *cli.Context, db *bun.DB, _ string) error {
					migrator, err := moduleMigrator(db, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration for module %s: %s (%s)\n", c.Args().First(), mf.Name, mf.Path)
					return nil
				}),
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name...>",
				Action: withDB(func(c *cli.Context, db *bun.DB, _ string) error {
					migrator, err := moduleMigrator(db, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					files, err := migrator.CreateSQLMigrations(c.Context, name)
					if err != nil {
						return err
					}
					for _, mf := range files {
						fmt.Printf("Created migration for module %s: %s (%s)\n", c.Args().First(), mf.Name, mf.Path)
					}
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: withDB(func(c *cli.Context, db *bun.DB, _ string) error {
					migrators := migrations.Migrators(db)
					for i, m := range migrations.Modules() {
						ms, err := migrators[i].MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", m.Name)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				}),
			},
		},
	}
}

func newRiverCommand(logger *slog.Logger) *cli.Command {
	run := func(direction rivermigrate.Direction) cli.ActionFunc {
		return func(c *cli.Context) error {
			dsn, err := resolveDSN(c)
			if err != nil {
				return err
			}
			return migrations.River(c.Context, dsn, direction, logger)
		}
	}
	return &cli.Command{
		Name:  "river",
		Usage: "River job queue schema",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply River migrations", Action: run(rivermigrate.DirectionUp)},
			{Name: "down", Usage: "revert one River migration", Action: run(rivermigrate.DirectionDown)},
		},
	}
}
