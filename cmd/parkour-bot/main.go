package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app"
	"github.com/Black-And-White-Club/parkour-bot/config"
	"github.com/Black-And-White-Club/parkour-bot/pkg/jwt"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "parkour-bot",
		Usage: "playtest voting, progression and role reconciliation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			checkConfigCommand(),
			issueTokenCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the bot",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			runErr := application.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := application.Close(shutdownCtx); err != nil && runErr == nil {
				return err
			}
			return runErr
		},
	}
}

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "load and validate the configuration, then exit",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			fmt.Printf("configuration ok: %d rank roles, guild %s, api on %s\n",
				len(cfg.Discord.RankRoleIDs), cfg.Discord.GuildID, cfg.HTTP.Address)
			return nil
		},
	}
}

func issueTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "issue-token",
		Usage:     "print an API token for a Discord user",
		ArgsUsage: "<discord-user-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Value: string(jwt.RoleModerator), Usage: "viewer or moderator"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to jwt.default_ttl)"},
		},
		Action: func(c *cli.Context) error {
			userID := c.Args().First()
			if userID == "" {
				return cli.Exit("a discord user ID is required", 1)
			}
			role := jwt.Role(c.String("role"))
			if role != jwt.RoleViewer && role != jwt.RoleModerator {
				return cli.Exit(fmt.Sprintf("unknown role %q", role), 1)
			}

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			token, err := jwt.NewService(cfg.JWT.Secret, cfg.Discord.GuildID, cfg.JWT.DefaultTTL).
				GenerateToken(userID, role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
