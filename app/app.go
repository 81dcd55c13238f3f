// Package app wires configuration, storage, the event bus, Discord and the
// feature modules into one process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	discordadapter "github.com/Black-And-White-Club/parkour-bot/app/adapters/discord"
	"github.com/Black-And-White-Club/parkour-bot/app/api"
	"github.com/Black-And-White-Club/parkour-bot/app/eventbus"
	"github.com/Black-And-White-Club/parkour-bot/app/modules/maps"
	"github.com/Black-And-White-Club/parkour-bot/app/modules/playtest"
	"github.com/Black-And-White-Club/parkour-bot/app/modules/rank"
	"github.com/Black-And-White-Club/parkour-bot/app/modules/user"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/config"
	"github.com/Black-And-White-Club/parkour-bot/pkg/jwt"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/time/rate"
)

const (
	routerCloseTimeout = 15 * time.Second
	shutdownTimeout    = 20 * time.Second
)

// App holds the running process's components.
type App struct {
	Config   *config.Config
	Obs      *observability.Observability
	DB       *bun.DB
	EventBus eventbus.EventBus
	Router   *message.Router
	Discord  *discordgo.Session

	UserModule     *user.Module
	MapModule      *maps.Module
	RankModule     *rank.Module
	PlaytestModule *playtest.Module

	API *api.Server

	wg sync.WaitGroup
}

// New builds every component. On error everything created so far is closed.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	obs, err := observability.Init(ctx, observability.Config{
		ServiceName:  cfg.Observability.ServiceName,
		Environment:  cfg.Observability.Environment,
		Version:      cfg.Observability.Version,
		LogLevel:     cfg.Observability.LogLevel,
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := &App{Config: cfg, Obs: obs}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			app.Close(closeCtx)
		}
	}()

	app.DB = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN))), pgdialect.New())
	if err := app.DB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	app.EventBus, err = eventbus.NewNATS(ctx, eventbus.Config{
		URL:      cfg.NATS.URL,
		NKeySeed: cfg.NATS.NKeySeed,
		AckWait:  cfg.NATS.AckWait,
		Streams:  events.Streams,
	}, obs.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}

	app.Router, err = message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, watermill.NewSlogLogger(obs.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}
	app.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)
	metrics.NewPrometheusMetricsBuilder(obs.Registry, "parkour", "router").AddPrometheusRouterMetrics(app.Router)
	handlerMetrics := observability.NewHandlerMetrics(obs.Registry)

	if err := app.initModules(ctx, handlerMetrics); err != nil {
		return nil, err
	}

	tokens := jwt.NewService(cfg.JWT.Secret, cfg.Discord.GuildID, cfg.JWT.DefaultTTL)
	app.API = api.NewServer(cfg.HTTP.Address, api.Deps{
		Progression: app.RankModule.RankService,
		Standings:   app.UserModule.UserService,
		Playtests:   app.PlaytestModule.PlaytestService,
		Maps:        app.MapModule.MapService,
		Tokens:      tokens,
		Gatherer:    obs.Registry,
		Checks: []api.HealthCheck{
			{Name: "postgres", Check: app.DB.PingContext},
			{Name: "queue", Check: app.RankModule.Queue.HealthCheck},
		},
		Logger:    obs.Logger,
		RateLimit: rate.Limit(cfg.HTTP.RateLimitPerSec),
		RateBurst: cfg.HTTP.RateLimitBurst,
	})

	return app, nil
}

func (a *App) initModules(ctx context.Context, handlerMetrics *observability.HandlerMetrics) error {
	var err error
	cfg := a.Config

	a.UserModule, err = user.NewUserModule(ctx, a.Obs, a.EventBus, a.Router, handlerMetrics, a.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize user module: %w", err)
	}

	// REST only: interactions arrive through the command frontend.
	a.Discord, err = discordadapter.NewSession(cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	roles := discordadapter.NewRoleSink(a.Discord, cfg.Discord.GuildID, cfg.Discord.RequestsPerSecond, cfg.Discord.RequestTimeout)
	notifier := discordadapter.NewNotifier(a.Discord, a.UserModule.UserService, a.Obs.Logger, cfg.Discord.RequestsPerSecond, cfg.Discord.RequestTimeout)

	a.RankModule, err = rank.NewRankModule(ctx, cfg, a.Obs, a.EventBus, a.Router, handlerMetrics, a.DB, a.UserModule.Repository, roles, notifier)
	if err != nil {
		return fmt.Errorf("failed to initialize rank module: %w", err)
	}

	a.MapModule, err = maps.NewMapModule(ctx, a.Obs, a.EventBus, a.Router, handlerMetrics, a.DB, a.RankModule.RankService)
	if err != nil {
		return fmt.Errorf("failed to initialize maps module: %w", err)
	}

	a.PlaytestModule, err = playtest.NewPlaytestModule(ctx, a.Obs, a.EventBus, a.Router, handlerMetrics, a.DB, playtest.Deps{
		Maps:              a.MapModule.Repository,
		Ranks:             a.RankModule.RankService,
		Scheduler:         a.RankModule.RankService,
		Notifier:          notifier,
		NewsfeedChannelID: cfg.Discord.NewsfeedChannelID,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playtest module: %w", err)
	}
	return nil
}

// Run starts the modules, the message router and the HTTP server, and
// blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	logger := a.Obs.Logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type runner interface {
		Run(ctx context.Context, wg *sync.WaitGroup)
	}
	for _, m := range []runner{a.UserModule, a.RankModule, a.MapModule, a.PlaytestModule} {
		a.wg.Add(1)
		go m.Run(ctx, &a.wg)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("watermill router: %w", err)
		}
	}()
	go func() {
		if err := a.API.Run(); err != nil {
			errCh <- err
		}
	}()

	logger.InfoContext(ctx, "parkour-bot running")
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		logger.ErrorContext(ctx, "Component failed", attr.Error(err))
		return err
	}
}

// Close stops components in reverse start order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	logger := a.Obs.Logger

	if a.API != nil {
		if err := a.API.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.Router != nil {
		if err := a.Router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("watermill router: %w", err))
		}
	}

	type closer interface{ Close() error }
	modules := []closer{}
	if a.PlaytestModule != nil {
		modules = append(modules, a.PlaytestModule)
	}
	if a.MapModule != nil {
		modules = append(modules, a.MapModule)
	}
	if a.RankModule != nil {
		modules = append(modules, a.RankModule)
	}
	if a.UserModule != nil {
		modules = append(modules, a.UserModule)
	}
	for _, m := range modules {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.wg.Wait()

	if a.EventBus != nil {
		if err := a.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if a.Discord != nil {
		if err := a.Discord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("discord: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if err := a.Obs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("Shutdown finished with errors", attr.Error(err))
	} else {
		logger.Info("Shutdown complete")
	}
	return err
}
