package playtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Black-And-White-Club/parkour-bot/app/eventbus"
	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	playtestservice "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/application"
	playtesthandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/handlers"
	playtestdb "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/repositories"
	playtestrouter "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/router"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the playtest module.
type Module struct {
	PlaytestService *playtestservice.PlaytestService
	Repository      playtestdb.Repository
	cancelFunc      context.CancelFunc
	obs             *observability.Observability
}

// Deps are the collaborators the playtest module borrows from other modules.
type Deps struct {
	Maps              mapdb.Repository
	Ranks             playtestservice.RankLookup
	Scheduler         playtestservice.ReconcileScheduler
	Notifier          notification.Sink
	NewsfeedChannelID string
}

// NewPlaytestModule wires the playtest repository, service and message handlers.
func NewPlaytestModule(
	ctx context.Context,
	obs *observability.Observability,
	bus eventbus.EventBus,
	router *message.Router,
	handlerMetrics handlerwrapper.Metrics,
	db *bun.DB,
	deps Deps,
) (*Module, error) {
	obs.Logger.InfoContext(ctx, "playtest.NewPlaytestModule initializing")

	repo := playtestdb.NewRepository(db)
	service := playtestservice.NewPlaytestService(playtestservice.Deps{
		Repo:              repo,
		Maps:              deps.Maps,
		Ranks:             deps.Ranks,
		Scheduler:         deps.Scheduler,
		Notifier:          deps.Notifier,
		NewsfeedChannelID: deps.NewsfeedChannelID,
		Logger:            obs.Logger,
		Metrics:           observability.NewOperationMetrics(obs.Registry, "playtest"),
		Tracer:            obs.Tracer,
		DB:                db,
	})
	handlers := playtesthandlers.NewPlaytestHandlers(service, obs.Logger, obs.Tracer)

	subscriber, err := bus.Subscriber("playtest")
	if err != nil {
		return nil, fmt.Errorf("failed to create playtest subscriber: %w", err)
	}
	r := playtestrouter.NewPlaytestRouter(obs.Logger, router, subscriber, bus, handlerMetrics, obs.Tracer)
	if err := r.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure playtest router: %w", err)
	}

	return &Module{
		PlaytestService: service,
		Repository:      repo,
		obs:             obs,
	}, nil
}

// Run blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.obs.Logger.InfoContext(ctx, "Starting playtest module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	m.obs.Logger.Info("Playtest module goroutine stopped")
}

// Close shuts down the playtest module.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.obs.Logger.Info("Playtest module stopped")
	return nil
}
