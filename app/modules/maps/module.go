package maps

import (
	"context"
	"fmt"
	"sync"

	"github.com/Black-And-White-Club/parkour-bot/app/eventbus"
	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	maphandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/handlers"
	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	maprouter "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/router"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the maps module.
type Module struct {
	MapService *mapservice.MapService
	Repository mapdb.Repository
	cancelFunc context.CancelFunc
	obs        *observability.Observability
}

// NewMapModule wires the map repository, service and moderator handlers.
func NewMapModule(
	ctx context.Context,
	obs *observability.Observability,
	bus eventbus.EventBus,
	router *message.Router,
	handlerMetrics handlerwrapper.Metrics,
	db *bun.DB,
	scheduler mapservice.ReconcileScheduler,
) (*Module, error) {
	obs.Logger.InfoContext(ctx, "maps.NewMapModule initializing")

	repo := mapdb.NewRepository(db)
	metrics := observability.NewOperationMetrics(obs.Registry, "maps")
	service := mapservice.NewMapService(repo, scheduler, obs.Logger, metrics, obs.Tracer, db)
	handlers := maphandlers.NewMapHandlers(service, obs.Logger, obs.Tracer)

	subscriber, err := bus.Subscriber("maps")
	if err != nil {
		return nil, fmt.Errorf("failed to create maps subscriber: %w", err)
	}
	r := maprouter.NewMapRouter(obs.Logger, router, subscriber, bus, handlerMetrics, obs.Tracer)
	if err := r.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure maps router: %w", err)
	}

	return &Module{
		MapService: service,
		Repository: repo,
		obs:        obs,
	}, nil
}

// Run blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.obs.Logger.InfoContext(ctx, "Starting maps module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	m.obs.Logger.Info("Maps module goroutine stopped")
}

// Close shuts down the maps module.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.obs.Logger.Info("Maps module stopped")
	return nil
}
