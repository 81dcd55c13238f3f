package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/Black-And-White-Club/parkour-bot/app/eventbus"
	userservice "github.com/Black-And-White-Club/parkour-bot/app/modules/user/application"
	userhandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/handlers"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	userrouter "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/router"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the user module.
type Module struct {
	UserService *userservice.UserService
	Repository  userdb.Repository
	cancelFunc  context.CancelFunc
	obs         *observability.Observability
}

// NewUserModule wires the user repository, service and message handlers.
func NewUserModule(
	ctx context.Context,
	obs *observability.Observability,
	bus eventbus.EventBus,
	router *message.Router,
	handlerMetrics handlerwrapper.Metrics,
	db *bun.DB,
) (*Module, error) {
	obs.Logger.InfoContext(ctx, "user.NewUserModule initializing")

	repo := userdb.NewRepository(db)
	metrics := observability.NewOperationMetrics(obs.Registry, "user")
	service := userservice.NewUserService(repo, obs.Logger, metrics, obs.Tracer, db)
	handlers := userhandlers.NewUserHandlers(service, obs.Logger, obs.Tracer)

	subscriber, err := bus.Subscriber("user")
	if err != nil {
		return nil, fmt.Errorf("failed to create user subscriber: %w", err)
	}
	r := userrouter.NewUserRouter(obs.Logger, router, subscriber, bus, handlerMetrics, obs.Tracer)
	if err := r.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure user router: %w", err)
	}

	return &Module{
		UserService: service,
		Repository:  repo,
		obs:         obs,
	}, nil
}

// Run blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.obs.Logger.InfoContext(ctx, "Starting user module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	m.obs.Logger.Info("User module goroutine stopped")
}

// Close shuts down the user module.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.obs.Logger.Info("User module stopped")
	return nil
}
