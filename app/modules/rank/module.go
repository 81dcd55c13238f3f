package rank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/eventbus"
	rankservice "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/application"
	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	rankhandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/handlers"
	rankqueue "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/queue"
	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	rankrouter "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/router"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/config"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 10 * time.Second

// Module represents the rank module.
type Module struct {
	RankService *rankservice.RankService
	Repository  rankdb.Repository
	Queue       rankqueue.QueueService
	cancelFunc  context.CancelFunc
	obs         *observability.Observability
}

// RoleTable builds the reconciler's role table from Discord settings.
func RoleTable(cfg config.DiscordConfig) rankdomain.RoleTable {
	return rankdomain.RoleTable{
		Rank:   cfg.RankRoleIDs,
		Gold:   cfg.GoldPlusRoleIDs,
		Silver: cfg.SilverPlusRoleIDs,
		Bronze: cfg.BronzePlusRoleIDs,
	}
}

// NewRankModule wires the completion repository, the reconcile queue, the
// rank service and its message handlers.
func NewRankModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	bus eventbus.EventBus,
	router *message.Router,
	handlerMetrics handlerwrapper.Metrics,
	db *bun.DB,
	users userdb.Repository,
	roles rankservice.RoleSink,
	notifier notification.Sink,
) (*Module, error) {
	obs.Logger.InfoContext(ctx, "rank.NewRankModule initializing")

	table := RoleTable(cfg.Discord)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid role table: %w", err)
	}

	metrics := observability.NewOperationMetrics(obs.Registry, "rank")
	queue, err := rankqueue.NewService(ctx, db, obs.Logger, cfg.Postgres.DSN, rankqueue.Config{
		MaxWorkers:    cfg.Queue.MaxWorkers,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		JobTimeout:    cfg.Queue.JobTimeout,
		SweepInterval: cfg.Queue.SweepInterval,
	}, observability.NewOperationMetrics(obs.Registry, "rank_queue"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rank queue: %w", err)
	}

	repo := rankdb.NewRepository(db)
	service := rankservice.NewRankService(rankservice.Deps{
		Repo:              repo,
		Users:             users,
		Roles:             roles,
		Notifier:          notifier,
		Queue:             queue,
		Publisher:         bus,
		RoleTable:         table,
		NewsfeedChannelID: cfg.Discord.NewsfeedChannelID,
		Logger:            obs.Logger,
		Metrics:           metrics,
		Tracer:            obs.Tracer,
		DB:                db,
	})
	queue.Bind(service)

	handlers := rankhandlers.NewRankHandlers(service, obs.Logger, obs.Tracer)
	subscriber, err := bus.Subscriber("rank")
	if err != nil {
		return nil, fmt.Errorf("failed to create rank subscriber: %w", err)
	}
	r := rankrouter.NewRankRouter(obs.Logger, router, subscriber, bus, handlerMetrics, obs.Tracer)
	if err := r.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure rank router: %w", err)
	}

	return &Module{
		RankService: service,
		Repository:  repo,
		Queue:       queue,
		obs:         obs,
	}, nil
}

// Run starts the reconcile queue and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.obs.Logger.InfoContext(ctx, "Starting rank module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	// The queue outlives ctx so Close can drain running jobs.
	if err := m.Queue.Start(context.WithoutCancel(ctx)); err != nil {
		m.obs.Logger.ErrorContext(ctx, "Rank queue failed to start", attr.Error(err))
		return
	}

	<-ctx.Done()
	m.obs.Logger.Info("Rank module goroutine stopped")
}

// Close stops the queue and shuts down the rank module.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.Queue.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop rank queue: %w", err)
	}
	m.obs.Logger.Info("Rank module stopped")
	return nil
}
