package rankrouter

import (
	"context"
	"log/slog"

	rankhandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/handlers"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// RankRouter handles Watermill handler registration for rank events.
type RankRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewRankRouter creates a new RankRouter.
func NewRankRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *RankRouter {
	return &RankRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *RankRouter) Configure(_ context.Context, handlers rankhandlers.Handlers) error {
	r.logger.Info("Registering rank module handlers")
	registerHandler(r, events.RecordCompletionVerifiedV1, handlers.HandleCompletionVerified)
	registerHandler(r, events.RankReconcileRequestedV1, handlers.HandleReconcileRequested)
	return nil
}

func registerHandler[T any](
	r *RankRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "rank." + topic
	r.router.AddNoPublisherHandler(
		handlerName,
		topic,
		r.subscriber,
		handlerwrapper.Publishing(r.publisher, handlerwrapper.WrapTransformingTyped(
			handlerName,
			r.logger,
			r.tracer,
			r.metrics,
			handler,
		)),
	)
}
