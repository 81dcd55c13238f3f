package playtestrouter

import (
	"context"
	"log/slog"

	playtesthandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/handlers"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// PlaytestRouter handles Watermill handler registration for playtest events.
type PlaytestRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewPlaytestRouter creates a new PlaytestRouter.
func NewPlaytestRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *PlaytestRouter {
	return &PlaytestRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *PlaytestRouter) Configure(_ context.Context, handlers playtesthandlers.Handlers) error {
	r.logger.Info("Registering playtest module handlers")
	registerHandler(r, events.PlaytestSessionOpenRequestedV1, handlers.HandleSessionOpenRequested)
	registerHandler(r, events.PlaytestVoteCastRequestedV1, handlers.HandleVoteCastRequested)
	registerHandler(r, events.RecordCompletionVerifiedV1, handlers.HandleCompletionVerified)
	return nil
}

func registerHandler[T any](
	r *PlaytestRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "playtest." + topic
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
