package maprouter

import (
	"context"
	"log/slog"

	maphandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/handlers"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// MapRouter handles Watermill handler registration for map events.
type MapRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewMapRouter creates a new MapRouter.
func NewMapRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *MapRouter {
	return &MapRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *MapRouter) Configure(_ context.Context, handlers maphandlers.Handlers) error {
	r.logger.Info("Registering maps module handlers")
	registerHandler(r, events.MapDifficultyEditRequestedV1, handlers.HandleDifficultyEditRequested)
	registerHandler(r, events.MapArchiveRequestedV1, handlers.HandleArchiveRequested)
	return nil
}

func registerHandler[T any](
	r *MapRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "maps." + topic
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
