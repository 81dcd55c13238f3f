package userrouter

import (
	"context"
	"log/slog"

	userhandlers "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/handlers"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// UserRouter handles Watermill handler registration for user events.
type UserRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewUserRouter creates a new UserRouter.
func NewUserRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *UserRouter {
	return &UserRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *UserRouter) Configure(_ context.Context, handlers userhandlers.Handlers) error {
	r.logger.Info("Registering user module handlers")
	registerHandler(r, events.UserNotificationUpdateRequestedV1, handlers.HandleNotificationUpdateRequested)
	return nil
}

func registerHandler[T any](
	r *UserRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "user." + topic
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
