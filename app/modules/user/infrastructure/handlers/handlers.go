package userhandlers

import (
	"context"
	"log/slog"

	userservice "github.com/Black-And-White-Club/parkour-bot/app/modules/user/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"go.opentelemetry.io/otel/trace"
)

// UserHandlers implements the Handlers interface.
type UserHandlers struct {
	service userservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(service userservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &UserHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleNotificationUpdateRequested toggles one notification kind for a user.
func (h *UserHandlers) HandleNotificationUpdateRequested(ctx context.Context, payload *events.UserNotificationUpdateRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "UserHandlers.HandleNotificationUpdateRequested")
	defer span.End()

	kind, err := notification.ParseKind(payload.Kind)
	if err != nil {
		h.logger.WarnContext(ctx, "Ignoring notification update with unknown kind",
			attr.UserID(payload.UserID),
			attr.String("kind", payload.Kind),
		)
		return nil, nil
	}

	result, err := h.service.SetNotificationPreference(ctx, payload.UserID, kind, payload.Enabled)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.logger.WarnContext(ctx, "Notification update rejected",
			attr.UserID(payload.UserID),
			attr.Error(*result.Failure),
		)
		return nil, nil
	}

	return []handlerwrapper.Result{{
		Topic: events.UserNotificationUpdatedV1,
		Payload: &events.UserNotificationUpdatedPayloadV1{
			UserID: payload.UserID,
			Kind:   kind.String(),
			Flags:  *result.Success,
		},
	}}, nil
}
