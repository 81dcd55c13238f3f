package rankhandlers

import (
	"context"
	"log/slog"

	rankservice "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"go.opentelemetry.io/otel/trace"
)

// RankHandlers implements the Handlers interface.
type RankHandlers struct {
	service rankservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(service rankservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &RankHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleCompletionVerified schedules a reconcile for the completing user.
func (h *RankHandlers) HandleCompletionVerified(ctx context.Context, payload *events.RecordCompletionVerifiedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankHandlers.HandleCompletionVerified")
	defer span.End()

	if !payload.Verified {
		return nil, nil
	}
	if _, err := h.service.ReconcileUsers(ctx, payload.UserID); err != nil {
		return nil, err
	}
	h.logger.DebugContext(ctx, "Reconcile scheduled for verified completion",
		attr.ExtractCorrelationID(ctx),
		attr.UserID(payload.UserID),
		attr.MapCode(payload.MapCode),
	)
	return nil, nil
}

// HandleReconcileRequested schedules reconciles for an explicit user list.
func (h *RankHandlers) HandleReconcileRequested(ctx context.Context, payload *events.RankReconcileRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankHandlers.HandleReconcileRequested")
	defer span.End()

	n, err := h.service.ReconcileUsers(ctx, payload.UserIDs...)
	if err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "Reconcile requested",
		attr.ExtractCorrelationID(ctx),
		attr.Int("scheduled", n),
	)
	return nil, nil
}
