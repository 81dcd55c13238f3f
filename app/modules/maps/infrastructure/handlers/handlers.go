package maphandlers

import (
	"context"
	"log/slog"

	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"go.opentelemetry.io/otel/trace"
)

// MapHandlers implements the Handlers interface.
type MapHandlers struct {
	service mapservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewMapHandlers creates a new MapHandlers instance.
func NewMapHandlers(service mapservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &MapHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleDifficultyEditRequested applies a moderator difficulty edit.
func (h *MapHandlers) HandleDifficultyEditRequested(ctx context.Context, payload *events.MapDifficultyEditRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "MapHandlers.HandleDifficultyEditRequested")
	defer span.End()

	result, err := h.service.EditDifficulty(ctx, payload.MapCode, payload.Grade, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return h.toResults(ctx, payload.MapCode, payload.RequestedBy, result), nil
}

// HandleArchiveRequested archives or restores a map.
func (h *MapHandlers) HandleArchiveRequested(ctx context.Context, payload *events.MapArchiveRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "MapHandlers.HandleArchiveRequested")
	defer span.End()

	result, err := h.service.SetArchived(ctx, payload.MapCode, payload.Archived, payload.RequestedBy)
	if err != nil {
		return nil, err
	}
	return h.toResults(ctx, payload.MapCode, payload.RequestedBy, result), nil
}

func (h *MapHandlers) toResults(ctx context.Context, mapCode, requestedBy string, result results.OperationResult[mapservice.MapUpdate, error]) []handlerwrapper.Result {
	if result.IsFailure() {
		failure := *result.Failure
		if !apperr.IsUserFacing(failure) {
			h.logger.InfoContext(ctx, "Map update dropped", attr.MapCode(mapCode), attr.Error(failure))
			return nil
		}
		return []handlerwrapper.Result{{
			Topic: events.MapUpdateRejectedV1,
			Payload: &events.RejectionPayloadV1{
				MapCode: mapCode,
				UserID:  requestedBy,
				Reason:  apperr.Reason(failure),
			},
		}}
	}

	update := result.Success
	return []handlerwrapper.Result{{
		Topic: events.MapUpdatedV1,
		Payload: &events.MapUpdatedPayloadV1{
			MapCode:    update.Map.Code,
			Difficulty: update.Map.Difficulty,
			Grade:      update.Map.Grade,
			Archived:   update.Map.Archived,
			Affected:   update.Affected,
		},
	}}
}
