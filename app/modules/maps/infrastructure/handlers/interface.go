package maphandlers

import (
	"context"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
)

// Handlers handles moderator map requests.
type Handlers interface {
	HandleDifficultyEditRequested(ctx context.Context, payload *events.MapDifficultyEditRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleArchiveRequested(ctx context.Context, payload *events.MapArchiveRequestedPayloadV1) ([]handlerwrapper.Result, error)
}
