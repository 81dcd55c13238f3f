package playtesthandlers

import (
	"context"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
)

// Handlers handles playtest events.
type Handlers interface {
	HandleSessionOpenRequested(ctx context.Context, payload *events.PlaytestSessionOpenRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleVoteCastRequested(ctx context.Context, payload *events.PlaytestVoteCastRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleCompletionVerified(ctx context.Context, payload *events.RecordCompletionVerifiedPayloadV1) ([]handlerwrapper.Result, error)
}
