package rankhandlers

import (
	"context"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
)

// Handlers defines the interface for rank event handlers.
type Handlers interface {
	HandleCompletionVerified(ctx context.Context, payload *events.RecordCompletionVerifiedPayloadV1) ([]handlerwrapper.Result, error)
	HandleReconcileRequested(ctx context.Context, payload *events.RankReconcileRequestedPayloadV1) ([]handlerwrapper.Result, error)
}
