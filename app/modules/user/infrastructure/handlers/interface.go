package userhandlers

import (
	"context"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/handlerwrapper"
)

// Handlers defines the interface for user event handlers.
type Handlers interface {
	HandleNotificationUpdateRequested(ctx context.Context, payload *events.UserNotificationUpdateRequestedPayloadV1) ([]handlerwrapper.Result, error)
}
