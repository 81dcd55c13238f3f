package userservice

import (
	"context"

	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
)

// Service defines the user module's operations.
type Service interface {
	// GetStanding returns the last persisted progression snapshot; unknown users have a zero standing.
	GetStanding(ctx context.Context, userID string) (userdb.Standing, error)

	// NotificationsEnabled reports whether userID still receives notices of kind.
	NotificationsEnabled(ctx context.Context, userID string, kind notification.Kind) (bool, error)

	// SetNotificationPreference opts the user in or out of one notice kind and returns the new opt-out mask.
	SetNotificationPreference(ctx context.Context, userID string, kind notification.Kind, enabled bool) (results.OperationResult[int64, error], error)
}
