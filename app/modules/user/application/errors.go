package userservice

import "github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"

// Domain errors for the user service.
var (
	ErrInvalidUserID = apperr.Validation("user", "user ID cannot be empty")
	ErrUnknownKind   = apperr.Validation("user", "unknown notification kind")
)
