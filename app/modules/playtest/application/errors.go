package playtestservice

import "github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"

// Domain errors for the playtest service.
var (
	ErrInvalidMapCode  = apperr.Validation("playtest", "map code cannot be empty")
	ErrInvalidUserID   = apperr.Validation("playtest", "user ID cannot be empty")
	ErrMapExists       = apperr.Validation("playtest", "a map with this code already exists")
	ErrSessionNotFound = apperr.Validation("playtest", "playtest not found")
)
