package mapservice

import "github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"

// Domain errors for the maps service.
var (
	ErrInvalidMapCode = apperr.Validation("maps", "map code cannot be empty")
	ErrMapNotFound    = apperr.Validation("maps", "map not found")
	ErrMapInPlaytest  = apperr.Validation("maps", "map is still in playtest")
)
