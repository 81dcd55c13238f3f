package rankservice

import (
	"errors"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
)

// Domain errors for the rank service.
var (
	ErrInvalidUserID = apperr.Validation("rank", "user ID cannot be empty")
	ErrInvalidMap    = apperr.Validation("rank", "map code cannot be empty")
)

// ErrMemberNotFound is returned by a RoleSink when the user is not in the guild.
var ErrMemberNotFound = errors.New("guild member not found")
