package mapservice

import (
	"context"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
)

// Service defines moderator and read operations on maps.
type Service interface {
	GetMap(ctx context.Context, code string) (*MapView, error)

	// EditDifficulty moves an official map to the midpoint of gradeName and
	// schedules a rank reconcile for everyone who completed it.
	EditDifficulty(ctx context.Context, code, gradeName, requestedBy string) (results.OperationResult[MapUpdate, error], error)

	// SetArchived archives or restores an official map and schedules reconciles.
	SetArchived(ctx context.Context, code string, archived bool, requestedBy string) (results.OperationResult[MapUpdate, error], error)
}

// ReconcileScheduler queues progression recomputation.
type ReconcileScheduler interface {
	// ReconcileMapCompleters enqueues a reconcile for every user with a
	// completion on mapCode and returns how many were enqueued.
	ReconcileMapCompleters(ctx context.Context, mapCode string) (int, error)
}

// MapView is the read model served to the API.
type MapView struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	AuthorID    string  `json:"author_id"`
	Difficulty  float64 `json:"difficulty"`
	Grade       string  `json:"grade"`
	Official    bool    `json:"official"`
	Archived    bool    `json:"archived"`
	RatingCount int     `json:"rating_count"`
	MeanRating  float64 `json:"mean_rating,omitempty"`
}

// MapUpdate is the outcome of a moderator edit.
type MapUpdate struct {
	Map      MapView
	Affected int
}
