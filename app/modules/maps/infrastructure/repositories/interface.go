package mapdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for map persistence.
type Repository interface {
	GetMap(ctx context.Context, db bun.IDB, code string) (*Map, error)

	// InsertPlaytestMap stores an unofficial map. ErrAlreadyExists if the code is taken.
	InsertPlaytestMap(ctx context.Context, db bun.IDB, m *Map) error

	// MarkOfficial promotes a map out of playtest at the given difficulty.
	MarkOfficial(ctx context.Context, db bun.IDB, code string, difficulty float64) error

	// DeleteMap removes the map and its ratings.
	DeleteMap(ctx context.Context, db bun.IDB, code string) error

	// UpsertRatings writes permanent ratings, replacing any existing value per user.
	UpsertRatings(ctx context.Context, db bun.IDB, ratings []Rating) error

	// ListRatings returns a map's ratings ordered by user.
	ListRatings(ctx context.Context, db bun.IDB, code string) ([]Rating, error)

	// UpdateDifficulty changes an official map's difficulty. ErrNotOfficial for playtest maps.
	UpdateDifficulty(ctx context.Context, db bun.IDB, code string, difficulty float64) (*Map, error)

	// SetArchived flips the archived flag on an official map.
	SetArchived(ctx context.Context, db bun.IDB, code string, archived bool) (*Map, error)
}
