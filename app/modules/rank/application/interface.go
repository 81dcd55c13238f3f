package rankservice

import (
	"context"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// Service defines the rank module's operations.
type Service interface {
	// ReconcileUser recomputes progression from the full history and applies
	// the minimal role change, serialized per user.
	ReconcileUser(ctx context.Context, userID string) (results.OperationResult[ReconcileOutcome, error], error)

	// CurrentRank returns the persisted 1-based rank used for vote gating.
	CurrentRank(ctx context.Context, userID string) (int, error)

	// GetProgression computes a user's progression live from history.
	GetProgression(ctx context.Context, userID string) (*ProgressionView, error)

	// ReconcileUsers enqueues reconcile jobs for the given users.
	ReconcileUsers(ctx context.Context, userIDs ...string) (int, error)

	// ReconcileMapCompleters enqueues a reconcile for every user with a
	// completion on mapCode and clears the map's pending marker.
	ReconcileMapCompleters(ctx context.Context, mapCode string) (int, error)

	// MarkMapPending records inside db's transaction that mapCode's completers
	// are owed a reconcile. The sweep job settles markers left behind.
	MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error

	// SweepPendingReconciles enqueues reconciles for every pending map.
	SweepPendingReconciles(ctx context.Context) (int, error)
}

// RoleSink reads and replaces a guild member's roles.
type RoleSink interface {
	// CurrentRoles returns ErrMemberNotFound when the user is not in the guild.
	CurrentRoles(ctx context.Context, userID string) ([]string, error)
	// ReplaceRoles sets the member's full role list in one call.
	ReplaceRoles(ctx context.Context, userID string, roles []string) error
}

// JobQueue schedules reconcile jobs.
type JobQueue interface {
	EnqueueReconcile(ctx context.Context, userIDs []string) (int, error)
}

// ReconcileOutcome is the result of one reconcile pass. Previous is the
// standing persisted before the pass. Departed is set when the user has left
// the guild and no role call was made.
type ReconcileOutcome struct {
	UserID      string
	Progression rankdomain.Progression
	Previous    rankdomain.Progression
	Delta       rankdomain.Delta
	Departed    bool
}

// Promoted reports whether the pass is announced as a promotion: it only
// added roles, or the rank itself went up.
func (o ReconcileOutcome) Promoted() bool {
	if len(o.Delta.ToAdd) == 0 {
		return false
	}
	return len(o.Delta.ToRemove) == 0 || o.Progression.RankCount > o.Previous.RankCount
}

// ProgressionView is the read model served to the API.
type ProgressionView struct {
	UserID     string `json:"user_id"`
	Rank       int    `json:"rank"`
	RankName   string `json:"rank_name"`
	RankCount  int    `json:"rank_count"`
	GoldPlus   int    `json:"gold_plus"`
	SilverPlus int    `json:"silver_plus"`
	BronzePlus int    `json:"bronze_plus"`
}
