package rankdb

import (
	"context"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	"github.com/uptrace/bun"
)

// Repository defines the contract for completion history access.
type Repository interface {
	// InsertCompletion appends a completion row. Completions are written by
	// the record verification workflow that shares this table and then
	// announced on record.completion.verified; the rank service only reads
	// history and never calls this.
	InsertCompletion(ctx context.Context, db bun.IDB, c *Completion) error

	// ListCompletions returns the user's full history joined with map state.
	ListCompletions(ctx context.Context, db bun.IDB, userID string) ([]rankdomain.CompletionRecord, error)

	// ListCompleters returns the distinct users with any completion on mapCode.
	ListCompleters(ctx context.Context, db bun.IDB, mapCode string) ([]string, error)

	// LockUser takes the per-user transaction-scoped advisory lock. db must be a transaction.
	LockUser(ctx context.Context, db bun.IDB, userID string) error

	// MarkMapPending records that mapCode's completers are owed a reconcile.
	// Pass the transaction that makes the debt so both commit together.
	MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error

	// ListPendingMaps returns up to limit owed map codes, oldest first.
	ListPendingMaps(ctx context.Context, db bun.IDB, limit int) ([]string, error)

	// ClearMapPending removes mapCode's marker once its jobs are enqueued.
	ClearMapPending(ctx context.Context, db bun.IDB, mapCode string) error
}
