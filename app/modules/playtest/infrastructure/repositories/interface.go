package playtestdb

import (
	"context"

	playtestdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/domain"
	"github.com/uptrace/bun"
)

// Repository defines the contract for playtest persistence.
type Repository interface {
	// CreateSession inserts an open session. A rejected tombstone for the same
	// code is reopened; any other existing session is ErrAlreadyExists.
	CreateSession(ctx context.Context, db bun.IDB, p *Playtest) error

	GetSession(ctx context.Context, db bun.IDB, mapCode string) (*Playtest, error)

	// UpsertVote stores the vote only while the session is open. ErrSessionNotOpen otherwise.
	UpsertVote(ctx context.Context, db bun.IDB, v *PlaytestVote) error

	ListVotes(ctx context.Context, db bun.IDB, mapCode string) ([]playtestdomain.Vote, error)

	// CountCompleters counts distinct users other than authorID with a completion on mapCode.
	CountCompleters(ctx context.Context, db bun.IDB, mapCode, authorID string) (int, error)

	// ClaimFinalize moves an open session to awaiting_finalize. False if another caller won.
	ClaimFinalize(ctx context.Context, db bun.IDB, mapCode string) (bool, error)

	// CompleteSession moves a claimed session to its terminal state.
	CompleteSession(ctx context.Context, db bun.IDB, mapCode string, state playtestdomain.State, consensus float64) error

	DeleteVotes(ctx context.Context, db bun.IDB, mapCode string) error
}
