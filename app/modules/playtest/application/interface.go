package playtestservice

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// Service defines the playtest module's operations.
type Service interface {
	// OpenSession puts a newly submitted map into playtest with the author's seed vote.
	OpenSession(ctx context.Context, req OpenRequest) (results.OperationResult[SessionView, error], error)

	// CastVote records or replaces a vote and finalizes when both quorums are met.
	CastVote(ctx context.Context, mapCode, voterID, gradeName string) (results.OperationResult[VoteOutcome, error], error)

	// RecordCompletion re-evaluates the quorums after a completion on a playtest map.
	RecordCompletion(ctx context.Context, mapCode, userID string) (results.OperationResult[Progress, error], error)

	// Finalize decides the session. Only the caller that wins the claim acts.
	Finalize(ctx context.Context, mapCode string) (results.OperationResult[FinalizeOutcome, error], error)

	GetSession(ctx context.Context, mapCode string) (*SessionView, error)
}

// RankLookup resolves a member's current 1-based rank.
type RankLookup interface {
	CurrentRank(ctx context.Context, userID string) (int, error)
}

// ReconcileScheduler fans out rank reconciles for a map's completers.
type ReconcileScheduler interface {
	// MarkMapPending records the debt inside the finalize transaction so a
	// failed enqueue after commit is retried by the periodic sweep.
	MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error
	ReconcileMapCompleters(ctx context.Context, mapCode string) (int, error)
}

// OpenRequest is a map submission entering playtest.
type OpenRequest struct {
	MapCode  string
	MapName  string
	AuthorID string
	Grade    string
}

// Progress is the quorum position after an arrival. Finalized is set when
// this arrival won the finalize claim.
type Progress struct {
	MapCode     string
	Voters      int
	Completions int
	Required    int
	Finalized   *FinalizeOutcome
}

// VoteOutcome is a recorded vote and the resulting progress.
type VoteOutcome struct {
	Progress
	VoterID string
	Value   float64
}

// FinalizeOutcome is the decision taken on a session.
type FinalizeOutcome struct {
	MapCode        string
	AuthorID       string
	Approved       bool
	ConsensusValue float64
	ConsensusGrade string
	FinalizedAt    time.Time
	Affected       int
}

// SessionView is the read model served to the API.
type SessionView struct {
	MapCode             string   `json:"map_code"`
	AuthorID            string   `json:"author_id"`
	State               string   `json:"state"`
	BaseGrade           string   `json:"base_grade"`
	BaseValue           float64  `json:"base_value"`
	Voters              int      `json:"voters"`
	Completions         int      `json:"completions"`
	RequiredVotes       int      `json:"required_votes"`
	RequiredCompletions int      `json:"required_completions"`
	ListingVotes        int      `json:"listing_votes"`
	ConsensusValue      *float64 `json:"consensus_value,omitempty"`
}
