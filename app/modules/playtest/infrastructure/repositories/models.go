package playtestdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Playtest is a map's playtest session. The row outlives the map so late
// votes and completions find a terminal state.
type Playtest struct {
	bun.BaseModel `bun:"table:playtests,alias:p"`

	MapCode        string     `bun:"map_code,pk" json:"map_code"`
	AuthorID       string     `bun:"author_id,notnull" json:"author_id"`
	BaseValue      float64    `bun:"base_value,notnull" json:"base_value"`
	State          string     `bun:"state,notnull" json:"state"`
	ConsensusValue *float64   `bun:"consensus_value,nullzero" json:"consensus_value,omitempty"`
	FinalizedAt    *time.Time `bun:"finalized_at,nullzero" json:"finalized_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// PlaytestVote is one voter's current vote. Votes only exist while the
// session is open or finalizing.
type PlaytestVote struct {
	bun.BaseModel `bun:"table:playtest_votes,alias:pv"`

	MapCode   string    `bun:"map_code,pk" json:"map_code"`
	VoterID   string    `bun:"voter_id,pk" json:"voter_id"`
	Value     float64   `bun:"value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
