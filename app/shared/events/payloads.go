package events

import "time"

// PlaytestSessionOpenRequestedPayloadV1 asks to put a submitted map into playtest.
type PlaytestSessionOpenRequestedPayloadV1 struct {
	MapCode  string `json:"map_code"`
	MapName  string `json:"map_name"`
	AuthorID string `json:"author_id"`
	Grade    string `json:"grade"`
}

type PlaytestSessionOpenedPayloadV1 struct {
	MapCode       string  `json:"map_code"`
	AuthorID      string  `json:"author_id"`
	Grade         string  `json:"grade"`
	BaseValue     float64 `json:"base_value"`
	RequiredVotes int     `json:"required_votes"`
}

// RejectionPayloadV1 carries a user-visible reason for a refused request.
type RejectionPayloadV1 struct {
	MapCode string `json:"map_code"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// PlaytestVoteCastRequestedPayloadV1 is a voter's grade choice from the vote panel.
type PlaytestVoteCastRequestedPayloadV1 struct {
	MapCode string `json:"map_code"`
	VoterID string `json:"voter_id"`
	Grade   string `json:"grade"`
}

type PlaytestVoteRecordedPayloadV1 struct {
	MapCode     string  `json:"map_code"`
	VoterID     string  `json:"voter_id"`
	Value       float64 `json:"value"`
	Voters      int     `json:"voters"`
	Completions int     `json:"completions"`
	Required    int     `json:"required"`
}

type PlaytestFinalizedPayloadV1 struct {
	MapCode        string    `json:"map_code"`
	AuthorID       string    `json:"author_id"`
	Approved       bool      `json:"approved"`
	ConsensusValue float64   `json:"consensus_value"`
	ConsensusGrade string    `json:"consensus_grade"`
	FinalizedAt    time.Time `json:"finalized_at"`
}

// RecordCompletionVerifiedPayloadV1 announces a completion row for a user on a map.
type RecordCompletionVerifiedPayloadV1 struct {
	MapCode  string `json:"map_code"`
	UserID   string `json:"user_id"`
	Verified bool   `json:"verified"`
}

type MapDifficultyEditRequestedPayloadV1 struct {
	MapCode     string `json:"map_code"`
	Grade       string `json:"grade"`
	RequestedBy string `json:"requested_by"`
}

type MapArchiveRequestedPayloadV1 struct {
	MapCode     string `json:"map_code"`
	Archived    bool   `json:"archived"`
	RequestedBy string `json:"requested_by"`
}

type MapUpdatedPayloadV1 struct {
	MapCode    string  `json:"map_code"`
	Difficulty float64 `json:"difficulty"`
	Grade      string  `json:"grade"`
	Archived   bool    `json:"archived"`
	Affected   int     `json:"affected_users"`
}

type RankReconcileRequestedPayloadV1 struct {
	UserIDs []string `json:"user_ids"`
}

type RankReconciledPayloadV1 struct {
	UserID     string   `json:"user_id"`
	RankCount  int      `json:"rank_count"`
	GoldPlus   int      `json:"gold_plus"`
	SilverPlus int      `json:"silver_plus"`
	BronzePlus int      `json:"bronze_plus"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
}

type UserNotificationUpdateRequestedPayloadV1 struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

type UserNotificationUpdatedPayloadV1 struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Flags  int64  `json:"flags"`
}
