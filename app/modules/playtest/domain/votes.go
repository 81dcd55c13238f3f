// Package playtestdomain holds the vote aggregation rules and the playtest
// lifecycle.
package playtestdomain

import (
	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
)

// HellVoteMinRank is the lowest voter rank accepted on a Hell playtest.
const HellVoteMinRank = 6

// Session is one map's playtest.
type Session struct {
	MapCode   string
	AuthorID  string
	BaseValue float64
	State     State
}

// BaseTier is the tier the author declared. Invalid base values read as Hell.
func (s Session) BaseTier() difficulty.Tier {
	t, err := difficulty.TierForValue(s.BaseValue)
	if err != nil {
		return difficulty.Hell
	}
	return t
}

// Vote is one voter's numeric difficulty.
type Vote struct {
	VoterID string
	Value   float64
}

// VoteValue converts a grade choice to the value stored for the vote.
func VoteValue(g difficulty.Grade) float64 { return g.Midpoint() }

// RequiredVotes is the finalize quorum of non-author voters for a declared tier.
func RequiredVotes(t difficulty.Tier) int {
	switch {
	case t >= difficulty.Hell:
		return 2
	case t >= difficulty.VeryHard:
		return 3
	default:
		return 5
	}
}

// RequiredCompletions follows the same schedule as RequiredVotes.
func RequiredCompletions(t difficulty.Tier) int { return RequiredVotes(t) }

// RequiredVotesForListing is the vote count shown on map listings. It is a
// separate policy from RequiredVotes and keyed on the continuous value.
func RequiredVotesForListing(value float64) int {
	switch {
	case value >= 9.41:
		return 1
	case value >= 7.65:
		return 2
	case value >= 5.88:
		return 3
	default:
		return 5
	}
}

// ConsensusValue is the mean of all votes, the author's seed vote included.
func ConsensusValue(votes []Vote) (float64, error) {
	if len(votes) == 0 {
		return 0, ErrNoVotes
	}
	var sum float64
	for _, v := range votes {
		sum += v.Value
	}
	return sum / float64(len(votes)), nil
}

// CountVoters counts distinct voters other than the author.
func CountVoters(votes []Vote, authorID string) int {
	seen := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		if v.VoterID == authorID {
			continue
		}
		seen[v.VoterID] = struct{}{}
	}
	return len(seen)
}

// CheckVoter applies the self-vote and Hell rank gates.
func CheckVoter(s Session, voterID string, voterRank int) error {
	if voterID == s.AuthorID {
		return ErrSelfVote
	}
	if s.BaseTier() == difficulty.Hell && voterRank < HellVoteMinRank {
		return ErrRankTooLow
	}
	return nil
}

// Eligible reports whether both quorums for tier are met.
func Eligible(t difficulty.Tier, voters, completions int) bool {
	return voters >= RequiredVotes(t) && completions >= RequiredCompletions(t)
}
