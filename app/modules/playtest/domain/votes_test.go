package playtestdomain

import (
	"testing"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGrade(t *testing.T, name string) difficulty.Grade {
	t.Helper()
	g, err := difficulty.ParseGrade(name)
	require.NoError(t, err)
	return g
}

func TestRequiredVotes(t *testing.T) {
	want := map[difficulty.Tier]int{
		difficulty.Beginner: 5,
		difficulty.Easy:     5,
		difficulty.Medium:   5,
		difficulty.Hard:     5,
		difficulty.VeryHard: 3,
		difficulty.Extreme:  3,
		difficulty.Hell:     2,
	}
	for tier, n := range want {
		assert.Equal(t, n, RequiredVotes(tier), tier.String())
		assert.Equal(t, n, RequiredCompletions(tier), tier.String())
	}
}

func TestRequiredVotesForListing(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{9.41, 1},
		{9.9, 1},
		{9.40, 2},
		{7.65, 2},
		{7.64, 3},
		{5.88, 3},
		{5.87, 5},
		{0, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredVotesForListing(tt.value), "value %v", tt.value)
	}
}

func TestConsensusValue(t *testing.T) {
	_, err := ConsensusValue(nil)
	assert.ErrorIs(t, err, ErrNoVotes)

	got, err := ConsensusValue([]Vote{{"author", 5.0}, {"a", 4.0}, {"b", 6.0}})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestRepeatedVoteLeavesConsensusUnchanged(t *testing.T) {
	faker := gofakeit.New(11)
	votes := map[string]float64{"author": 5.0}
	for i := 0; i < 6; i++ {
		votes[faker.Username()] = faker.Float64Range(0, 9.99)
	}

	// Upserting a voter's existing value is the same as re-casting it.
	asSlice := func() []Vote {
		out := make([]Vote, 0, len(votes))
		for id, v := range votes {
			out = append(out, Vote{id, v})
		}
		return out
	}
	before, err := ConsensusValue(asSlice())
	require.NoError(t, err)
	voters := CountVoters(asSlice(), "author")

	for id, v := range votes {
		votes[id] = v
	}
	after, err := ConsensusValue(asSlice())
	require.NoError(t, err)
	assert.InDelta(t, before, after, 1e-9)
	assert.Equal(t, voters, CountVoters(asSlice(), "author"))
}

func TestCountVotersExcludesAuthor(t *testing.T) {
	votes := []Vote{{"author", 5}, {"a", 4}, {"b", 6}, {"a", 3}}
	assert.Equal(t, 2, CountVoters(votes, "author"))
}

func TestCheckVoter(t *testing.T) {
	hard := Session{MapCode: "M1", AuthorID: "author", BaseValue: mustGrade(t, "Hard").Midpoint(), State: StateOpen}
	hell := Session{MapCode: "M2", AuthorID: "author", BaseValue: mustGrade(t, "Hell").Midpoint(), State: StateOpen}

	tests := []struct {
		name    string
		session Session
		voter   string
		rank    int
		wantErr error
	}{
		{"author cannot vote", hard, "author", 7, ErrSelfVote},
		{"any rank votes on hard", hard, "v", 1, nil},
		{"rank 4 blocked on hell", hell, "v", 4, ErrRankTooLow},
		{"rank 5 blocked on hell", hell, "v", 5, ErrRankTooLow},
		{"grandmaster votes on hell", hell, "v", 6, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVoter(tt.session, tt.voter, tt.rank)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
		})
	}
}

func TestEligible(t *testing.T) {
	assert.False(t, Eligible(difficulty.Hard, 5, 4))
	assert.False(t, Eligible(difficulty.Hard, 4, 5))
	assert.True(t, Eligible(difficulty.Hard, 5, 5))
	assert.True(t, Eligible(difficulty.Hell, 2, 2))
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateOpen.CanTransition(StateAwaitingFinalize))
	assert.False(t, StateOpen.CanTransition(StateApproved))
	assert.True(t, StateAwaitingFinalize.CanTransition(StateApproved))
	assert.True(t, StateAwaitingFinalize.CanTransition(StateRejected))
	assert.False(t, StateApproved.CanTransition(StateOpen))
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateAwaitingFinalize.Terminal())
}
