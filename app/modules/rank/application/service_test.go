package rankservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/events"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fixture struct {
	repo      *FakeRankRepository
	users     *FakeUserRepository
	roles     *FakeRoleSink
	notifier  *FakeNotifier
	queue     *FakeQueue
	publisher *FakePublisher
	svc       *RankService
}

func roleTable() rankdomain.RoleTable {
	ids := func(prefix string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%s%d", prefix, i)
		}
		return out
	}
	return rankdomain.RoleTable{
		Rank:   ids("rank", rankdomain.MaxRank),
		Gold:   ids("gold", rankdomain.MaxRank-1),
		Silver: ids("silver", rankdomain.MaxRank-1),
		Bronze: ids("bronze", rankdomain.MaxRank-1),
	}
}

func newFixture() *fixture {
	f := &fixture{
		repo:      &FakeRankRepository{History: map[string][]rankdomain.CompletionRecord{}, Completers: map[string][]string{}},
		users:     &FakeUserRepository{},
		roles:     &FakeRoleSink{Roles: map[string][]string{}},
		notifier:  &FakeNotifier{},
		queue:     &FakeQueue{},
		publisher: &FakePublisher{},
	}
	f.svc = NewRankService(Deps{
		Repo:              f.repo,
		Users:             f.users,
		Roles:             f.roles,
		Notifier:          f.notifier,
		Queue:             f.queue,
		Publisher:         f.publisher,
		RoleTable:         roleTable(),
		NewsfeedChannelID: "newsfeed",
		Logger:            discardLogger(),
		Metrics:           observability.NoOpOperationMetrics{},
		Tracer:            noop.NewTracerProvider().Tracer("test"),
	})
	return f
}

func history(userID, prefix string, value float64, n int, medal rankdomain.Medal) []rankdomain.CompletionRecord {
	out := make([]rankdomain.CompletionRecord, n)
	for i := range out {
		out[i] = rankdomain.CompletionRecord{
			UserID:   userID,
			MapCode:  fmt.Sprintf("%s%02d", prefix, i),
			MapValue: value,
			Verified: true,
			Official: true,
			Medal:    medal,
		}
	}
	return out
}

func TestReconcileUserPromotes(t *testing.T) {
	f := newFixture()
	f.roles.Roles["u1"] = []string{"booster", "rank0"}
	f.repo.History["u1"] = append(history("u1", "E", 1.5, 10, rankdomain.MedalGold), history("u1", "M", 3.0, 10, rankdomain.MedalNone)...)

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	assert.Equal(t, rankdomain.Progression{RankCount: 2, GoldPlus: 1}, res.Success.Progression)
	assert.ElementsMatch(t, []string{"rank1", "rank2", "gold0"}, res.Success.Delta.ToAdd)
	assert.Empty(t, res.Success.Delta.ToRemove)
	assert.ElementsMatch(t, []string{"booster", "rank0", "rank1", "rank2", "gold0"}, f.roles.Roles["u1"])
	assert.Equal(t, 1, f.roles.ReplaceCalls)
	assert.Equal(t, []string{"LockUser", "ListCompletions"}, f.repo.Trace())

	assert.Equal(t, []sentNotice{{"u1", notification.KindPromotion}}, f.notifier.Users)
	assert.Equal(t, []sentNotice{{"newsfeed", notification.KindPromotion}}, f.notifier.Channel)
	assert.Equal(t, userdb.Standing{RankCount: 2, GoldPlus: 1}, f.users.Standings["u1"])
}

func TestReconcileUserIsIdempotent(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalSilver)

	_, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, f.roles.ReplaceCalls)
	notices := len(f.notifier.Users) + len(f.notifier.Channel)

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Success.Delta.Empty())
	assert.Equal(t, 1, f.roles.ReplaceCalls, "second pass must not touch roles")
	assert.Equal(t, notices, len(f.notifier.Users)+len(f.notifier.Channel), "second pass must not notify")
	assert.Equal(t, userdb.Standing{RankCount: 1, SilverPlus: 1}, f.users.Standings["u1"])
}

func TestReconcileUserDemotesAfterDifficultyEdit(t *testing.T) {
	f := newFixture()
	hard, _ := difficulty.ParseGrade("Hard")
	easy, _ := difficulty.ParseGrade("Easy")

	records := concat(
		history("u1", "E", easy.Midpoint(), 10, rankdomain.MedalNone),
		history("u1", "M", 3.0, 10, rankdomain.MedalNone),
		history("u1", "H", hard.Midpoint(), 9, rankdomain.MedalNone),
	)
	edited := rankdomain.CompletionRecord{UserID: "u1", MapCode: "EDIT", MapValue: hard.Midpoint(), Verified: true, Official: true}
	f.repo.History["u1"] = append(records, edited)

	_, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, f.users.Standings["u1"].RankCount)
	f.notifier.Users, f.notifier.Channel = nil, nil

	// A moderator moves the tenth Hard map down to Easy.
	edited.MapValue = easy.Midpoint()
	f.repo.History["u1"] = append(records, edited)

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Success.Progression.RankCount)
	assert.Empty(t, res.Success.Delta.ToAdd)
	assert.Equal(t, []string{"rank3"}, res.Success.Delta.ToRemove)
	assert.Equal(t, []sentNotice{{"u1", notification.KindDemotion}}, f.notifier.Users)
	assert.Empty(t, f.notifier.Channel, "demotions are never announced")
}

func TestReconcileUserMedalSwapWithLowerRankIsPrivate(t *testing.T) {
	f := newFixture()
	hard, _ := difficulty.ParseGrade("Hard")
	easy, _ := difficulty.ParseGrade("Easy")

	records := concat(
		history("u1", "E", easy.Midpoint(), 9, rankdomain.MedalGold),
		history("u1", "S", easy.Midpoint(), 1, rankdomain.MedalSilver),
		history("u1", "M", 3.0, 10, rankdomain.MedalNone),
		history("u1", "H", hard.Midpoint(), 9, rankdomain.MedalNone),
	)
	edited := rankdomain.CompletionRecord{UserID: "u1", MapCode: "EDIT", MapValue: hard.Midpoint(), Verified: true, Official: true, Medal: rankdomain.MedalGold}
	f.repo.History["u1"] = append(slices.Clone(records), edited)

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, rankdomain.Progression{RankCount: 3, SilverPlus: 1}, res.Success.Progression)
	f.notifier.Users, f.notifier.Channel = nil, nil

	// Moving the gold Hard map to Easy completes the Easy gold set but drops Hard.
	edited.MapValue = easy.Midpoint()
	f.repo.History["u1"] = append(slices.Clone(records), edited)

	res, err = f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	out := res.Success
	assert.Equal(t, rankdomain.Progression{RankCount: 2, GoldPlus: 1}, out.Progression)
	assert.Equal(t, rankdomain.Progression{RankCount: 3, SilverPlus: 1}, out.Previous)
	assert.ElementsMatch(t, []string{"gold0"}, out.Delta.ToAdd)
	assert.ElementsMatch(t, []string{"rank3", "silver0"}, out.Delta.ToRemove)
	assert.False(t, out.Promoted())

	assert.Equal(t, []sentNotice{{"u1", notification.KindDemotion}}, f.notifier.Users)
	assert.Empty(t, f.notifier.Channel, "a lower rank is never announced")
}

func TestReconcileOutcomePromoted(t *testing.T) {
	tests := []struct {
		name string
		out  ReconcileOutcome
		want bool
	}{
		{"no change", ReconcileOutcome{}, false},
		{"roles only added", ReconcileOutcome{Delta: rankdomain.Delta{ToAdd: []string{"gold0"}}}, true},
		{"roles only removed", ReconcileOutcome{Delta: rankdomain.Delta{ToRemove: []string{"rank2"}}}, false},
		{
			"swap with higher rank",
			ReconcileOutcome{
				Progression: rankdomain.Progression{RankCount: 3, GoldPlus: 2},
				Previous:    rankdomain.Progression{RankCount: 2, SilverPlus: 1},
				Delta:       rankdomain.Delta{ToAdd: []string{"rank3", "gold0", "gold1"}, ToRemove: []string{"silver0"}},
			},
			true,
		},
		{
			"swap at same rank",
			ReconcileOutcome{
				Progression: rankdomain.Progression{RankCount: 1, GoldPlus: 1},
				Previous:    rankdomain.Progression{RankCount: 1, SilverPlus: 1},
				Delta:       rankdomain.Delta{ToAdd: []string{"gold0"}, ToRemove: []string{"silver0"}},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.out.Promoted())
		})
	}
}

func TestReconcileUserDepartedMemberPersistsStanding(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalNone)
	f.roles.Departed = map[string]bool{"u1": true}

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.True(t, res.Success.Departed)
	assert.True(t, res.Success.Delta.Empty())
	assert.Zero(t, f.roles.ReplaceCalls)
	assert.Equal(t, userdb.Standing{RankCount: 1}, f.users.Standings["u1"])
	assert.Empty(t, f.notifier.Users)
	assert.Empty(t, f.notifier.Channel)

	rank, err := f.svc.CurrentRank(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	require.NoError(t, f.svc.ReconcileUserJob(context.Background(), "u1"), "a departed member is not retried")
}

func TestReconcileUserRoleFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalNone)
	f.roles.ReplaceErr = errors.New("discord 503")

	_, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.Error(t, err)
	assert.Empty(t, f.notifier.Users)
	_, saved := f.users.Standings["u1"]
	assert.False(t, saved)
}

func TestReconcileUserNotificationFailureIsTolerated(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalNone)
	f.notifier.Err = errors.New("dm closed")

	res, err := f.svc.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
}

func TestReconcileUserRejectsEmptyID(t *testing.T) {
	f := newFixture()
	res, err := f.svc.ReconcileUser(context.Background(), "")
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.ErrorIs(t, *res.Failure, ErrInvalidUserID)
	assert.Empty(t, f.repo.Trace())
}

func TestReconcileUserJobPublishesOutcome(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalNone)

	require.NoError(t, f.svc.ReconcileUserJob(context.Background(), "u1"))
	assert.Equal(t, []string{events.RankReconciledV1}, f.publisher.Topics)

	require.NoError(t, f.svc.ReconcileUserJob(context.Background(), ""))
	assert.Len(t, f.publisher.Topics, 1)
}

func TestCurrentRank(t *testing.T) {
	f := newFixture()
	f.users.Standings = map[string]userdb.Standing{"gm": {RankCount: 5}}

	rank, err := f.svc.CurrentRank(context.Background(), "gm")
	require.NoError(t, err)
	assert.Equal(t, 6, rank)

	rank, err = f.svc.CurrentRank(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
}

func TestGetProgression(t *testing.T) {
	f := newFixture()
	f.repo.History["u1"] = history("u1", "E", 1.5, 10, rankdomain.MedalBronze)

	view, err := f.svc.GetProgression(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &ProgressionView{UserID: "u1", Rank: 2, RankName: "Jumper", RankCount: 1, BronzePlus: 1}, view)
}

func TestReconcileMapCompleters(t *testing.T) {
	f := newFixture()
	f.repo.Completers["MAP1"] = []string{"u1", "u2", "u2", ""}

	n, err := f.svc.ReconcileMapCompleters(context.Background(), "MAP1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{{"u1", "u2"}}, f.queue.Enqueued)

	n, err = f.svc.ReconcileMapCompleters(context.Background(), "EMPTY")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.queue.Enqueued, 1)
}

func concat(sets ...[]rankdomain.CompletionRecord) []rankdomain.CompletionRecord {
	var out []rankdomain.CompletionRecord
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func TestSweepPendingReconciles(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues completers and clears markers", func(t *testing.T) {
		f := newFixture()
		f.repo.Completers["MAP1"] = []string{"u1", "u2"}
		f.repo.Completers["MAP2"] = []string{"u2", "u3"}
		require.NoError(t, f.svc.MarkMapPending(ctx, nil, "MAP1"))
		require.NoError(t, f.svc.MarkMapPending(ctx, nil, "MAP2"))

		n, err := f.svc.SweepPendingReconciles(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, [][]string{{"u1", "u2"}, {"u2", "u3"}}, f.queue.Enqueued)
		assert.Empty(t, f.repo.Pending)
	})

	t.Run("keeps markers when enqueue fails", func(t *testing.T) {
		f := newFixture()
		f.repo.Completers["MAP1"] = []string{"u1"}
		f.repo.Pending = []string{"MAP1"}
		f.queue.Err = errors.New("queue unavailable")

		_, err := f.svc.SweepPendingReconciles(ctx)
		require.Error(t, err)
		assert.Equal(t, []string{"MAP1"}, f.repo.Pending)

		f.queue.Err = nil
		n, err := f.svc.SweepPendingReconciles(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Empty(t, f.repo.Pending)
	})

	t.Run("settles maps without completers", func(t *testing.T) {
		f := newFixture()
		f.repo.Pending = []string{"EMPTY"}

		n, err := f.svc.SweepPendingReconciles(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, f.repo.Pending)
	})
}

func TestMarkMapPendingRejectsEmptyCode(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.svc.MarkMapPending(context.Background(), nil, ""), ErrInvalidMap)
	assert.Empty(t, f.repo.Pending)
}
