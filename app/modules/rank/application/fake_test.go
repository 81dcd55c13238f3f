package rankservice

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// FakeRankRepository serves an in-memory completion history.
type FakeRankRepository struct {
	trace []string

	History    map[string][]rankdomain.CompletionRecord
	Completers map[string][]string
	Pending    []string

	ListCompletionsFunc func(ctx context.Context, db bun.IDB, userID string) ([]rankdomain.CompletionRecord, error)
	LockUserFunc        func(ctx context.Context, db bun.IDB, userID string) error
}

func (f *FakeRankRepository) record(step string) { f.trace = append(f.trace, step) }

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRankRepository) Trace() []string { return append([]string(nil), f.trace...) }

func (f *FakeRankRepository) InsertCompletion(_ context.Context, _ bun.IDB, c *rankdb.Completion) error {
	f.record("InsertCompletion")
	return nil
}

func (f *FakeRankRepository) ListCompletions(ctx context.Context, db bun.IDB, userID string) ([]rankdomain.CompletionRecord, error) {
	f.record("ListCompletions")
	if f.ListCompletionsFunc != nil {
		return f.ListCompletionsFunc(ctx, db, userID)
	}
	return f.History[userID], nil
}

func (f *FakeRankRepository) ListCompleters(_ context.Context, _ bun.IDB, mapCode string) ([]string, error) {
	f.record("ListCompleters")
	return f.Completers[mapCode], nil
}

func (f *FakeRankRepository) MarkMapPending(_ context.Context, _ bun.IDB, mapCode string) error {
	f.record("MarkMapPending")
	if !slices.Contains(f.Pending, mapCode) {
		f.Pending = append(f.Pending, mapCode)
	}
	return nil
}

func (f *FakeRankRepository) ListPendingMaps(_ context.Context, _ bun.IDB, limit int) ([]string, error) {
	f.record("ListPendingMaps")
	return slices.Clone(f.Pending[:min(limit, len(f.Pending))]), nil
}

func (f *FakeRankRepository) ClearMapPending(_ context.Context, _ bun.IDB, mapCode string) error {
	f.record("ClearMapPending")
	f.Pending = slices.DeleteFunc(f.Pending, func(c string) bool { return c == mapCode })
	return nil
}

func (f *FakeRankRepository) LockUser(ctx context.Context, db bun.IDB, userID string) error {
	f.record("LockUser")
	if f.LockUserFunc != nil {
		return f.LockUserFunc(ctx, db, userID)
	}
	return nil
}

// FakeUserRepository stores standings in memory.
type FakeUserRepository struct {
	Standings map[string]userdb.Standing
}

func (f *FakeUserRepository) GetUser(_ context.Context, _ bun.IDB, userID string) (*userdb.User, error) {
	s, ok := f.Standings[userID]
	if !ok {
		return nil, userdb.ErrNotFound
	}
	return &userdb.User{UserID: userID, RankCount: s.RankCount, GoldPlus: s.GoldPlus, SilverPlus: s.SilverPlus, BronzePlus: s.BronzePlus}, nil
}

func (f *FakeUserRepository) SaveStanding(_ context.Context, _ bun.IDB, userID string, standing userdb.Standing) error {
	if f.Standings == nil {
		f.Standings = map[string]userdb.Standing{}
	}
	f.Standings[userID] = standing
	return nil
}

func (f *FakeUserRepository) SetOptOut(context.Context, bun.IDB, string, int64, bool) (int64, error) {
	return 0, nil
}

func (f *FakeUserRepository) GetOptOut(context.Context, bun.IDB, string) (int64, error) { return 0, nil }

// FakeRoleSink holds member roles and counts replace calls. Users listed in
// Departed are reported as not in the guild.
type FakeRoleSink struct {
	Roles        map[string][]string
	Departed     map[string]bool
	ReplaceCalls int
	ReplaceErr   error
}

func (f *FakeRoleSink) CurrentRoles(_ context.Context, userID string) ([]string, error) {
	if f.Departed[userID] {
		return nil, ErrMemberNotFound
	}
	return slices.Clone(f.Roles[userID]), nil
}

func (f *FakeRoleSink) ReplaceRoles(_ context.Context, userID string, roles []string) error {
	f.ReplaceCalls++
	if f.ReplaceErr != nil {
		return f.ReplaceErr
	}
	if f.Roles == nil {
		f.Roles = map[string][]string{}
	}
	f.Roles[userID] = slices.Clone(roles)
	return nil
}

type sentNotice struct {
	Target string
	Kind   notification.Kind
}

// FakeNotifier records notices.
type FakeNotifier struct {
	mu      sync.Mutex
	Users   []sentNotice
	Channel []sentNotice
	Err     error
}

func (f *FakeNotifier) NotifyUser(_ context.Context, userID string, kind notification.Kind, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users = append(f.Users, sentNotice{userID, kind})
	return f.Err
}

func (f *FakeNotifier) NotifyChannel(_ context.Context, channelID string, kind notification.Kind, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channel = append(f.Channel, sentNotice{channelID, kind})
	return f.Err
}

// FakeQueue records enqueued users. Err fails every enqueue.
type FakeQueue struct {
	Enqueued [][]string
	Err      error
}

func (f *FakeQueue) EnqueueReconcile(_ context.Context, userIDs []string) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	f.Enqueued = append(f.Enqueued, slices.Clone(userIDs))
	return len(userIDs), nil
}

// FakePublisher captures published messages.
type FakePublisher struct {
	Topics []string
}

func (f *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	for range msgs {
		f.Topics = append(f.Topics, topic)
	}
	return nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
