package playtestservice

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	playtestdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/domain"
	playtestdb "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

// FakePlaytestRepository is an in-memory playtestdb.Repository. Func fields
// override individual methods.
type FakePlaytestRepository struct {
	mu    sync.Mutex
	trace []string

	Sessions   map[string]*playtestdb.Playtest
	Votes      map[string]map[string]float64
	Completers map[string][]string

	ClaimFinalizeFunc func(ctx context.Context, db bun.IDB, mapCode string) (bool, error)
	ListVotesFunc     func(ctx context.Context, db bun.IDB, mapCode string) ([]playtestdomain.Vote, error)
	UpsertVoteFunc    func(ctx context.Context, db bun.IDB, v *playtestdb.PlaytestVote) error
}

func NewFakePlaytestRepository() *FakePlaytestRepository {
	return &FakePlaytestRepository{
		Sessions:   map[string]*playtestdb.Playtest{},
		Votes:      map[string]map[string]float64{},
		Completers: map[string][]string{},
	}
}

func (f *FakePlaytestRepository) record(step string) { f.trace = append(f.trace, step) }

// Trace returns the sequence of method calls made to the fake.
func (f *FakePlaytestRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Open seeds an open session with the author's vote.
func (f *FakePlaytestRepository) Open(mapCode, authorID string, base float64) {
	f.Sessions[mapCode] = &playtestdb.Playtest{
		MapCode:   mapCode,
		AuthorID:  authorID,
		BaseValue: base,
		State:     string(playtestdomain.StateOpen),
	}
	f.Votes[mapCode] = map[string]float64{authorID: base}
}

func (f *FakePlaytestRepository) State(mapCode string) playtestdomain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Sessions[mapCode]; ok {
		return playtestdomain.State(p.State)
	}
	return ""
}

func (f *FakePlaytestRepository) CreateSession(ctx context.Context, db bun.IDB, p *playtestdb.Playtest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateSession")
	if existing, ok := f.Sessions[p.MapCode]; ok && existing.State != string(playtestdomain.StateRejected) {
		return playtestdb.ErrAlreadyExists
	}
	cp := *p
	cp.State = string(playtestdomain.StateOpen)
	f.Sessions[p.MapCode] = &cp
	return nil
}

func (f *FakePlaytestRepository) GetSession(ctx context.Context, db bun.IDB, mapCode string) (*playtestdb.Playtest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetSession")
	p, ok := f.Sessions[mapCode]
	if !ok {
		return nil, playtestdb.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakePlaytestRepository) UpsertVote(ctx context.Context, db bun.IDB, v *playtestdb.PlaytestVote) error {
	if f.UpsertVoteFunc != nil {
		return f.UpsertVoteFunc(ctx, db, v)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertVote")
	p, ok := f.Sessions[v.MapCode]
	if !ok || p.State != string(playtestdomain.StateOpen) {
		return playtestdb.ErrSessionNotOpen
	}
	if f.Votes[v.MapCode] == nil {
		f.Votes[v.MapCode] = map[string]float64{}
	}
	f.Votes[v.MapCode][v.VoterID] = v.Value
	return nil
}

func (f *FakePlaytestRepository) ListVotes(ctx context.Context, db bun.IDB, mapCode string) ([]playtestdomain.Vote, error) {
	if f.ListVotesFunc != nil {
		return f.ListVotesFunc(ctx, db, mapCode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListVotes")
	out := make([]playtestdomain.Vote, 0, len(f.Votes[mapCode]))
	for id, v := range f.Votes[mapCode] {
		out = append(out, playtestdomain.Vote{VoterID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoterID < out[j].VoterID })
	return out, nil
}

func (f *FakePlaytestRepository) CountCompleters(ctx context.Context, db bun.IDB, mapCode, authorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]struct{}{}
	for _, id := range f.Completers[mapCode] {
		if id != authorID {
			seen[id] = struct{}{}
		}
	}
	return len(seen), nil
}

func (f *FakePlaytestRepository) ClaimFinalize(ctx context.Context, db bun.IDB, mapCode string) (bool, error) {
	if f.ClaimFinalizeFunc != nil {
		return f.ClaimFinalizeFunc(ctx, db, mapCode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ClaimFinalize")
	p, ok := f.Sessions[mapCode]
	if !ok || p.State != string(playtestdomain.StateOpen) {
		return false, nil
	}
	p.State = string(playtestdomain.StateAwaitingFinalize)
	return true, nil
}

func (f *FakePlaytestRepository) CompleteSession(ctx context.Context, db bun.IDB, mapCode string, state playtestdomain.State, consensus float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CompleteSession")
	p, ok := f.Sessions[mapCode]
	if !ok || p.State != string(playtestdomain.StateAwaitingFinalize) {
		return playtestdb.ErrNotFound
	}
	p.State = string(state)
	p.ConsensusValue = &consensus
	return nil
}

func (f *FakePlaytestRepository) DeleteVotes(ctx context.Context, db bun.IDB, mapCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteVotes")
	delete(f.Votes, mapCode)
	return nil
}

// FakeMapRepository records map writes made by the playtest service.
type FakeMapRepository struct {
	mu    sync.Mutex
	trace []string

	Official map[string]float64
	Deleted  []string
	Ratings  []mapdb.Rating

	InsertPlaytestMapFunc func(ctx context.Context, db bun.IDB, m *mapdb.Map) error
}

func (f *FakeMapRepository) record(step string) { f.trace = append(f.trace, step) }

// Trace returns the sequence of method calls made to the fake.
func (f *FakeMapRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeMapRepository) GetMap(ctx context.Context, db bun.IDB, code string) (*mapdb.Map, error) {
	return nil, mapdb.ErrNotFound
}

func (f *FakeMapRepository) InsertPlaytestMap(ctx context.Context, db bun.IDB, m *mapdb.Map) error {
	f.mu.Lock()
	f.record("InsertPlaytestMap")
	f.mu.Unlock()
	if f.InsertPlaytestMapFunc != nil {
		return f.InsertPlaytestMapFunc(ctx, db, m)
	}
	return nil
}

func (f *FakeMapRepository) MarkOfficial(ctx context.Context, db bun.IDB, code string, difficulty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkOfficial")
	if f.Official == nil {
		f.Official = map[string]float64{}
	}
	f.Official[code] = difficulty
	return nil
}

func (f *FakeMapRepository) DeleteMap(ctx context.Context, db bun.IDB, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteMap")
	f.Deleted = append(f.Deleted, code)
	return nil
}

func (f *FakeMapRepository) UpsertRatings(ctx context.Context, db bun.IDB, ratings []mapdb.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertRatings")
	f.Ratings = append(f.Ratings, ratings...)
	return nil
}

func (f *FakeMapRepository) ListRatings(ctx context.Context, db bun.IDB, code string) ([]mapdb.Rating, error) {
	return nil, nil
}

func (f *FakeMapRepository) UpdateDifficulty(ctx context.Context, db bun.IDB, code string, difficulty float64) (*mapdb.Map, error) {
	return nil, mapdb.ErrNotFound
}

func (f *FakeMapRepository) SetArchived(ctx context.Context, db bun.IDB, code string, archived bool) (*mapdb.Map, error) {
	return nil, mapdb.ErrNotFound
}

// FakeRankLookup returns configured ranks; unknown users are rank 1.
type FakeRankLookup struct {
	Ranks map[string]int
	Err   error
}

func (f *FakeRankLookup) CurrentRank(ctx context.Context, userID string) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	if r, ok := f.Ranks[userID]; ok {
		return r, nil
	}
	return 1, nil
}

// FakeScheduler records scheduled map reconciles and pending markers. A
// successful schedule clears the map's marker like the rank service does.
type FakeScheduler struct {
	mu      sync.Mutex
	Calls   []string
	Pending map[string]bool
	Count   int
	Err     error
	MarkErr error
}

func (f *FakeScheduler) MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MarkErr != nil {
		return f.MarkErr
	}
	if f.Pending == nil {
		f.Pending = map[string]bool{}
	}
	f.Pending[mapCode] = true
	return nil
}

func (f *FakeScheduler) ReconcileMapCompleters(ctx context.Context, mapCode string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, mapCode)
	if f.Err != nil {
		return 0, f.Err
	}
	delete(f.Pending, mapCode)
	return f.Count, nil
}

// Sweep schedules every pending map, as the periodic sweep job does.
func (f *FakeScheduler) Sweep(ctx context.Context) {
	f.mu.Lock()
	var codes []string
	for code := range f.Pending {
		codes = append(codes, code)
	}
	f.mu.Unlock()
	sort.Strings(codes)
	for _, code := range codes {
		_, _ = f.ReconcileMapCompleters(ctx, code)
	}
}

type sentNotice struct {
	To      string
	Channel bool
	Kind    notification.Kind
	Message string
}

// FakeNotifier records notices.
type FakeNotifier struct {
	mu   sync.Mutex
	Sent []sentNotice
	Err  error
}

func (f *FakeNotifier) NotifyUser(ctx context.Context, userID string, kind notification.Kind, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentNotice{To: userID, Kind: kind, Message: message})
	return f.Err
}

func (f *FakeNotifier) NotifyChannel(ctx context.Context, channelID string, kind notification.Kind, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentNotice{To: channelID, Channel: true, Kind: kind, Message: message})
	return f.Err
}

func (f *FakeNotifier) Kinds() []notification.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Kind
	for _, n := range f.Sent {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	repo      *FakePlaytestRepository
	maps      *FakeMapRepository
	ranks     *FakeRankLookup
	scheduler *FakeScheduler
	notifier  *FakeNotifier
	service   *PlaytestService
}

func newFixture() *fixture {
	f := &fixture{
		repo:      NewFakePlaytestRepository(),
		maps:      &FakeMapRepository{},
		ranks:     &FakeRankLookup{Ranks: map[string]int{}},
		scheduler: &FakeScheduler{},
		notifier:  &FakeNotifier{},
	}
	f.service = NewPlaytestService(Deps{
		Repo:              f.repo,
		Maps:              f.maps,
		Ranks:             f.ranks,
		Scheduler:         f.scheduler,
		Notifier:          f.notifier,
		NewsfeedChannelID: "newsfeed",
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:           observability.NoOpOperationMetrics{},
		Tracer:            noop.NewTracerProvider().Tracer("test"),
	})
	return f
}
