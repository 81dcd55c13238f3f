package mapservice

import (
	"context"
	"io"
	"log/slog"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// FakeMapRepository provides a programmable stub for mapdb.Repository.
type FakeMapRepository struct {
	trace []string

	GetMapFunc            func(ctx context.Context, db bun.IDB, code string) (*mapdb.Map, error)
	InsertPlaytestMapFunc func(ctx context.Context, db bun.IDB, m *mapdb.Map) error
	MarkOfficialFunc      func(ctx context.Context, db bun.IDB, code string, difficulty float64) error
	DeleteMapFunc         func(ctx context.Context, db bun.IDB, code string) error
	UpsertRatingsFunc     func(ctx context.Context, db bun.IDB, ratings []mapdb.Rating) error
	ListRatingsFunc       func(ctx context.Context, db bun.IDB, code string) ([]mapdb.Rating, error)
	UpdateDifficultyFunc  func(ctx context.Context, db bun.IDB, code string, difficulty float64) (*mapdb.Map, error)
	SetArchivedFunc       func(ctx context.Context, db bun.IDB, code string, archived bool) (*mapdb.Map, error)
}

func (f *FakeMapRepository) record(step string) { f.trace = append(f.trace, step) }

// Trace returns the sequence of method calls made to the fake.
func (f *FakeMapRepository) Trace() []string {
	return append([]string(nil), f.trace...)
}

func (f *FakeMapRepository) GetMap(ctx context.Context, db bun.IDB, code string) (*mapdb.Map, error) {
	f.record("GetMap")
	if f.GetMapFunc != nil {
		return f.GetMapFunc(ctx, db, code)
	}
	return nil, mapdb.ErrNotFound
}

func (f *FakeMapRepository) InsertPlaytestMap(ctx context.Context, db bun.IDB, m *mapdb.Map) error {
	f.record("InsertPlaytestMap")
	if f.InsertPlaytestMapFunc != nil {
		return f.InsertPlaytestMapFunc(ctx, db, m)
	}
	return nil
}

func (f *FakeMapRepository) MarkOfficial(ctx context.Context, db bun.IDB, code string, difficulty float64) error {
	f.record("MarkOfficial")
	if f.MarkOfficialFunc != nil {
		return f.MarkOfficialFunc(ctx, db, code, difficulty)
	}
	return nil
}

func (f *FakeMapRepository) DeleteMap(ctx context.Context, db bun.IDB, code string) error {
	f.record("DeleteMap")
	if f.DeleteMapFunc != nil {
		return f.DeleteMapFunc(ctx, db, code)
	}
	return nil
}

func (f *FakeMapRepository) UpsertRatings(ctx context.Context, db bun.IDB, ratings []mapdb.Rating) error {
	f.record("UpsertRatings")
	if f.UpsertRatingsFunc != nil {
		return f.UpsertRatingsFunc(ctx, db, ratings)
	}
	return nil
}

func (f *FakeMapRepository) ListRatings(ctx context.Context, db bun.IDB, code string) ([]mapdb.Rating, error) {
	f.record("ListRatings")
	if f.ListRatingsFunc != nil {
		return f.ListRatingsFunc(ctx, db, code)
	}
	return nil, nil
}

func (f *FakeMapRepository) UpdateDifficulty(ctx context.Context, db bun.IDB, code string, difficulty float64) (*mapdb.Map, error) {
	f.record("UpdateDifficulty")
	if f.UpdateDifficultyFunc != nil {
		return f.UpdateDifficultyFunc(ctx, db, code, difficulty)
	}
	return nil, mapdb.ErrNotFound
}

func (f *FakeMapRepository) SetArchived(ctx context.Context, db bun.IDB, code string, archived bool) (*mapdb.Map, error) {
	f.record("SetArchived")
	if f.SetArchivedFunc != nil {
		return f.SetArchivedFunc(ctx, db, code, archived)
	}
	return nil, mapdb.ErrNotFound
}

// FakeScheduler records the map codes it was asked to reconcile.
type FakeScheduler struct {
	Calls []string
	Count int
	Err   error
}

func (f *FakeScheduler) ReconcileMapCompleters(_ context.Context, mapCode string) (int, error) {
	f.Calls = append(f.Calls, mapCode)
	return f.Count, f.Err
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
