package userservice

import (
	"context"
	"io"
	"log/slog"

	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// FakeUserRepository provides a programmable stub for userdb.Repository.
type FakeUserRepository struct {
	trace []string

	GetUserFunc      func(ctx context.Context, db bun.IDB, userID string) (*userdb.User, error)
	SaveStandingFunc func(ctx context.Context, db bun.IDB, userID string, standing userdb.Standing) error
	SetOptOutFunc    func(ctx context.Context, db bun.IDB, userID string, flag int64, optOut bool) (int64, error)
	GetOptOutFunc    func(ctx context.Context, db bun.IDB, userID string) (int64, error)
}

func (f *FakeUserRepository) record(step string) { f.trace = append(f.trace, step) }

// Trace returns the sequence of method calls made to the fake.
func (f *FakeUserRepository) Trace() []string {
	return append([]string(nil), f.trace...)
}

func (f *FakeUserRepository) GetUser(ctx context.Context, db bun.IDB, userID string) (*userdb.User, error) {
	f.record("GetUser")
	if f.GetUserFunc != nil {
		return f.GetUserFunc(ctx, db, userID)
	}
	return nil, userdb.ErrNotFound
}

func (f *FakeUserRepository) SaveStanding(ctx context.Context, db bun.IDB, userID string, standing userdb.Standing) error {
	f.record("SaveStanding")
	if f.SaveStandingFunc != nil {
		return f.SaveStandingFunc(ctx, db, userID, standing)
	}
	return nil
}

func (f *FakeUserRepository) SetOptOut(ctx context.Context, db bun.IDB, userID string, flag int64, optOut bool) (int64, error) {
	f.record("SetOptOut")
	if f.SetOptOutFunc != nil {
		return f.SetOptOutFunc(ctx, db, userID, flag, optOut)
	}
	return 0, nil
}

func (f *FakeUserRepository) GetOptOut(ctx context.Context, db bun.IDB, userID string) (int64, error) {
	f.record("GetOptOut")
	if f.GetOptOutFunc != nil {
		return f.GetOptOutFunc(ctx, db, userID)
	}
	return 0, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
