package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a user row does not exist.
var ErrNotFound = errors.New("user not found")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new user repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetUser retrieves a user by Discord ID.
func (r *Impl) GetUser(ctx context.Context, db bun.IDB, userID string) (*User, error) {
	db = r.resolveDB(db)
	user := new(User)
	err := db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SaveStanding upserts the progression columns.
func (r *Impl) SaveStanding(ctx context.Context, db bun.IDB, userID string, standing Standing) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	user := &User{
		UserID:     userID,
		RankCount:  standing.RankCount,
		GoldPlus:   standing.GoldPlus,
		SilverPlus: standing.SilverPlus,
		BronzePlus: standing.BronzePlus,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := db.NewInsert().
		Model(user).
		On("CONFLICT (user_id) DO UPDATE").
		Set("rank_count = EXCLUDED.rank_count").
		Set("gold_plus = EXCLUDED.gold_plus").
		Set("silver_plus = EXCLUDED.silver_plus").
		Set("bronze_plus = EXCLUDED.bronze_plus").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save user standing: %w", err)
	}
	return nil
}

// SetOptOut flips one bit of the opt-out mask atomically.
func (r *Impl) SetOptOut(ctx context.Context, db bun.IDB, userID string, flag int64, optOut bool) (int64, error) {
	db = r.resolveDB(db)
	var set int64
	if optOut {
		set = flag
	}
	var mask int64
	err := db.NewRaw(`
		INSERT INTO users (user_id, notification_opt_out, created_at, updated_at)
		VALUES (?, ?, now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET notification_opt_out = (users.notification_opt_out & ~?::bigint) | ?::bigint,
		    updated_at = now()
		RETURNING notification_opt_out`,
		userID, set, flag, set,
	).Scan(ctx, &mask)
	if err != nil {
		return 0, fmt.Errorf("failed to update notification opt-out: %w", err)
	}
	return mask, nil
}

// GetOptOut reads the opt-out mask.
func (r *Impl) GetOptOut(ctx context.Context, db bun.IDB, userID string) (int64, error) {
	db = r.resolveDB(db)
	var mask int64
	err := db.NewSelect().
		Model((*User)(nil)).
		Column("notification_opt_out").
		Where("user_id = ?", userID).
		Scan(ctx, &mask)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get notification opt-out: %w", err)
	}
	return mask, nil
}
