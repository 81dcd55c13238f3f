package mapdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a map does not exist.
	ErrNotFound = errors.New("map not found")
	// ErrAlreadyExists is returned when inserting a map code that is taken.
	ErrAlreadyExists = errors.New("map code already exists")
	// ErrNotOfficial is returned when a moderator edit targets a map still in playtest.
	ErrNotOfficial = errors.New("map is not official")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new map repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetMap retrieves a map by code.
func (r *Impl) GetMap(ctx context.Context, db bun.IDB, code string) (*Map, error) {
	db = r.resolveDB(db)
	m := new(Map)
	err := db.NewSelect().Model(m).Where("code = ?", code).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get map: %w", err)
	}
	return m, nil
}

// InsertPlaytestMap inserts the map with official forced to false.
func (r *Impl) InsertPlaytestMap(ctx context.Context, db bun.IDB, m *Map) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	m.Official = false
	m.CreatedAt, m.UpdatedAt = now, now

	res, err := db.NewInsert().
		Model(m).
		On("CONFLICT (code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert map: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// MarkOfficial promotes the map.
func (r *Impl) MarkOfficial(ctx context.Context, db bun.IDB, code string, difficulty float64) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Map)(nil)).
		Set("official = TRUE").
		Set("difficulty = ?", difficulty).
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark map official: %w", err)
	}
	return requireRow(res)
}

// DeleteMap removes the map. Ratings go with it through the foreign key.
func (r *Impl) DeleteMap(ctx context.Context, db bun.IDB, code string) error {
	db = r.resolveDB(db)
	if _, err := db.NewDelete().Model((*Map)(nil)).Where("code = ?", code).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete map: %w", err)
	}
	return nil
}

// UpsertRatings writes ratings in one statement.
func (r *Impl) UpsertRatings(ctx context.Context, db bun.IDB, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	now := time.Now().UTC()
	for i := range ratings {
		ratings[i].CreatedAt = now
	}
	_, err := db.NewInsert().
		Model(&ratings).
		On("CONFLICT (map_code, user_id) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert ratings: %w", err)
	}
	return nil
}

// ListRatings returns ratings for a map.
func (r *Impl) ListRatings(ctx context.Context, db bun.IDB, code string) ([]Rating, error) {
	db = r.resolveDB(db)
	var ratings []Rating
	err := db.NewSelect().
		Model(&ratings).
		Where("map_code = ?", code).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}

// UpdateDifficulty edits an official map.
func (r *Impl) UpdateDifficulty(ctx context.Context, db bun.IDB, code string, difficulty float64) (*Map, error) {
	return r.updateOfficial(ctx, db, code, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("difficulty = ?", difficulty)
	})
}

// SetArchived flips archived on an official map.
func (r *Impl) SetArchived(ctx context.Context, db bun.IDB, code string, archived bool) (*Map, error) {
	return r.updateOfficial(ctx, db, code, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("archived = ?", archived)
	})
}

func (r *Impl) updateOfficial(ctx context.Context, db bun.IDB, code string, set func(*bun.UpdateQuery) *bun.UpdateQuery) (*Map, error) {
	db = r.resolveDB(db)
	m := new(Map)
	q := db.NewUpdate().
		Model(m).
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Where("official = TRUE").
		Returning("*")
	res, err := set(q).Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update map: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetMap(ctx, db, code); err != nil {
			return nil, err
		}
		return nil, ErrNotOfficial
	}
	return m, nil
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
