package rankdb

import (
	"context"
	"fmt"
	"time"

	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new completion repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// InsertCompletion appends a completion row.
func (r *Impl) InsertCompletion(ctx context.Context, db bun.IDB, c *Completion) error {
	db = r.resolveDB(db)
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now().UTC()
	}
	if c.Medal == "" {
		c.Medal = rankdomain.MedalNone.String()
	}
	if _, err := db.NewInsert().Model(c).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

// ListCompletions joins completions with maps so filtering uses current map state.
func (r *Impl) ListCompletions(ctx context.Context, db bun.IDB, userID string) ([]rankdomain.CompletionRecord, error) {
	db = r.resolveDB(db)
	var rows []completionRow
	err := db.NewSelect().
		TableExpr("completions AS c").
		Join("JOIN maps AS m ON m.code = c.map_code").
		ColumnExpr("c.user_id, c.map_code, c.verified, c.medal").
		ColumnExpr("m.difficulty, m.official, m.archived").
		Where("c.user_id = ?", userID).
		Order("c.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	out := make([]rankdomain.CompletionRecord, 0, len(rows))
	for _, row := range rows {
		medal, err := rankdomain.ParseMedal(row.Medal)
		if err != nil {
			return nil, fmt.Errorf("completion %s/%s: %w", row.UserID, row.MapCode, err)
		}
		out = append(out, rankdomain.CompletionRecord{
			UserID:   row.UserID,
			MapCode:  row.MapCode,
			MapValue: row.Difficulty,
			Verified: row.Verified,
			Official: row.Official,
			Archived: row.Archived,
			Medal:    medal,
		})
	}
	return out, nil
}

// ListCompleters returns distinct user IDs ordered for stable job fan-out.
func (r *Impl) ListCompleters(ctx context.Context, db bun.IDB, mapCode string) ([]string, error) {
	db = r.resolveDB(db)
	var ids []string
	err := db.NewSelect().
		Model((*Completion)(nil)).
		ColumnExpr("DISTINCT c.user_id").
		Where("c.map_code = ?", mapCode).
		OrderExpr("c.user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list completers: %w", err)
	}
	return ids, nil
}

// LockUser blocks until the caller's transaction owns the user's rank lock.
func (r *Impl) LockUser(ctx context.Context, db bun.IDB, userID string) error {
	db = r.resolveDB(db)
	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", "rank:"+userID); err != nil {
		return fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	return nil
}

// MarkMapPending records the debt, refreshing the timestamp of an existing marker.
func (r *Impl) MarkMapPending(ctx context.Context, db bun.IDB, mapCode string) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(&PendingMapReconcile{MapCode: mapCode, RequestedAt: time.Now().UTC()}).
		On("CONFLICT (map_code) DO UPDATE").
		Set("requested_at = EXCLUDED.requested_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark map %s pending: %w", mapCode, err)
	}
	return nil
}

// ListPendingMaps returns up to limit owed map codes, oldest first.
func (r *Impl) ListPendingMaps(ctx context.Context, db bun.IDB, limit int) ([]string, error) {
	db = r.resolveDB(db)
	var codes []string
	err := db.NewSelect().
		Model((*PendingMapReconcile)(nil)).
		Column("map_code").
		Order("requested_at ASC").
		Limit(limit).
		Scan(ctx, &codes)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending maps: %w", err)
	}
	return codes, nil
}

// ClearMapPending removes the marker. Clearing an absent marker is not an error.
func (r *Impl) ClearMapPending(ctx context.Context, db bun.IDB, mapCode string) error {
	db = r.resolveDB(db)
	if _, err := db.NewDelete().Model((*PendingMapReconcile)(nil)).Where("map_code = ?", mapCode).Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear pending map %s: %w", mapCode, err)
	}
	return nil
}
