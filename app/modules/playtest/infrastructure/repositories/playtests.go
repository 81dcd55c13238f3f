package playtestdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	playtestdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/domain"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("playtest not found")
	// ErrAlreadyExists is returned when a live or approved session holds the code.
	ErrAlreadyExists = errors.New("playtest already exists")
	// ErrSessionNotOpen is returned when a vote arrives for a missing or closed session.
	ErrSessionNotOpen = errors.New("playtest not open")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new playtest repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// CreateSession inserts the session row in the open state.
func (r *Impl) CreateSession(ctx context.Context, db bun.IDB, p *Playtest) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	p.State = string(playtestdomain.StateOpen)
	p.ConsensusValue = nil
	p.FinalizedAt = nil
	p.CreatedAt, p.UpdatedAt = now, now

	res, err := db.NewInsert().
		Model(p).
		On("CONFLICT (map_code) DO UPDATE").
		Set("author_id = EXCLUDED.author_id").
		Set("base_value = EXCLUDED.base_value").
		Set("state = EXCLUDED.state").
		Set("consensus_value = NULL").
		Set("finalized_at = NULL").
		Set("created_at = EXCLUDED.created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Where("p.state = ?", string(playtestdomain.StateRejected)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create playtest: %w", err)
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

// GetSession retrieves a session by map code.
func (r *Impl) GetSession(ctx context.Context, db bun.IDB, mapCode string) (*Playtest, error) {
	db = r.resolveDB(db)
	p := new(Playtest)
	err := db.NewSelect().Model(p).Where("map_code = ?", mapCode).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get playtest: %w", err)
	}
	return p, nil
}

// UpsertVote inserts or replaces the vote in one statement guarded by the
// session state. The share lock makes a concurrent finalize claim wait for
// the vote, or the vote re-check the state after the claim commits.
func (r *Impl) UpsertVote(ctx context.Context, db bun.IDB, v *PlaytestVote) error {
	db = r.resolveDB(db)
	v.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO playtest_votes (map_code, voter_id, value, updated_at)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (
			SELECT 1 FROM playtests WHERE map_code = ? AND state = ? FOR SHARE
		)
		ON CONFLICT (map_code, voter_id) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		v.MapCode, v.VoterID, v.Value, v.UpdatedAt,
		v.MapCode, string(playtestdomain.StateOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotOpen
	}
	return nil
}

// ListVotes returns the session's votes ordered by voter.
func (r *Impl) ListVotes(ctx context.Context, db bun.IDB, mapCode string) ([]playtestdomain.Vote, error) {
	db = r.resolveDB(db)
	var rows []PlaytestVote
	err := db.NewSelect().
		Model(&rows).
		Where("map_code = ?", mapCode).
		Order("voter_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	out := make([]playtestdomain.Vote, len(rows))
	for i, row := range rows {
		out[i] = playtestdomain.Vote{VoterID: row.VoterID, Value: row.Value}
	}
	return out, nil
}

// CountCompleters counts distinct non-author submitters on the map.
func (r *Impl) CountCompleters(ctx context.Context, db bun.IDB, mapCode, authorID string) (int, error) {
	db = r.resolveDB(db)
	var n int
	err := db.NewSelect().
		TableExpr("completions").
		ColumnExpr("COUNT(DISTINCT user_id)").
		Where("map_code = ?", mapCode).
		Where("user_id <> ?", authorID).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completers: %w", err)
	}
	return n, nil
}

// ClaimFinalize is the single conditional update that decides the finalize winner.
func (r *Impl) ClaimFinalize(ctx context.Context, db bun.IDB, mapCode string) (bool, error) {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Playtest)(nil)).
		Set("state = ?", string(playtestdomain.StateAwaitingFinalize)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("map_code = ?", mapCode).
		Where("state = ?", string(playtestdomain.StateOpen)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim finalize: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// CompleteSession writes the terminal state and the consensus it was decided on.
func (r *Impl) CompleteSession(ctx context.Context, db bun.IDB, mapCode string, state playtestdomain.State, consensus float64) error {
	if !playtestdomain.StateAwaitingFinalize.CanTransition(state) {
		return fmt.Errorf("invalid terminal state %q", state)
	}
	db = r.resolveDB(db)
	now := time.Now().UTC()
	res, err := db.NewUpdate().
		Model((*Playtest)(nil)).
		Set("state = ?", string(state)).
		Set("consensus_value = ?", consensus).
		Set("finalized_at = ?", now).
		Set("updated_at = ?", now).
		Where("map_code = ?", mapCode).
		Where("state = ?", string(playtestdomain.StateAwaitingFinalize)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete playtest: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVotes drops every vote on the map.
func (r *Impl) DeleteVotes(ctx context.Context, db bun.IDB, mapCode string) error {
	db = r.resolveDB(db)
	if _, err := db.NewDelete().Model((*PlaytestVote)(nil)).Where("map_code = ?", mapCode).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	return nil
}
