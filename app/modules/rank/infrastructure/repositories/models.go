package rankdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Completion is one submitted completion of a map. Rows are appended by the
// record verification workflow and never updated by this module.
type Completion struct {
	bun.BaseModel `bun:"table:completions,alias:c"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	MapCode     string    `bun:"map_code,notnull" json:"map_code"`
	RecordTime  float64   `bun:"record_time,notnull,default:0" json:"record_time"`
	Verified    bool      `bun:"verified,notnull,default:false" json:"verified"`
	Medal       string    `bun:"medal,notnull,default:'none'" json:"medal"`
	SubmittedAt time.Time `bun:"submitted_at,notnull,default:current_timestamp" json:"submitted_at"`
}

// completionRow is a completion joined with its map's state.
type completionRow struct {
	UserID     string  `bun:"user_id"`
	MapCode    string  `bun:"map_code"`
	Difficulty float64 `bun:"difficulty"`
	Verified   bool    `bun:"verified"`
	Official   bool    `bun:"official"`
	Archived   bool    `bun:"archived"`
	Medal      string  `bun:"medal"`
}

// PendingMapReconcile marks a map whose completers are owed a reconcile.
// The row is written in the same transaction as the change that caused the
// debt and removed once the jobs are enqueued.
type PendingMapReconcile struct {
	bun.BaseModel `bun:"table:pending_map_reconciles,alias:pmr"`

	MapCode     string    `bun:"map_code,pk" json:"map_code"`
	RequestedAt time.Time `bun:"requested_at,notnull,default:current_timestamp" json:"requested_at"`
}
