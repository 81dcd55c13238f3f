package userdb

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a member's persisted standing and notification preferences.
// The progression columns mirror the last reconcile and serve fast lookups;
// they are never used as input to a new reconcile.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID             string    `bun:"user_id,pk" json:"user_id"`
	RankCount          int       `bun:"rank_count,notnull,default:0" json:"rank_count"`
	GoldPlus           int       `bun:"gold_plus,notnull,default:0" json:"gold_plus"`
	SilverPlus         int       `bun:"silver_plus,notnull,default:0" json:"silver_plus"`
	BronzePlus         int       `bun:"bronze_plus,notnull,default:0" json:"bronze_plus"`
	NotificationOptOut int64     `bun:"notification_opt_out,notnull,default:0" json:"notification_opt_out"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Standing is the progression snapshot written after each reconcile.
type Standing struct {
	RankCount  int `json:"rank_count"`
	GoldPlus   int `json:"gold_plus"`
	SilverPlus int `json:"silver_plus"`
	BronzePlus int `json:"bronze_plus"`
}
