package mapdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Map is a submitted map. Official is false while the map is in playtest.
type Map struct {
	bun.BaseModel `bun:"table:maps,alias:m"`

	Code       string    `bun:"code,pk" json:"code"`
	Name       string    `bun:"name,notnull,default:''" json:"name"`
	AuthorID   string    `bun:"author_id,notnull" json:"author_id"`
	Difficulty float64   `bun:"difficulty,notnull" json:"difficulty"`
	Official   bool      `bun:"official,notnull,default:false" json:"official"`
	Archived   bool      `bun:"archived,notnull,default:false" json:"archived"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Rating is one member's permanent difficulty rating of an official map.
type Rating struct {
	bun.BaseModel `bun:"table:map_ratings,alias:mr"`

	MapCode   string    `bun:"map_code,pk" json:"map_code"`
	UserID    string    `bun:"user_id,pk" json:"user_id"`
	Value     float64   `bun:"value,notnull" json:"value"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
