package userdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for user persistence.
type Repository interface {
	// GetUser returns ErrNotFound when the user has never been stored.
	GetUser(ctx context.Context, db bun.IDB, userID string) (*User, error)

	// SaveStanding upserts the user's progression snapshot.
	SaveStanding(ctx context.Context, db bun.IDB, userID string, standing Standing) error

	// SetOptOut sets or clears one opt-out bit and returns the resulting mask.
	SetOptOut(ctx context.Context, db bun.IDB, userID string, flag int64, optOut bool) (int64, error)

	// GetOptOut returns the user's opt-out mask, zero for unknown users.
	GetOptOut(ctx context.Context, db bun.IDB, userID string) (int64, error)
}
