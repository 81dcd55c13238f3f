package mapmigrations

import (
	"context"
	"fmt"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating maps tables...")
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewCreateTable().Model((*mapdb.Map)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create maps table: %w", err)
			}
			_, err := tx.NewCreateTable().
				Model((*mapdb.Rating)(nil)).
				IfNotExists().
				ForeignKey(`(map_code) REFERENCES maps (code) ON DELETE CASCADE`).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create map_ratings table: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_maps_official ON maps (official) WHERE archived = FALSE`); err != nil {
				return fmt.Errorf("failed to create maps index: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping maps tables...")
		if _, err := db.NewDropTable().Model((*mapdb.Rating)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop map_ratings table: %w", err)
		}
		if _, err := db.NewDropTable().Model((*mapdb.Map)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop maps table: %w", err)
		}
		return nil
	})
}
