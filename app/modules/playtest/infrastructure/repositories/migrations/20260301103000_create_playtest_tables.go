package playtestmigrations

import (
	"context"
	"fmt"

	playtestdb "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating playtest tables...")
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			// No foreign key to maps: rejected sessions outlive their map.
			if _, err := tx.NewCreateTable().Model((*playtestdb.Playtest)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create playtests table: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `ALTER TABLE playtests ADD CONSTRAINT playtests_state_check
				CHECK (state IN ('open', 'awaiting_finalize', 'approved', 'rejected'))`); err != nil {
				return fmt.Errorf("failed to add playtests state check: %w", err)
			}
			_, err := tx.NewCreateTable().
				Model((*playtestdb.PlaytestVote)(nil)).
				IfNotExists().
				ForeignKey(`(map_code) REFERENCES playtests (map_code) ON DELETE CASCADE`).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create playtest_votes table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping playtest tables...")
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, model := range []any{(*playtestdb.PlaytestVote)(nil), (*playtestdb.Playtest)(nil)} {
				if _, err := tx.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to drop playtest tables: %w", err)
				}
			}
			return nil
		})
	})
}
