package rankmigrations

import (
	"context"
	"fmt"

	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating completions table...")
		_, err := db.NewCreateTable().
			Model((*rankdb.Completion)(nil)).
			IfNotExists().
			ForeignKey(`(map_code) REFERENCES maps (code) ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create completions table: %w", err)
		}
		for _, stmt := range []string{
			`CREATE INDEX IF NOT EXISTS idx_completions_user ON completions (user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_completions_map ON completions (map_code)`,
		} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create completions index: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping completions table...")
		if _, err := db.NewDropTable().Model((*rankdb.Completion)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop completions table: %w", err)
		}
		return nil
	})
}
