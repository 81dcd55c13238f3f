package rankmigrations

import (
	"context"
	"fmt"

	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating pending_map_reconciles table...")
		_, err := db.NewCreateTable().
			Model((*rankdb.PendingMapReconcile)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create pending_map_reconciles table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping pending_map_reconciles table...")
		if _, err := db.NewDropTable().Model((*rankdb.PendingMapReconcile)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop pending_map_reconciles table: %w", err)
		}
		return nil
	})
}
