package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Request ids are only unique per coordinator lifetime, so winners are keyed
// by round alone.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Relaxing raffle_winners.request_id uniqueness...")

		if _, err := db.ExecContext(ctx, `
			ALTER TABLE raffle_winners DROP CONSTRAINT IF EXISTS raffle_winners_request_id_key;
			CREATE INDEX IF NOT EXISTS idx_raffle_winners_request_id ON raffle_winners(request_id);
		`); err != nil {
			return fmt.Errorf("failed to relax raffle_winners.request_id: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Restoring raffle_winners.request_id uniqueness...")

		if _, err := db.ExecContext(ctx, `
			DROP INDEX IF EXISTS idx_raffle_winners_request_id;
			ALTER TABLE raffle_winners ADD CONSTRAINT raffle_winners_request_id_key UNIQUE (request_id);
		`); err != nil {
			return fmt.Errorf("failed to restore raffle_winners.request_id uniqueness: %w", err)
		}
		return nil
	})
}
