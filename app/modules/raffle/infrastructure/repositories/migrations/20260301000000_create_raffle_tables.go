package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating raffle tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_rounds (
					number BIGINT PRIMARY KEY,
					state VARCHAR(16) NOT NULL,
					pool NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (pool >= 0),
					opened_at TIMESTAMPTZ NOT NULL,
					pending_request_id VARCHAR(128),
					requested_at TIMESTAMPTZ,
					random_words JSONB,
					recent_winner VARCHAR(128),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_rounds table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_entries (
					round_number BIGINT NOT NULL REFERENCES raffle_rounds(number),
					slot INTEGER NOT NULL,
					account VARCHAR(128) NOT NULL,
					value NUMERIC(78,0) NOT NULL CHECK (value > 0),
					entered_at TIMESTAMPTZ NOT NULL,
					PRIMARY KEY (round_number, slot)
				);
				CREATE INDEX IF NOT EXISTS idx_raffle_entries_account ON raffle_entries(account);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_entries table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_winners (
					round_number BIGINT PRIMARY KEY,
					request_id VARCHAR(128) NOT NULL UNIQUE,
					winner VARCHAR(128) NOT NULL,
					winner_index INTEGER NOT NULL,
					amount NUMERIC(78,0) NOT NULL,
					random_word NUMERIC(78,0) NOT NULL,
					players INTEGER NOT NULL,
					picked_at TIMESTAMPTZ NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_winners table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping raffle tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS raffle_winners;
				DROP TABLE IF EXISTS raffle_entries;
				DROP TABLE IF EXISTS raffle_rounds;
			`); err != nil {
				return fmt.Errorf("failed to drop raffle tables: %w", err)
			}
			return nil
		})
	})
}
