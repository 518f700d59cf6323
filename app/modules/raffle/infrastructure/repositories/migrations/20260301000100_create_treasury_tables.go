package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating treasury tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS account_balances (
					account VARCHAR(128) PRIMARY KEY,
					balance NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create account_balances table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_payouts (
					reference VARCHAR(128) PRIMARY KEY,
					recipient VARCHAR(128) NOT NULL,
					amount NUMERIC(78,0) NOT NULL,
					paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_payouts table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping treasury tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS raffle_payouts;
				DROP TABLE IF EXISTS account_balances;
			`); err != nil {
				return fmt.Errorf("failed to drop treasury tables: %w", err)
			}
			return nil
		})
	})
}
