//go:build integration

package testutils

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	rafflemigrations "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories/migrations"
)

// raffleTables are truncated between tests.
var raffleTables = []string{"raffle_rounds", "raffle_entries", "raffle_winners", "raffle_payouts", "account_balances"}

// runMigrations applies the River schema and the raffle migrations.
func runMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	if err := runRiverMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}

	migrator := migrate.NewMigrator(db, rafflemigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run raffle migrations: %w", err)
	}
	if group.ID == 0 {
		log.Println("No raffle migrations to run")
	} else {
		log.Printf("Ran raffle migrations group #%d", group.ID)
	}
	return nil
}

func runRiverMigrations(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return err
	}
	return nil
}

// CleanupDatabase truncates the raffle tables and the River job table.
func CleanupDatabase(ctx context.Context, db *bun.DB) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(raffleTables, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		return fmt.Errorf("failed to cleanup river jobs: %w", err)
	}
	return nil
}
