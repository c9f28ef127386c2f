package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/relabs-tech/telemetry_agent/internal/config"
	"github.com/relabs-tech/telemetry_agent/internal/retention"
)

// RunCleanup connects straight to the Postgres side of the Supabase project
// and runs the tiered retention pass once.
func RunCleanup(ctx context.Context, cfg *config.Config, dryRun bool, log *slog.Logger) error {
	if cfg.SupabaseDBURL == "" {
		return fmt.Errorf("SUPABASE_DB_URL is required for cleanup")
	}

	conn, err := pgx.Connect(ctx, cfg.SupabaseDBURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close(context.Background())

	cleaner := retention.New(conn, cfg.BoatID, dryRun, log)
	if _, err := cleaner.Run(ctx); err != nil {
		return err
	}
	return nil
}
