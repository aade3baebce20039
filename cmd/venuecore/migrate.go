package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/venue-core/internal/infrastructure/config"
	"github.com/nerrad567/venue-core/internal/infrastructure/database"
)

// runMigrate handles "venuecore migrate [status|up|down]" against the
// configured sqlite database. Postgres and PostgREST schemas are managed
// by Supabase migrations, so other drivers are refused.
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}
	if len(args) > 1 {
		return fmt.Errorf("migrate: unexpected arguments %v", args[1:])
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Store.Driver != config.DriverSQLite {
		return fmt.Errorf("migrate: store driver %q manages its own schema", cfg.Store.Driver)
	}

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	switch action {
	case "status":
		status, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		printMigrationStatus(out, status)
		return nil

	case "up":
		applied, err := db.Migrate(ctx)
		for _, m := range applied {
			fmt.Fprintf(out, "applied %s %s\n", m.Version, m.Name)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "schema is up to date")
		}
		return nil

	case "down":
		m, err := db.Rollback(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "rolled back %s %s\n", m.Version, m.Name)
		return nil

	default:
		return fmt.Errorf("migrate: unknown action %q (want status, up or down)", action)
	}
}

func printMigrationStatus(out io.Writer, status database.MigrationStatus) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT")
	for _, r := range status.Applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
	}
	_ = tw.Flush()
}
