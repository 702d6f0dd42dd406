package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/probekit/internal/infrastructure/config"
	"github.com/nerrad567/probekit/internal/infrastructure/database"
	"github.com/nerrad567/probekit/migrations"
)

// runMigrate manages the archive schema at the configured archive path.
// The action is status (default), up or down; down rolls back the latest
// migration. The migration state is printed afterwards.
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := "status"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	if action != "status" && action != "up" && action != "down" {
		return fmt.Errorf("migrate: unknown action %q (want status, up or down)", action)
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Archive.Path,
		WALMode:     cfg.Archive.WALMode,
		BusyTimeout: cfg.Archive.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening archive database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	switch action {
	case "up":
		err = db.Migrate(ctx, migrations.FS, ".")
	case "down":
		err = db.MigrateDown(ctx, migrations.FS, ".")
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS, ".")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d applied, %d pending\n", db.Path(), len(applied), len(pending))
	for _, m := range applied {
		fmt.Fprintf(out, "  applied  %s\n", m.Version)
	}
	for _, m := range pending {
		fmt.Fprintf(out, "  pending  %s %s\n", m.Version, m.Name)
	}
	return nil
}
