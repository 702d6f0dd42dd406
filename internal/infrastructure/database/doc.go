// Package database provides the SQLite connection used by the message
// archive.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Schema migrations read from any fs.FS (the binary embeds them)
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Archive.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have a
// DEFAULT, and every .up.sql should ship with a .down.sql.
package database
