// Package database provides SQLite connectivity for the display inventory.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from an fs.FS (normally the embedded
//     migrations package)
//   - Connection lifecycle
//
// All queries use parameterised statements. The database file is
// restricted to 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be nullable or carry a
// default, and each .up.sql has a matching .down.sql.
package database
