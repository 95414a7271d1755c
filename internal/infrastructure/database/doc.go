// Package database provides SQLite connectivity for robotlink's durable
// action queue.
//
// This package manages:
//   - Database connection with WAL mode so the status API can read while
//     the session enqueues
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Transaction helper and health check
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Each schema change ships as YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Applied versions are recorded in schema_migrations.
package database
