package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrMigrationMissing is returned when an applied migration has no
	// matching file in the migration filesystem.
	ErrMigrationMissing = errors.New("database: migration not found in filesystem")

	// ErrNoDownMigration is returned when rolling back a migration that
	// ships without a .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
