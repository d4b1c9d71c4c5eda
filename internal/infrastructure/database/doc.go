// Package database opens the SQLite file that stores device entries.
//
// It covers:
//   - Opening the file with WAL mode and a busy timeout
//   - Versioned, embedded schema migrations (see the migrations package)
//   - Health checks for the API
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each is applied in its own transaction and
// recorded in schema_migrations.
package database
