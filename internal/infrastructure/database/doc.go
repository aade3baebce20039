// Package database provides SQL connectivity for the direct store drivers.
//
// This package manages:
//   - SQLite connections with WAL mode, foreign keys and a busy timeout
//   - Postgres connections (lib/pq) for deployments that bypass PostgREST
//   - Schema migrations for the SQLite development schema
//   - Connection pooling and lifecycle management
//
// Connections are wrapped in sqlx so callers can MapScan dynamic rows and
// write queries with ? placeholders that are rebound per driver.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// each one is applied in its own transaction.
package database
