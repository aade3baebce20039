// Package migrations embeds the SQLite schema used by the sqlite store driver.
//
// Postgres and PostgREST deployments manage their schema in Supabase; these
// files exist so a local or test instance can run against a file database.
package migrations

import (
	"embed"

	"github.com/nerrad567/venue-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
