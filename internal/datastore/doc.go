// Package datastore is the relational store facade used by every function.
//
// Handlers build a Query with From(...).Eq(...).OrderBy(...) and run it
// against a Store. Two implementations exist:
//
//   - SQLStore: sqlx over SQLite or Postgres (local and self-hosted deployments)
//   - PostgREST: the Supabase REST API, where row-level security applies to the
//     bearer token the store was built with
//
// Rows are plain maps so resource tables can evolve without Go changes.
package datastore
