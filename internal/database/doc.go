// Package database provides the PostgreSQL connection pool and schema used by
// the postgres snapshot backend.
//
// Tables:
//   - odds_snapshots: one row per stored snapshot, dedup_key primary key
//   - odds_fixture_meta: one row per (league, fixture) partition
package database
