// Package poller implements one collection pass over the fixture registry.
//
// A pass:
//   - Groups eligible fixtures by league and resolves their offset buckets
//   - Fetches each league's odds once, through a run-scoped LeagueCache
//   - Matches fixtures to provider events
//   - Extracts filtered prices and records them in the snapshot store
//
// Leagues are processed concurrently with bounded concurrency. A failed
// league fetch is logged and the league is skipped for the run.
package poller
