// Package model defines shared data types used across the odds-history pipeline.
//
// Conventions:
//   - Prices: decimal odds as float64 (e.g. 1.85)
//   - Kickoff: int64 seconds since Unix epoch (UTC), as published by the fixture registry
//   - Capture times: time.Time truncated to the second, always UTC
//   - Selections: upper-cased outcome name, suffixed with "_<point>" for line markets
package model
