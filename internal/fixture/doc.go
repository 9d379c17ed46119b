// Package fixture reads the fixture registry.
//
// The registry is a read-only file tree maintained by an external job:
//
//	<dir>/league=<L>/date=<YYYY-MM-DD>.json
//
// Each file holds a JSON array of fixture records. Load returns the fixtures
// eligible for a run; Validate produces a report of registry problems.
package fixture
