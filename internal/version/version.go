// Package version reports build information for the odds-history binaries.
//
// Set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/odds-history/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/odds-history/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/...
package version

import "log/slog"

var (
	// Version is the release version.
	Version = "dev"

	// Commit is the short git hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies the collector to the odds provider.
func UserAgent() string {
	return "odds-history/" + Version
}

// Attr groups the build fields for startup log lines.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("time", BuildTime),
	)
}
