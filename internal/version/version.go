// Package version exposes build-time version information.
// Values are overridden at link time:
//
//	go build -ldflags "-X github.com/radiorevive/console/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the semantic version of the build ("dev" for local builds).
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "unknown"
	// Date is the build date in RFC 3339 format.
	Date = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("console %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns version fields for JSON health responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
