// Package version holds build metadata for the helpdesk binary, injected with
// -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/helpdesk-rag/internal/version.Version=v0.4.0 \
//	                    -X github.com/54b3r/helpdesk-rag/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/helpdesk-rag/internal/version.BuildDate=2026-01-01" ./cmd/helpdesk
package version

import "fmt"

// Version is the semantic version. "dev" for local builds.
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date (RFC3339).
var BuildDate = "unknown"

// String formats the build metadata for the version command and the
// /api/health response.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
