// Package buildinfo carries version metadata stamped at link time:
//
//	go build -ldflags "-X 'github.com/m3rciful/tunerover/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/tunerover/core/buildinfo.Commit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/m3rciful/tunerover/core/buildinfo.Date=$(date -u +%FT%TZ)'"
package buildinfo

import "fmt"

var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the short VCS revision.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)

// String renders a one-line version summary for logs and /help.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
