// Package version reports build metadata stamped in with -ldflags
package version

import "fmt"

// BuildInfo holds version information about the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set via -ldflags "-X tubesense/internal/core/version.version=v0.1.0 -X ...commit=abcd -X ...date=2026-01-02"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	if service == "" {
		service = "tubesense"
	}
	return BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
}

// String renders a one line banner for logs and --version output
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", b.Service, b.Version, b.Commit, b.Date)
}
