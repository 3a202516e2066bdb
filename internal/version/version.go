// Package version carries build identification injected via ldflags.
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
