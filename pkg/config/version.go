// Package config provides build information for PulseBoard.
package config

import (
	"fmt"
	"runtime"
)

// Build information. Populated at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// VersionString returns the full version line printed at startup and by
// the version command.
func VersionString() string {
	return fmt.Sprintf("pulseboard %s (%s) built at %s with %s %s/%s",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
