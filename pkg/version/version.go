// Package version holds build metadata for the hllsim binary.
package version

import (
	"fmt"
	"runtime/debug"
)

const (
	unsetVersion = "dev"
	unsetCommit  = "none"
	unsetDate    = "unknown"
	develVersion = "(devel)"
)

// Set via -ldflags "-X github.com/Sumatoshi-tech/hllsim/pkg/version.Version=...".
var (
	Version = unsetVersion
	Commit  = unsetCommit
	Date    = unsetDate
)

// InitBinaryVersion fills values not injected at link time from the module
// and VCS build info embedded by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == unsetVersion && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unsetCommit {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unsetDate {
				Date = setting.Value
			}
		}
	}
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("hllsim %s (commit: %s, built: %s)", Version, Commit, Date)
}
