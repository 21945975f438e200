// Package version reports build provenance for boardcmp.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/MeKo-Tech/boardcmp/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date. When the binary was
// built without ldflags, the commit and date come from the VCS stamp the
// Go toolchain embeds.
func Info() (ver, commit, date string) {
	ver, commit, date = Version, GitCommit, BuildDate
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ver, commit, date
	}
	if ver == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		ver = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && s.Value != "" {
				commit = s.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				date = s.Value
			}
		}
	}
	return ver, commit, date
}

// String formats Info on one line.
func String() string {
	ver, commit, date := Info()
	return fmt.Sprintf("%s (commit: %s, built: %s)", ver, commit, date)
}
