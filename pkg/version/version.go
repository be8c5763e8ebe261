// Package version reports the build identity of the repopulse binary.
package version

import (
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata, set with -ldflags "-X" at release time.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the embedded VCS build
// settings when ldflags did not set them.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		}
	}
}

// String renders the version line printed by the CLI.
func String() string {
	return "repopulse " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
