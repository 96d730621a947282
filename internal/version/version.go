// Package version exposes build-time version information. The variables are
// set via -ldflags at release build time and default to development values.
package version

import (
	"fmt"
	"runtime"
)

var (
	// VersionTag is the semantic version, set at build time.
	VersionTag = "v0.1.0-dev"
	// Commit is the git commit hash, set at build time.
	Commit = "unknown"
	// BuildTime is the build timestamp, set at build time.
	BuildTime = "unknown"
)

// Info is a snapshot of the binary's build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   VersionTag,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the version line shown by the version command.
func (i Info) String() string {
	return fmt.Sprintf("genefold %s (%s, built %s)", i.Version, i.Commit, i.BuildTime)
}
