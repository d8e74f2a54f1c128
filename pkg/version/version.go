// Package version exposes the build identity of a docsmcp binary.
package version

import (
	"fmt"
	"runtime"
)

// Release builds inject these through -ldflags -X; anything built
// straight from source reports the defaults.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GoVersion is the toolchain that produced the binary.
var GoVersion = runtime.Version()

// BuildInfo carries the build identity in a JSON-friendly shape.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String formats the build identity on a single line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("docsmcp %s (commit: %s, built: %s, go: %s)",
		b.Version, b.Commit, b.Date, b.GoVersion)
}

// GetInfo collects the injected values and the runtime platform.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns the one-line identity of the running binary.
func String() string {
	return GetInfo().String()
}

// Short returns just the version.
func Short() string {
	return Version
}
