package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version returns the current tilepipe version
func Version() string {
	return strings.TrimSpace(versionFile)
}

// BuildID returns the version followed by the VCS revision the binary was
// built from, when the toolchain recorded one.
func BuildID() string {
	v := Version()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return v + "+" + s.Value[:7]
		}
	}
	return v
}
