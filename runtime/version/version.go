// Package version reports the build version of the culinary-live binary.
// Variables can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/redilah/CulinaryAI/runtime/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables - can be overridden with -ldflags
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info describes the running build.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
	Built   string
}

// Get returns the build description, falling back to module build info
// for anything not set with ldflags.
func Get() Info {
	info := Info{Version: version, Commit: gitCommit, Built: buildDate}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if gitCommit != "" {
		return info
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case vcsRevisionKey:
			info.Commit = setting.Value[:min(shortCommitLen, len(setting.Value))]
		case vcsModifiedKey:
			info.Dirty = setting.Value == "true"
		}
	}
	return info
}

// GetVersion returns the version string.
func GetVersion() string {
	return Get().Version
}

// String renders the info for the version command.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "culinary-live version %s", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", i.Commit)
		if i.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if i.Built != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", i.Built)
	}
	return b.String()
}

// Attrs returns the info as slog key/value pairs.
func (i Info) Attrs() []any {
	attrs := []any{"version", i.Version}
	if i.Commit != "" {
		attrs = append(attrs, "commit", i.Commit)
	}
	if i.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if i.Built != "" {
		attrs = append(attrs, "built", i.Built)
	}
	return attrs
}

// LogStartup logs the build at debug level.
func LogStartup() {
	logger.Debug("culinary-live starting", Get().Attrs()...)
}
