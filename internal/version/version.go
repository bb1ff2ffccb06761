// Package version exposes the tool's build metadata: the release version
// stamped via ldflags plus whatever verstamp embedded in its own ver_stub
// section.
package version

import (
	"strings"

	"github.com/launchbynttdata/launch-ver-stamp/verstub"
)

const (
	defaultVersion   = "dev"
	defaultBuildDate = "unknown"
)

var (
	// Version is the semantic version associated with this build.
	Version = defaultVersion
	// BuildDate is the UTC timestamp when the binary was built.
	BuildDate = defaultBuildDate
)

// Summary returns a human-readable description of the build metadata.
func Summary() string {
	return Version + " (built " + BuildDate + ")"
}

// Details renders Summary followed by the fields of info, one per line.
// An empty info adds nothing.
func Details(info verstub.Info) string {
	var b strings.Builder
	b.WriteString(Summary())
	fields := info.Map()
	for _, name := range info.Names() {
		b.WriteString("\n  ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(fields[name])
	}
	return b.String()
}
