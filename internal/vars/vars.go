// Package vars holds build metadata injected with -ldflags "-X".
package vars

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Name of the project, used in version output and the HTTP User-Agent.
const Name = "Pulsar"

// URL of the project repository.
const URL = "https://github.com/woozymasta/pulsar"

// Set by the linker.
var (
	Version = "dev"
	Commit  = "unknown"

	_revision  string
	_buildTime string
)

// BuildInfo is the payload of GET /api/version.
type BuildInfo struct {
	BuildTime time.Time `json:"build_time,omitzero"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	Revision  int       `json:"revision,omitempty"`
}

// Info collects the linker-provided values. Unparseable revision or build time are left empty.
func Info() BuildInfo {
	info := BuildInfo{Name: Name, Version: Version, Commit: Commit}

	if n, err := strconv.Atoi(_revision); err == nil {
		info.Revision = n
	}
	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		info.BuildTime = t.UTC()
	}

	return info
}

// Print writes the --version output to stdout.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the --version output to w.
func Fprint(w io.Writer) {
	info := Info()
	_, _ = fmt.Fprintf(w, "%s %s (commit %s, revision %d, built %s)\n%s\n",
		info.Name, info.Version, info.Commit, info.Revision, info.BuildTime.Format(time.RFC3339), URL)
}

// UserAgent returns the User-Agent sent on outgoing HTTP requests, e.g. "Pulsar/v1.2.3 (+https://...)".
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}
