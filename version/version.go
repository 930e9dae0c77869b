// Package version holds the jscat version and the build details printed with it.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version represents a semver, jscat uses semantic versioning (http://semver.org/)
type Version struct {
	Major uint
	Minor uint
	Patch uint
}

// Current represents the current version and can be shared across packages
var Current = Version{Major: 0, Minor: 1, Patch: 0} //nolint:gochecknoglobals

// Commit can be set at build time with -ldflags "-X go.k6.io/jscat/version.Commit=..."
var Commit = "" //nolint:gochecknoglobals

// Full returns the full semantic version as a string major.minor.patch
func Full() string {
	return fmt.Sprintf("%d.%d.%d", Current.Major, Current.Minor, Current.Patch)
}

// commit returns the explicitly set commit or the one recorded by the Go toolchain.
func commit() (string, bool) {
	if Commit != "" {
		return Commit, false
	}
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	var rev string
	var dirty bool
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 10 {
				rev = rev[:10]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return rev, dirty
}

// String returns the version with the commit and the Go runtime details,
// for example "v0.1.0 (commit/abc, go1.22.2, linux/amd64)".
func String() string {
	rev, dirty := commit()
	details := ""
	if rev != "" {
		details = "commit/" + rev
		if dirty {
			details += "-dirty"
		}
		details += ", "
	}
	return fmt.Sprintf("v%s (%s%s, %s/%s)", Full(), details, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Details returns the build details as a map, for the JSON output.
func Details() map[string]string {
	details := map[string]string{
		"version":    "v" + Full(),
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
	if rev, _ := commit(); rev != "" {
		details["commit"] = rev
	}
	return details
}
