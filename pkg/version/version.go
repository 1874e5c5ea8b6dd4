// Package version reports the build identity embedded in the ganaudit
// binary: the VCS revision the Go toolchain records in the module build
// info, with a dirty-tree marker. No -ldflags stamping is required.
package version

import (
	"runtime/debug"
	"sync"
)

// AppName identifies this binary in version strings and log lines.
const AppName = "ganaudit"

var identity = sync.OnceValues(buildIdentity)

// buildIdentity extracts the short revision and dirty flag from the
// binary's build info. Non-VCS builds (go test, builds outside a
// checkout) report "dev".
func buildIdentity() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev", false
	}
	revision, dirty := "dev", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if s.Value == "" {
				continue
			}
			revision = s.Value
			if len(revision) > 8 {
				revision = revision[:8]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return revision, dirty
}

// Commit returns the short revision this binary was built from.
func Commit() string {
	revision, _ := identity()
	return revision
}

// Full returns "ganaudit/<commit>", with a "+dirty" suffix when the
// working tree carried uncommitted changes at build time.
func Full() string {
	revision, dirty := identity()
	if dirty {
		return AppName + "/" + revision + "+dirty"
	}
	return AppName + "/" + revision
}
