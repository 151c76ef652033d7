// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	-X github.com/banshee-data/blebridge/internal/version.Version=v1.2.0
package version

import "fmt"

// Stamped at build time; the defaults identify a local build.
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and the debug page.
func String() string {
	return fmt.Sprintf("blebridge %s (%s, built %s)", Version, GitSHA, BuildTime)
}
