// Package version carries the binary's build identity, stamped at link
// time via -ldflags.
package version

import "fmt"

var (
	// Version is the release tag, or "dev" for untagged builds.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = ""
)

// String renders the version for --version output.
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
