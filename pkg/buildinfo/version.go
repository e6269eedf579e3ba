package buildinfo

import "fmt"

const (
	// VersionMajor represents the current major version of the cache core.
	VersionMajor = 1
	// VersionMinor represents the current minor version of the cache core.
	VersionMinor = 0
	// VersionPatch represents the current patch version of the cache core.
	VersionPatch = 0
)

// Version is the human-readable version string. It also serves as the
// default Pack version tag, so packs produced by an incompatible build are
// discarded on restore instead of being misinterpreted.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}
