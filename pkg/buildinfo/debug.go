package buildinfo

import "os"

// DebugEnabled controls whether or not verbose debug logging is enabled. It
// is set automatically based on the CACHECORE_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("CACHECORE_DEBUG") == "1"
}
