//go:build windows

package filesystem

import "os"

// renameAtomic renames oldPath to newPath. On Windows, cross-volume renames
// are not attempted since Pack storage always lives under a single configured
// cache location.
func renameAtomic(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}
