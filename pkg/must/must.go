// Package must provides helpers for invoking operations whose errors are
// non-fatal but still worth logging, avoiding the "if err := ...; err != nil"
// boilerplate for cleanup-style calls (closing files, removing temporary
// paths, releasing locks) where the caller has nothing better to do with the
// error than report it.
package must

import (
	"io"
	"os"

	"github.com/buildcache/cachecore/pkg/logging"
)

// Close closes c, logging any error as a warning.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %s", err.Error())
	}
}

// OSRemove removes the named file, logging any error as a warning.
func OSRemove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil {
		logger.Warnf("unable to remove '%s': %s", name, err.Error())
	}
}

// Remove invokes Remove(path) on r, logging any error as a warning.
func Remove(r interface{ Remove(string) error }, path string, logger *logging.Logger) {
	if err := r.Remove(path); err != nil {
		logger.Warnf("unable to remove '%s': %s", path, err.Error())
	}
}

// Unlock invokes Unlock() on locker, logging any error as a warning.
func Unlock(locker interface{ Unlock() error }, logger *logging.Logger) {
	if err := locker.Unlock(); err != nil {
		logger.Warnf("unable to unlock locker: %s", err.Error())
	}
}

// Succeed logs err, if non-nil, as a warning attributed to the named task.
func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warnf("unable to succeed at %s: %s", task, err.Error())
	}
}
