package housekeeping

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/logging"
	"github.com/buildcache/cachecore/pkg/must"
)

// maximumPackAge is the maximum allowed age, by modification time, of a pack
// file before Housekeep removes it. A pack file this old has long since
// fallen outside any Pack's own CollectGarbage(maxAge) window and its build
// most likely no longer exists.
const maximumPackAge = 30 * 24 * time.Hour

// packFileSuffix matches the files PackFileCacheStrategy writes
// (location + ".pack"). The temporary files WriteFileAtomic creates while
// writing one carry no such suffix and are matched by
// filesystem.TemporaryNamePrefix instead; both are safe to prune once stale.
const packFileSuffix = ".pack"

// Housekeep removes stale pack files and abandoned atomic-write temporaries
// from cacheRoot. It is designed to run standalone (e.g. from a CLI
// maintenance command) as well as on a recurring schedule via
// HousekeepRegularly.
func Housekeep(cacheRoot string, logger *logging.Logger) {
	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, packFileSuffix) && !strings.HasPrefix(name, filesystem.TemporaryNamePrefix) {
			continue
		}

		fullPath := filepath.Join(cacheRoot, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maximumPackAge {
			logger.Debugf("housekeeping: removing %s (%s)", fullPath, humanize.Bytes(uint64(info.Size())))
			must.OSRemove(fullPath, logger)
		}
	}
}
