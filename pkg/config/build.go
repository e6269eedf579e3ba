package config

import (
	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/fsinfo"
	"github.com/buildcache/cachecore/pkg/logging"
	"github.com/buildcache/cachecore/pkg/pack"
)

// NewStrategy builds a ready-to-use PackFileCacheStrategy from a loaded
// configuration, wiring CacheLocation, Version, Algorithm, and ManagedPaths
// through to the underlying FileSystemInfo and Pack.
func (c *Configuration) NewStrategy(fs filesystem.InputFileSystem, resolver fsinfo.Resolver, logger *logging.Logger) *pack.PackFileCacheStrategy {
	info := fsinfo.New(fs, resolver, c.Algorithm(), logger, fsinfo.WithManagedPaths(c.ManagedPaths...))
	return pack.NewPackFileCacheStrategy(c.CacheLocation, c.Version, info, logger)
}
