// Package config loads the on-disk configuration for a build cache: where
// its pack files live, which hashing algorithm to use for content digests,
// how long unused entries survive, and which directories are managed
// package roots to be folded during snapshotting. CacheLocation and
// ManagedPaths are normalized (tilde-expanded and made absolute) on load, so
// callers downstream never need to handle user-supplied relative paths or
// home-directory shorthand themselves.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/hashing"
)

// Configuration is the decoded form of a cache configuration file.
type Configuration struct {
	// Version identifies the producer of cached artifacts. A change here
	// invalidates every existing pack file outright.
	Version string `yaml:"version"`
	// CacheLocation is the path prefix passed to
	// pack.NewPackFileCacheStrategy (".pack" is appended automatically).
	CacheLocation string `yaml:"cacheLocation"`
	// HashAlgorithm selects the digest algorithm used for content hashing.
	// It decodes via hashing.Algorithm's own UnmarshalText, so the YAML
	// value is one of "sha1", "sha256", or "xxh64"; omitted selects the
	// default.
	HashAlgorithm hashing.Algorithm `yaml:"hashAlgorithm"`
	// MaxEntryAge is how long a pack entry may go unaccessed before garbage
	// collection drops it, expressed as a Go duration string (e.g. "48h")
	// and parsed by MaxAge. NewStrategy does not pass it on: the strategy's
	// AfterAllStored always collects garbage with a fixed two-day age.
	MaxEntryAge string `yaml:"maxEntryAge"`
	// ManagedPaths are package-cache directories (e.g. a package manager's
	// global module store) whose contents should be folded to a single
	// name@version identity during snapshotting rather than walked file by
	// file.
	ManagedPaths []string `yaml:"managedPaths"`
}

// defaultMaxEntryAge is used when MaxEntryAge is empty.
const defaultMaxEntryAge = 48 * time.Hour

// Load reads and strictly decodes a YAML configuration file. Strict
// decoding means an unrecognized field is an error rather than silently
// ignored, since a typo'd key here would otherwise produce a cache that
// behaves as if unconfigured.
func Load(path string) (*Configuration, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open configuration file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var cfg Configuration
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file: %w", err)
	}

	if cfg.CacheLocation != "" {
		normalized, err := filesystem.Normalize(cfg.CacheLocation)
		if err != nil {
			return nil, fmt.Errorf("unable to normalize cache location: %w", err)
		}
		cfg.CacheLocation = normalized
	}
	for i, managedPath := range cfg.ManagedPaths {
		normalized, err := filesystem.Normalize(managedPath)
		if err != nil {
			return nil, fmt.Errorf("unable to normalize managed path %q: %w", managedPath, err)
		}
		cfg.ManagedPaths[i] = normalized
	}

	return &cfg, nil
}

// Algorithm resolves HashAlgorithm to a concrete choice, returning
// hashing.AlgorithmXXH64 if the configuration left it at the default.
func (c *Configuration) Algorithm() hashing.Algorithm {
	if c.HashAlgorithm.IsDefault() {
		return hashing.AlgorithmXXH64
	}
	return c.HashAlgorithm
}

// MaxAge parses MaxEntryAge, falling back to defaultMaxEntryAge if it is
// empty or malformed.
func (c *Configuration) MaxAge() time.Duration {
	if c.MaxEntryAge == "" {
		return defaultMaxEntryAge
	}
	d, err := time.ParseDuration(c.MaxEntryAge)
	if err != nil {
		return defaultMaxEntryAge
	}
	return d
}
