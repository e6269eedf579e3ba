package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildcache/cachecore/pkg/hashing"
)

const testConfigurationValid = `
version: build-7
cacheLocation: /var/cache/example/main
hashAlgorithm: sha256
maxEntryAge: 72h
managedPaths:
  - /home/user/.cache/example/packages
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTempConfig(t, testConfigurationValid)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "build-7" {
		t.Errorf("Version = %q", cfg.Version)
	}
	if cfg.CacheLocation != "/var/cache/example/main" {
		t.Errorf("CacheLocation = %q", cfg.CacheLocation)
	}
	if cfg.Algorithm() != hashing.AlgorithmSHA256 {
		t.Errorf("Algorithm() = %v, want SHA256", cfg.Algorithm())
	}
	if got, want := cfg.MaxAge(), 72*time.Hour; got != want {
		t.Errorf("MaxAge() = %v, want %v", got, want)
	}
	if len(cfg.ManagedPaths) != 1 || cfg.ManagedPaths[0] != "/home/user/.cache/example/packages" {
		t.Errorf("ManagedPaths = %v", cfg.ManagedPaths)
	}
}

func TestLoadMissingFieldsUseDefaults(t *testing.T) {
	path := writeTempConfig(t, "version: build-7\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Algorithm() != hashing.AlgorithmXXH64 {
		t.Errorf("Algorithm() = %v, want default XXH64", cfg.Algorithm())
	}
	if got, want := cfg.MaxAge(), defaultMaxEntryAge; got != want {
		t.Errorf("MaxAge() = %v, want default %v", got, want)
	}
}

func TestLoadUnknownFieldIsError(t *testing.T) {
	path := writeTempConfig(t, "version: build-7\nbogusField: true\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected strict decoding to reject an unknown field")
	}
}

func TestLoadNonExistentIsError(t *testing.T) {
	if _, err := Load("/this/does/not/exist.yml"); err == nil {
		t.Fatalf("expected an error loading a non-existent configuration file")
	}
}

func TestLoadMalformedIsError(t *testing.T) {
	path := writeTempConfig(t, "version: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error loading a malformed configuration file")
	}
}

func TestLoadNormalizesRelativePaths(t *testing.T) {
	path := writeTempConfig(t, "version: build-7\ncacheLocation: relative/cache\nmanagedPaths:\n  - relative/packages\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantCache, err := filepath.Abs("relative/cache")
	if err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}
	if cfg.CacheLocation != wantCache {
		t.Errorf("CacheLocation = %q, want %q", cfg.CacheLocation, wantCache)
	}

	wantManaged, err := filepath.Abs("relative/packages")
	if err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}
	if len(cfg.ManagedPaths) != 1 || cfg.ManagedPaths[0] != wantManaged {
		t.Errorf("ManagedPaths = %v, want [%q]", cfg.ManagedPaths, wantManaged)
	}
}
