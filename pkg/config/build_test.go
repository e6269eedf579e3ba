package config

import (
	"path/filepath"
	"testing"

	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/logging"
)

type passthroughResolver struct{}

func (passthroughResolver) Resolve(context, request string) (string, error) {
	if filepath.IsAbs(request) {
		return request, nil
	}
	return filepath.Join(context, request), nil
}

func (passthroughResolver) ResolveContext(context, request string) (string, error) {
	if filepath.IsAbs(request) {
		return request, nil
	}
	return filepath.Join(context, request), nil
}

func TestNewStrategyStoresAndRestores(t *testing.T) {
	dir := t.TempDir()
	cfg := &Configuration{
		Version:       "v1",
		CacheLocation: filepath.Join(dir, "cache"),
		HashAlgorithm: 0,
	}

	logger := logging.RootLogger.Sublogger("config-test")
	strategy := cfg.NewStrategy(filesystem.OS, passthroughResolver{}, logger)
	defer strategy.Close()

	strategy.Store("module/a.js", "etag-1", []byte("compiled"))
	data, ok := strategy.Restore("module/a.js", "etag-1")
	if !ok || string(data) != "compiled" {
		t.Fatalf("Restore = %q, %v", data, ok)
	}
}
