package fsinfo

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/buildcache/cachecore/pkg/filesystem"
)

// fakeFile is either a regular file's content or a directory's listing.
type fakeFile struct {
	isDir   bool
	data    []byte
	mtimeMs int64
	entries []string
}

// fakeFS is an in-memory InputFileSystem used across this package's tests.
// It is safe for concurrent reads and for mutation between assertions (but
// not concurrent with in-flight reads).
type fakeFS struct {
	mu    sync.RWMutex
	files map[string]*fakeFile
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string]*fakeFile{}}
}

func (f *fakeFS) putFile(path string, data []byte, mtimeMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{data: data, mtimeMs: mtimeMs}
}

func (f *fakeFS) putDir(path string, entries ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{isDir: true, entries: entries}
}

type fakeInfo struct {
	isDir   bool
	mtimeMs int64
}

func (i fakeInfo) ModTime() int64    { return i.mtimeMs }
func (i fakeInfo) IsFile() bool      { return !i.isDir }
func (i fakeInfo) IsDirectory() bool { return i.isDir }

var errNotExist = errors.New("fake: no such file")

func (f *fakeFS) Stat(path string) (filesystem.Info, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.files[path]
	if !ok {
		return nil, &fakeNotExistError{path}
	}
	return fakeInfo{isDir: entry.isDir, mtimeMs: entry.mtimeMs}, nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.files[path]
	if !ok || entry.isDir {
		return nil, &fakeNotExistError{path}
	}
	return entry.data, nil
}

func (f *fakeFS) ReadDir(path string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.files[path]
	if !ok || !entry.isDir {
		return nil, &fakeNotExistError{path}
	}
	out := append([]string(nil), entry.entries...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeFS) Realpath(path string) (string, error) {
	return path, nil
}

type fakeNotExistError struct{ path string }

func (e *fakeNotExistError) Error() string { return "no such file or directory: " + e.path }
func (e *fakeNotExistError) IsNotExist() bool { return true }

// fakeResolver is a trivial Resolver that joins context and request with a
// separator, for resolve-path tests that don't exercise real module
// resolution semantics.
type fakeResolver struct{}

func (fakeResolver) Resolve(context, request string) (string, error) {
	if strings.HasPrefix(request, "/") {
		return request, nil
	}
	return joinPath(context, request), nil
}

func (fakeResolver) ResolveContext(context, request string) (string, error) {
	if strings.HasPrefix(request, "/") {
		return request, nil
	}
	return joinPath(context, request), nil
}
