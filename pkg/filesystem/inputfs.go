package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Info is the subset of os.FileInfo that callers of InputFileSystem need.
// It mirrors the "stat" result contract described for the InputFileSystem
// collaborator: a modification time plus regular-file/directory
// classification.
type Info interface {
	ModTime() int64 // Unix milliseconds
	IsFile() bool
	IsDirectory() bool
}

type statInfo struct {
	modTime int64
	mode    fs.FileMode
}

func (s statInfo) ModTime() int64    { return s.modTime }
func (s statInfo) IsFile() bool      { return s.mode.IsRegular() }
func (s statInfo) IsDirectory() bool { return s.mode.IsDir() }

// notExister is implemented by InputFileSystem implementations (real or
// faked in tests) whose errors don't satisfy os.IsNotExist directly.
type notExister interface {
	IsNotExist() bool
}

// IsNotExist reports whether err indicates a missing path (ENOENT), the only
// error this package's callers must distinguish from other I/O failures.
func IsNotExist(err error) bool {
	if ne, ok := err.(notExister); ok {
		return ne.IsNotExist()
	}
	return os.IsNotExist(err)
}

// InputFileSystem is the read-only filesystem contract that this package
// consumes. It is intentionally narrow: stat, full-file reads, directory
// listing, and canonicalization, each returning an error exposing ENOENT via
// os.IsNotExist so that callers can distinguish "missing" from other I/O
// failures.
type InputFileSystem interface {
	Stat(path string) (Info, error)
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]string, error)
	Realpath(path string) (string, error)
}

// OS is the default InputFileSystem, backed directly by the os package. It
// performs no symbolic-link-avoidance dance (the race-free directory
// descriptor tricks a live file-synchronization filesystem layer needs are
// unnecessary here, since this package only ever consumes a filesystem for
// point-in-time fact gathering, never for content staging).
var OS InputFileSystem = osFileSystem{}

type osFileSystem struct{}

func (osFileSystem) Stat(path string) (Info, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return statInfo{modTime: info.ModTime().UnixMilli(), mode: info.Mode()}, nil
}

func (osFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osFileSystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, nil
}

func (osFileSystem) Realpath(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
