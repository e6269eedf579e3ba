package fsinfo

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/buildcache/cachecore/pkg/accuracy"
	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/hashing"
	"github.com/buildcache/cachecore/pkg/logging"
	"github.com/buildcache/cachecore/pkg/queue"
)

// Suggested per-cache parallelism values, matching the ratios called out for
// the five read queues: stats are cheap and plentiful, hashing is heavier,
// and the two directory-shaped queues default low because directory hashing
// recurses into itself via IncreaseParallelism/DecreaseParallelism.
const (
	fileTimestampParallelism    = 30
	fileHashParallelism         = 10
	contextTimestampParallelism = 2
	contextHashParallelism      = 2
	managedItemParallelism      = 10
)

// FileSystemInfo is a concurrent, coalescing reader over an InputFileSystem
// that computes and caches per-path timestamp and content-hash facts, takes
// snapshots of such facts, and later revalidates snapshots against the
// current state of the filesystem.
//
// It is grounded on this codebase's synchronization-core scanner (in
// particular its recursive, cache-backed content digesting in scan.go and
// its tri-state cache entries in cache.go), generalized here from a single
// scan pass into independently revalidatable snapshots over arbitrary path
// sets.
type FileSystemInfo struct {
	fs        filesystem.InputFileSystem
	resolver  Resolver
	algorithm hashing.Algorithm
	logger    *logging.Logger
	accuracy  *accuracy.Estimator

	// managedRoots holds absolute directory prefixes beneath which paths are
	// folded into managed items instead of tracked per-file.
	managedRoots []string

	// moduleChildren is the optional host-loader callback used by
	// resolveBuildDependencies to enumerate a file's dependency children
	// without re-parsing it. When nil, file-dependencies falls back to
	// recording the containing directory as an over-approximation.
	moduleChildren func(path string) ([]string, bool)

	fileTimestamps sync.Map // path -> timestampFact
	fileHashes     sync.Map // path -> hashFact
	contextHashes  *hashCache
	managedItems   sync.Map // itemPath -> hashFact (deliberately not populated on successful read)

	fileTimestampQueue    *queue.AsyncQueue
	fileHashQueue         *queue.AsyncQueue
	contextTimestampQueue *queue.AsyncQueue
	contextHashQueue      *queue.AsyncQueue
	managedItemQueue      *queue.AsyncQueue
}

// Resolver is the external module-resolution collaborator that
// resolveBuildDependencies drives through resolve{,Context} requests.
type Resolver interface {
	Resolve(context, request string) (string, error)
	ResolveContext(context, request string) (string, error)
}

// Option configures a FileSystemInfo at construction.
type Option func(*FileSystemInfo)

// WithManagedPaths registers directory prefixes whose contents are folded
// into managed items rather than tracked per-file.
func WithManagedPaths(roots ...string) Option {
	return func(i *FileSystemInfo) {
		i.managedRoots = append(i.managedRoots, roots...)
	}
}

// WithModuleChildren installs the host-loader callback used during
// file-dependencies resolution.
func WithModuleChildren(fn func(path string) ([]string, bool)) Option {
	return func(i *FileSystemInfo) { i.moduleChildren = fn }
}

// WithAccuracyEstimator overrides the default accuracy estimator, primarily
// for tests that want to observe or pre-seed its state.
func WithAccuracyEstimator(e *accuracy.Estimator) Option {
	return func(i *FileSystemInfo) { i.accuracy = e }
}

// New creates a FileSystemInfo over fs, using algorithm for content hashing
// and resolver for build-dependency resolution.
func New(fs filesystem.InputFileSystem, resolver Resolver, algorithm hashing.Algorithm, logger *logging.Logger, opts ...Option) *FileSystemInfo {
	info := &FileSystemInfo{
		fs:                    fs,
		resolver:              resolver,
		algorithm:             algorithm,
		logger:                logger,
		accuracy:              accuracy.NewEstimator(),
		contextHashes:         newHashCache(contextHashCacheSize),
		fileTimestampQueue:    queue.New(fileTimestampParallelism),
		fileHashQueue:         queue.New(fileHashParallelism),
		contextTimestampQueue: queue.New(contextTimestampParallelism),
		contextHashQueue:      queue.New(contextHashParallelism),
		managedItemQueue:      queue.New(managedItemParallelism),
	}
	for _, opt := range opts {
		opt(info)
	}
	return info
}

// managedRootFor returns the managed root that path falls beneath, if any.
func (i *FileSystemInfo) managedRootFor(path string) (string, bool) {
	for _, root := range i.managedRoots {
		if path == root {
			continue
		}
		if strings.HasPrefix(path, root+"/") || strings.HasPrefix(path, root+"\\") {
			return root, true
		}
	}
	return "", false
}

// readFileTimestampFact performs the uncached stat read for path, updating
// the accuracy estimator on success, and returns the tri-state fact.
func (i *FileSystemInfo) readFileTimestampFact(path string) (timestampFact, error) {
	value, err := i.fileTimestampQueue.Add(path, func() (interface{}, error) {
		st, err := i.fs.Stat(path)
		if err != nil {
			if filesystem.IsNotExist(err) {
				return noneTimestamp, nil
			}
			return errorTimestamp, err
		}
		mtime := st.ModTime() // Unix milliseconds
		i.accuracy.Observe(mtime)
		entry := FsEntry{Timestamp: mtime}
		if mtime == 0 {
			entry.SafeTime = infiniteSafeTime
		} else {
			entry.SafeTime = mtime + i.accuracy.Milliseconds()
		}
		if st.IsFile() {
			entry.HasTimestamp = true
		}
		return timestampFact{kind: factValid, entry: entry}, nil
	})
	if err != nil {
		return errorTimestamp, err
	}
	return value.(timestampFact), nil
}

// getFileTimestamp checks the cache and falls back to a queued read,
// populating the cache on success. A cached None is a positive absence, not
// a miss.
func (i *FileSystemInfo) getFileTimestamp(path string) (timestampFact, error) {
	if cached, ok := i.fileTimestamps.Load(path); ok {
		return cached.(timestampFact), nil
	}
	fact, err := i.readFileTimestampFact(path)
	if err != nil {
		return fact, err
	}
	i.fileTimestamps.Store(path, fact)
	return fact, nil
}

// AddFileTimestamps pre-seeds the file-timestamp cache, letting callers
// short-circuit reads for paths whose facts they already know.
func (i *FileSystemInfo) AddFileTimestamps(entries map[string]FsEntry) {
	for path, entry := range entries {
		i.fileTimestamps.Store(path, timestampFact{kind: factValid, entry: entry})
	}
}

// AddContextTimestamps exists for interface symmetry with AddFileTimestamps.
// Context timestamps are never read (timestamp-mode snapshots record
// directories as ERROR), so it ignores its argument and records nothing.
func (i *FileSystemInfo) AddContextTimestamps(map[string]FsEntry) {}

// readFileHashFact performs the uncached content digest for path.
func (i *FileSystemInfo) readFileHashFact(path string) (hashFact, error) {
	value, err := i.fileHashQueue.Add(path, func() (interface{}, error) {
		data, err := i.fs.ReadFile(path)
		if err != nil {
			if filesystem.IsNotExist(err) {
				return noneHash, nil
			}
			return errorHash, err
		}
		h := i.algorithm.Factory()()
		h.Write(data)
		return hashFact{kind: factValid, hash: hex.EncodeToString(h.Sum(nil))}, nil
	})
	if err != nil {
		return errorHash, err
	}
	return value.(hashFact), nil
}

// getFileHash checks the cache and falls back to a queued read.
func (i *FileSystemInfo) getFileHash(path string) (hashFact, error) {
	if cached, ok := i.fileHashes.Load(path); ok {
		return cached.(hashFact), nil
	}
	fact, err := i.readFileHashFact(path)
	if err != nil {
		return fact, err
	}
	i.fileHashes.Store(path, fact)
	return fact, nil
}

// getContextHash checks the cache and falls back to a queued recursive
// directory digest.
func (i *FileSystemInfo) getContextHash(path string) (hashFact, error) {
	if cached, ok := i.contextHashes.Load(path); ok {
		return cached, nil
	}
	fact, err := i.readContextHashFact(path)
	if err != nil {
		return fact, err
	}
	i.contextHashes.Store(path, fact)
	return fact, nil
}
