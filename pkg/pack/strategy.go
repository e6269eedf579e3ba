package pack

import (
	"bytes"
	gocontext "context"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/buildcache/cachecore/pkg/filesystem"
	"github.com/buildcache/cachecore/pkg/fsinfo"
	"github.com/buildcache/cachecore/pkg/logging"
	"github.com/buildcache/cachecore/pkg/state"
)

// defaultMaxAge is how long an entry may go unaccessed before
// CollectGarbage drops it during AfterAllStored.
const defaultMaxAge = 2 * 24 * time.Hour

// filePermissions is the mode used for the pack file written by
// WriteFileAtomic.
const filePermissions = 0o644

// autoFlushWindow is the coalescing window applied to automatic rewrites:
// a burst of Store calls (e.g. many cache misses compiled in a row) only
// triggers one disk write, issued this long after the burst quiets down.
const autoFlushWindow = 2 * time.Second

// PackFileCacheStrategy pairs a Pack with a single on-disk location and a
// FileSystemInfo used to validate and extend its embedded build-dependency
// snapshot. It loads its pack file synchronously on construction and only rewrites
// it when AfterAllStored finds the in-memory pack dirty. A background
// coalescer also rewrites the file automatically a short, quiet period
// after the last Store, so long-running watch-mode callers that never
// explicitly invoke AfterAllStored still persist periodically; changes
// is a state tracker callers can poll to learn when such a rewrite lands.
type PackFileCacheStrategy struct {
	location string
	version  string
	logger   *logging.Logger
	info     *fsinfo.FileSystemInfo

	pack *Pack

	flush     *state.Coalescer
	changes   *state.Tracker
	cancel    gocontext.CancelFunc
	flushDone chan struct{}
}

// NewPackFileCacheStrategy opens (or initializes) the pack file at
// location+".pack". A missing file, a version mismatch, or a build
// snapshot that no longer checks out are all treated the same way: start
// from an empty pack rather than failing the build.
func NewPackFileCacheStrategy(location, version string, info *fsinfo.FileSystemInfo, logger *logging.Logger) *PackFileCacheStrategy {
	ctx, cancel := gocontext.WithCancel(gocontext.Background())
	s := &PackFileCacheStrategy{
		location:  location,
		version:   version,
		logger:    logger,
		info:      info,
		flush:     state.NewCoalescer(autoFlushWindow),
		changes:   state.NewTracker(),
		cancel:    cancel,
		flushDone: make(chan struct{}),
	}
	s.pack = s.load()
	go s.runAutoFlush(ctx)
	return s
}

// runAutoFlush rewrites the pack file each time the coalescer settles after
// a burst of stores, until ctx is cancelled by Close.
func (s *PackFileCacheStrategy) runAutoFlush(ctx gocontext.Context) {
	defer close(s.flushDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.flush.Events():
			if err := s.AfterAllStored(); err != nil {
				s.logger.Warnf("pack: automatic flush failed: %v", err)
				continue
			}
			s.changes.NotifyOfChange()
		}
	}
}

// WaitForChange blocks until the background auto-flush loop has completed a
// flush since previousIndex, returning the new index. Direct calls to
// AfterAllStored do not advance the index. Pass 0 to read the current index
// without waiting.
func (s *PackFileCacheStrategy) WaitForChange(ctx gocontext.Context, previousIndex uint64) (uint64, error) {
	return s.changes.WaitForChange(ctx, previousIndex)
}

// Close stops the background auto-flush goroutine. It does not perform a
// final flush; callers that need a guaranteed rewrite should call
// AfterAllStored themselves before closing.
func (s *PackFileCacheStrategy) Close() {
	s.cancel()
	<-s.flushDone
	s.flush.Terminate()
	s.changes.Terminate()
}

func (s *PackFileCacheStrategy) packPath() string {
	return s.location + ".pack"
}

func (s *PackFileCacheStrategy) load() *Pack {
	data, err := os.ReadFile(s.packPath())
	if err != nil {
		if !filesystem.IsNotExist(err) {
			s.logger.Warnf("pack: unable to read cache file, starting fresh: %v", err)
		}
		return New(s.version, s.logger)
	}

	p, err := Deserialize(bytes.NewReader(data), s.version, s.logger)
	if err != nil {
		s.logger.Warnf("pack: cache file is corrupt, starting fresh: %v", err)
		return New(s.version, s.logger)
	}
	if p == nil {
		s.logger.Debugf("pack: cache file version changed, starting fresh")
		return New(s.version, s.logger)
	}

	if snap := p.BuildSnapshot(); snap != nil {
		if !s.info.CheckSnapshotValid(snap) {
			s.logger.Debugf("pack: build dependency snapshot is stale, starting fresh")
			return New(s.version, s.logger)
		}
	}

	return p
}

// Restore returns the cached data for id if etag matches what was stored.
func (s *PackFileCacheStrategy) Restore(id, etag string) ([]byte, bool) {
	return s.pack.Get(id, etag)
}

// Store records data under id with the given etag.
func (s *PackFileCacheStrategy) Store(id, etag string, data []byte) {
	s.pack.Set(id, etag, data)
	s.flush.Strobe()
}

// StoreBuildDependencies resolves requests to concrete files and directories
// relative to buildContext, snapshots them with hashing enabled, and merges
// the result into the pack's build-dependency snapshot.
func (s *PackFileCacheStrategy) StoreBuildDependencies(buildContext string, requests []string) error {
	deps, err := s.info.ResolveBuildDependencies(buildContext, requests)
	if err != nil {
		return err
	}

	snap, err := s.info.CreateSnapshot(
		time.Now().UnixMilli(),
		deps.Files,
		deps.Directories,
		deps.Missing,
		fsinfo.SnapshotOptions{Hash: true},
	)
	if err != nil {
		return err
	}

	s.pack.SetBuildSnapshot(snap)
	s.flush.Strobe()
	return nil
}

// AfterAllStored rewrites the pack file if it is dirty, collecting garbage
// first so the rewritten file doesn't carry forward entries nobody has
// touched in defaultMaxAge.
func (s *PackFileCacheStrategy) AfterAllStored() error {
	if !s.pack.Invalid() {
		return nil
	}

	s.logger.Time("pack: collect garbage")
	s.pack.CollectGarbage(defaultMaxAge)
	s.logger.TimeEnd("pack: collect garbage")

	var buf bytes.Buffer
	s.logger.Time("pack: serialize")
	err := s.pack.Serialize(&buf)
	s.logger.TimeEnd("pack: serialize")
	if err != nil {
		return err
	}

	s.logger.Debugf("pack: writing %s to %s", humanize.Bytes(uint64(buf.Len())), s.packPath())
	s.logger.Time("pack: write file")
	err = filesystem.WriteFileAtomic(s.packPath(), buf.Bytes(), filePermissions, s.logger)
	s.logger.TimeEnd("pack: write file")
	return err
}
