package pack

import (
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/buildcache/cachecore/pkg/fsinfo"
	"github.com/buildcache/cachecore/pkg/logging"
)

// MaxInlineSize is the serialized-byte threshold above which an entry is
// stored as a lazy loader rather than inline.
const MaxInlineSize = 20000

// lazyLoader materializes a PackEntry on demand. The pack file format is a
// single forward-only stream rather than a random-access layout, so every
// entry's bytes are already resident by the time Deserialize returns; lazy
// is reserved for a future strategy (e.g. an index plus ReaderAt-backed
// reads) that defers the disk fetch itself rather than just the migration
// bookkeeping unpack already performs.
type lazyLoader func() (*PackEntry, error)

// content is a Pack's in-memory representation of a single id's payload:
// either already-materialized inline data, or (not yet produced by this
// implementation) a lazy loader that would produce it when first requested.
type content struct {
	data []byte
	lazy lazyLoader
}

// Pack is a keyed in-memory artifact store with per-entry staleness and a
// two-tier (inline vs. lazy) on-disk representation, rewritten atomically
// when dirty. It is grounded in shape on this codebase's state-tracking
// primitives (coalescer.go / tracker.go), generalized from a single
// versioned value into a map of independently-aged entries.
type Pack struct {
	mu sync.Mutex

	version string
	logger  *logging.Logger

	etags          map[string]string
	content        map[string]content
	lastAccess     map[string]int64
	lastSizes      map[string]int64
	unserializable map[string]struct{}
	used           map[string]struct{}
	invalid        bool
	buildSnapshot  *fsinfo.Snapshot
}

// New creates an empty Pack for the given producer version.
func New(version string, logger *logging.Logger) *Pack {
	return &Pack{
		version:        version,
		logger:         logger,
		etags:          map[string]string{},
		content:        map[string]content{},
		lastAccess:     map[string]int64{},
		lastSizes:      map[string]int64{},
		unserializable: map[string]struct{}{},
		used:           map[string]struct{}{},
	}
}

// Invalid reports whether the in-memory pack differs from what is on disk.
func (p *Pack) Invalid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalid
}

// BuildSnapshot returns the pack's embedded build-dependency snapshot, or
// nil if none has been captured yet.
func (p *Pack) BuildSnapshot() *fsinfo.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buildSnapshot
}

// SetBuildSnapshot assigns or merges a newly captured build-dependency
// snapshot into the pack, matching StoreBuildDependencies' merge-or-assign
// rule: the first snapshot is assigned outright, later ones are merged in.
func (p *Pack) SetBuildSnapshot(snap *fsinfo.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buildSnapshot == nil {
		p.buildSnapshot = snap
	} else {
		p.buildSnapshot = fsinfo.MergeSnapshots(p.buildSnapshot, snap)
	}
	p.invalid = true
}

// Get returns the data for id if present and etag matches, materializing a
// lazy entry on first access. It returns (nil, false) on any miss, including
// etag mismatch.
func (p *Pack) Get(id, etag string) ([]byte, bool) {
	p.mu.Lock()
	storedEtag, ok := p.etags[id]
	if !ok || storedEtag != etag {
		p.mu.Unlock()
		return nil, false
	}
	c := p.content[id]
	p.used[id] = struct{}{}
	p.mu.Unlock()

	if c.data != nil {
		return c.data, true
	}
	if c.lazy == nil {
		return nil, false
	}

	entry, err := c.lazy()
	if err != nil {
		p.logger.Warnf("pack: failed to materialize lazy entry %s: %v", id, err)
		return nil, false
	}
	data := p.unpack(id, entry, false)
	return data, data != nil
}

// Set stores data under id with the given etag. It is a silent no-op if id
// was previously marked unserializable.
func (p *Pack) Set(id, etag string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, skip := p.unserializable[id]; skip {
		return
	}
	p.etags[id] = etag
	p.content[id] = content{data: data}
	p.used[id] = struct{}{}
	delete(p.lastSizes, id)
	p.invalid = true
}

// CollectGarbage rolls `used` into `lastAccess` at the current time, then
// drops any id whose last access exceeds maxAge.
func (p *Pack) CollectGarbage(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := currentTimeMillis()
	for id := range p.used {
		p.lastAccess[id] = now
	}
	p.used = map[string]struct{}{}

	cutoff := maxAge.Milliseconds()
	for id, last := range p.lastAccess {
		if now-last > cutoff {
			delete(p.lastAccess, id)
			delete(p.etags, id)
			delete(p.content, id)
			delete(p.lastSizes, id)
			p.invalid = true
		}
	}
}

// unpack applies the inline/lazy migration policy to a freshly read or
// freshly measured entry, updating p.content and p.invalid as needed, and
// returns the entry's data (nil if it carries none).
func (p *Pack) unpack(id string, entry *PackEntry, currentlyInline bool) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry == nil || entry.Data == nil {
		p.unserializable[id] = struct{}{}
		delete(p.lastSizes, id)
		return nil
	}

	p.lastSizes[id] = entry.Size
	switch {
	case currentlyInline && entry.Size > MaxInlineSize:
		p.invalid = true
		p.logger.Debugf("pack: entry %s migrating inline -> lazy (%s)", id, humanize.Bytes(uint64(entry.Size)))
	case !currentlyInline && entry.Size <= MaxInlineSize:
		p.invalid = true
		p.content[id] = content{data: entry.Data}
		p.logger.Debugf("pack: entry %s migrating lazy -> inline (%s)", id, humanize.Bytes(uint64(entry.Size)))
	}
	return entry.Data
}

// Serialize writes the pack's full on-disk representation: version, etags,
// unserializable, lastAccess, buildSnapshot, then a sequence of (id, entry)
// pairs terminated by an empty-id sentinel.
func (p *Pack) Serialize(w io.Writer) error {
	p.mu.Lock()
	// Roll used into lastAccess before writing, same bookkeeping
	// CollectGarbage performs, so a pack that's never been garbage collected
	// still records fresh access times on disk.
	now := currentTimeMillis()
	for id := range p.used {
		p.lastAccess[id] = now
	}
	p.used = map[string]struct{}{}

	version := p.version
	etags := cloneStringMap(p.etags)
	unserializable := cloneSet(p.unserializable)
	lastAccess := cloneInt64Map(p.lastAccess)
	buildSnapshot := p.buildSnapshot
	ids := make([]string, 0, len(p.content))
	for id := range p.content {
		ids = append(ids, id)
	}
	contents := make(map[string]content, len(ids))
	for _, id := range ids {
		contents[id] = p.content[id]
	}
	lastSizes := cloneInt64Map(p.lastSizes)
	p.mu.Unlock()

	pw := newWriter(w)
	if err := pw.writeString(version); err != nil {
		return err
	}
	if err := writeStringMap(pw, etags); err != nil {
		return err
	}
	if err := writeStringSet(pw, unserializable); err != nil {
		return err
	}
	if err := writeInt64Map(pw, lastAccess); err != nil {
		return err
	}
	if err := writeSnapshot(pw, buildSnapshot); err != nil {
		return err
	}

	for _, id := range ids {
		c := contents[id]
		if err := pw.writeString(id); err != nil {
			return err
		}
		if c.lazy != nil {
			// Already known to be oversized from a prior load; re-emit as
			// lazy without re-measuring.
			entry, err := c.lazy()
			if err != nil || entry == nil {
				if err := writeEntry(pw, nil, false); err != nil {
					return err
				}
				continue
			}
			if err := writeEntry(pw, entry, false); err != nil {
				return err
			}
			continue
		}

		size, measured := lastSizes[id]
		entry := &PackEntry{Data: c.data, Size: size}
		if err := writeEntry(pw, entry, !measured); err != nil {
			return err
		}
	}

	if err := pw.writeString(""); err != nil {
		return err
	}
	return pw.flush()
}

// Deserialize reads a pack written by Serialize. On version mismatch it
// returns (nil, nil): callers should start fresh rather than treat this as
// an error.
func Deserialize(r io.Reader, expectedVersion string, logger *logging.Logger) (*Pack, error) {
	pr := newReader(r)
	version, err := pr.readString()
	if err != nil {
		return nil, err
	}
	if version != expectedVersion {
		return nil, nil
	}

	etags, err := readStringMap(pr)
	if err != nil {
		return nil, err
	}
	unserializable, err := readStringSet(pr)
	if err != nil {
		return nil, err
	}
	lastAccess, err := readInt64Map(pr)
	if err != nil {
		return nil, err
	}
	buildSnapshot, err := readSnapshot(pr)
	if err != nil {
		return nil, err
	}

	p := New(version, logger)
	p.etags = etags
	p.unserializable = unserializable
	p.lastAccess = lastAccess
	p.buildSnapshot = buildSnapshot

	for {
		id, err := pr.readString()
		if err != nil {
			return nil, err
		}
		if id == "" {
			break
		}
		entry, inline, err := readEntry(pr)
		if err != nil {
			return nil, err
		}
		// The on-disk framing is a single forward-only stream rather than a
		// random-access file, so every entry's bytes are already in hand by
		// the time readEntry returns; there is no separate disk fetch to
		// defer. unpack still runs to apply the inline/lazy bookkeeping
		// (lastSizes, invalid-on-migration) that Serialize depends on, using
		// the tier actually recorded on disk rather than assuming inline, so
		// an entry already stored lazy doesn't get re-flagged invalid on
		// every load.
		data := p.unpack(id, entry, inline)
		if data != nil {
			p.content[id] = content{data: data}
		}
	}

	return p, nil
}

func currentTimeMillis() int64 {
	return time.Now().UnixMilli()
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneInt64Map(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
