package fsinfo

import (
	"sync"
)

// Snapshot is an immutable bundle of filesystem facts taken at a given start
// time, later rechecked via CheckSnapshotValid to decide whether a cached
// artifact produced under it is still fresh.
type Snapshot struct {
	StartTime int64

	fileTimestamps    map[string]timestampFact
	fileHashes        map[string]hashFact
	contextTimestamps map[string]timestampFact
	contextHashes     map[string]hashFact
	missingTimestamps map[string]timestampFact
	managedItemInfo   map[string]hashFact
}

// SnapshotOptions configures CreateSnapshot.
type SnapshotOptions struct {
	// Hash selects hash mode (fileHashes/contextHashes) over the default
	// timestamp mode (fileTimestamps; directories recorded as ERROR in
	// contextTimestamps, since context timestamps are never read).
	Hash bool
}

// CreateSnapshot reads facts for files, directories, and missing paths as of
// startTime and bundles them into a Snapshot. Paths beneath a managed root
// are folded into a single managedItemInfo entry per item instead of being
// recorded individually.
func (i *FileSystemInfo) CreateSnapshot(startTime int64, files, directories, missing []string, options SnapshotOptions) (*Snapshot, error) {
	snap := &Snapshot{
		StartTime:         startTime,
		fileTimestamps:    map[string]timestampFact{},
		fileHashes:        map[string]hashFact{},
		contextTimestamps: map[string]timestampFact{},
		contextHashes:     map[string]hashFact{},
		missingTimestamps: map[string]timestampFact{},
		managedItemInfo:   map[string]hashFact{},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	managedItems := map[string]struct{}{}
	var plainFiles, plainDirectories []string

	for _, path := range files {
		if root, ok := i.managedRootFor(path); ok {
			managedItems[managedItemPath(root, path)] = struct{}{}
			continue
		}
		plainFiles = append(plainFiles, path)
	}
	for _, path := range directories {
		if root, ok := i.managedRootFor(path); ok {
			managedItems[managedItemPath(root, path)] = struct{}{}
			continue
		}
		plainDirectories = append(plainDirectories, path)
	}

	for _, path := range plainFiles {
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			if options.Hash {
				fact, err := i.getFileHash(path)
				if err != nil {
					fact = errorHash
				}
				mu.Lock()
				snap.fileHashes[path] = fact
				mu.Unlock()
			} else {
				fact, err := i.getFileTimestamp(path)
				if err != nil {
					fact = errorTimestamp
				}
				mu.Lock()
				snap.fileTimestamps[path] = fact
				mu.Unlock()
			}
		}()
	}

	for _, path := range plainDirectories {
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			if options.Hash {
				fact, err := i.getContextHash(path)
				if err != nil {
					fact = errorHash
				}
				mu.Lock()
				snap.contextHashes[path] = fact
				mu.Unlock()
			} else {
				// Context timestamps are never read: the directory is recorded
				// as ERROR, so any snapshot that requests one is permanently
				// invalid on check (fail-closed).
				mu.Lock()
				snap.contextTimestamps[path] = errorTimestamp
				mu.Unlock()
			}
		}()
	}

	for _, path := range missing {
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			fact, err := i.getFileTimestamp(path)
			if err != nil {
				fact = errorTimestamp
			}
			mu.Lock()
			snap.missingTimestamps[path] = fact
			mu.Unlock()
		}()
	}

	for item := range managedItems {
		item := item
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cached, ok := i.managedItems.Load(item); ok {
				mu.Lock()
				snap.managedItemInfo[item] = cached.(hashFact)
				mu.Unlock()
				return
			}
			fact, err := i.readManagedItemInfoFact(item)
			if err != nil {
				setErr(err)
				fact = errorHash
			}
			mu.Lock()
			snap.managedItemInfo[item] = fact
			mu.Unlock()
		}()
	}

	wg.Wait()
	return snap, firstErr
}

// MergeSnapshots unions two snapshots field by field; on key collision b
// wins. StartTime is the minimum of the two when both are set, and takes
// whichever side has it when only one does, preserving rather than widening
// the trust window.
func MergeSnapshots(a, b *Snapshot) *Snapshot {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	merged := &Snapshot{
		fileTimestamps:    mergeTimestampMaps(a.fileTimestamps, b.fileTimestamps),
		fileHashes:        mergeHashMaps(a.fileHashes, b.fileHashes),
		contextTimestamps: mergeTimestampMaps(a.contextTimestamps, b.contextTimestamps),
		contextHashes:     mergeHashMaps(a.contextHashes, b.contextHashes),
		missingTimestamps: mergeTimestampMaps(a.missingTimestamps, b.missingTimestamps),
		managedItemInfo:   mergeHashMaps(a.managedItemInfo, b.managedItemInfo),
	}

	switch {
	case a.StartTime == 0:
		merged.StartTime = b.StartTime
	case b.StartTime == 0:
		merged.StartTime = a.StartTime
	case a.StartTime < b.StartTime:
		merged.StartTime = a.StartTime
	default:
		merged.StartTime = b.StartTime
	}
	return merged
}

func mergeTimestampMaps(a, b map[string]timestampFact) map[string]timestampFact {
	out := make(map[string]timestampFact, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeHashMaps(a, b map[string]hashFact) map[string]hashFact {
	out := make(map[string]hashFact, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// CheckSnapshotValid reports whether every fact recorded in snap still
// holds against the current filesystem. The first failing predicate
// short-circuits the whole check.
func (i *FileSystemInfo) CheckSnapshotValid(snap *Snapshot) bool {
	if snap == nil {
		return true
	}
	if len(snap.contextTimestamps) > 0 {
		return false
	}

	for path, snapFact := range snap.fileTimestamps {
		current, err := i.getFileTimestamp(path)
		if err != nil || !checkFile(current, snapFact, snap.StartTime) {
			return false
		}
	}
	for path, snapFact := range snap.missingTimestamps {
		current, err := i.getFileTimestamp(path)
		if err != nil || !checkFile(current, snapFact, snap.StartTime) {
			return false
		}
	}
	for path, snapFact := range snap.fileHashes {
		current, err := i.getFileHash(path)
		if err != nil || !checkHash(current, snapFact) {
			return false
		}
	}
	for path, snapFact := range snap.contextHashes {
		current, err := i.getContextHash(path)
		if err != nil || !checkHash(current, snapFact) {
			return false
		}
	}
	for item, snapFact := range snap.managedItemInfo {
		var current hashFact
		var err error
		if cached, ok := i.managedItems.Load(item); ok {
			current = cached.(hashFact)
		} else {
			current, err = i.readManagedItemInfoFact(item)
		}
		if err != nil || !checkHash(current, snapFact) {
			return false
		}
	}
	return true
}

// checkFile implements the FsEntry validity predicate: invalid if the
// snapshot side is ERROR; invalid if the current safeTime overlaps the
// snapshot's startTime (a silent modification within the window is
// possible); invalid if presence/absence disagree; invalid if both exist and
// the snapshot recorded a timestamp that no longer matches.
func checkFile(current, snap timestampFact, startTime int64) bool {
	if snap.kind == factError {
		return false
	}
	if current.kind == factValid && current.entry.SafeTime > startTime {
		return false
	}
	currentNone := current.kind == factNone
	snapNone := snap.kind == factNone
	if currentNone != snapNone {
		return false
	}
	if !currentNone && !snapNone {
		if snap.entry.HasTimestamp && snap.entry.Timestamp != current.entry.Timestamp {
			return false
		}
	}
	return true
}

// checkHash implements the hash/managed-item validity predicate: invalid if
// the snapshot side is ERROR, otherwise valid iff the two facts are equal.
func checkHash(current, snap hashFact) bool {
	if snap.kind == factError {
		return false
	}
	return current.kind == snap.kind && current.hash == snap.hash
}
