// Package fsinfo implements FileSystemInfo: a concurrent, coalescing reader
// over a filesystem abstraction that computes and caches per-path timestamp
// and content-hash facts, takes snapshots tying such facts to a start time,
// and later revalidates those snapshots against the current filesystem.
//
// It is grounded on the scanning and caching machinery in this codebase's
// synchronization core (in particular its recursive, cache-assisted content
// digesting and its timestamp/size/digest cache entries), generalized from a
// single synchronization-root scan into the multi-root, snapshot-oriented
// shape this package's callers need.
package fsinfo

import "math"

// factKind distinguishes the three states a path's fact can be in.
type factKind uint8

const (
	// factNone is a positive record that the path did not exist at read
	// time.
	factNone factKind = iota
	// factValid means the fact carries real data (an FsEntry or a hash).
	factValid
	// factError marks a read that failed (e.g. EBUSY); it only ever appears
	// inside a Snapshot, never in the live caches, and makes any snapshot
	// containing it permanently invalid.
	factError
)

// infiniteSafeTime represents "safe at no finite time" for entries whose
// modification time is zero or otherwise untrustworthy.
const infiniteSafeTime = math.MaxInt64

// FsEntry records the timestamp facts for a single file or missing path.
type FsEntry struct {
	// SafeTime is the earliest instant at which this entry's modification
	// time can be trusted to reflect past writes: Timestamp + accuracy, or
	// infiniteSafeTime if the modification time is zero/unknown.
	SafeTime int64
	// HasTimestamp indicates whether Timestamp is meaningful. It is false
	// for directories (which carry no per-file modification time in
	// timestamp-mode snapshots) and for missing paths.
	HasTimestamp bool
	// Timestamp is the raw modification time in Unix milliseconds, valid only
	// when HasTimestamp is true.
	Timestamp int64
}

// timestampFact is the tri-state wrapper stored for a path in the timestamp
// caches and in fileTimestamps/contextTimestamps/missingTimestamps snapshot
// maps.
type timestampFact struct {
	kind  factKind
	entry FsEntry
}

var noneTimestamp = timestampFact{kind: factNone}
var errorTimestamp = timestampFact{kind: factError}

// hashFact is the tri-state wrapper stored for a path in the file-hash and
// context-hash caches and snapshot maps, and for managed-item info.
type hashFact struct {
	kind factKind
	hash string
}

var noneHash = hashFact{kind: factNone}
var errorHash = hashFact{kind: factError}
