package fsinfo

// TimestampRecord is the exported, serialization-friendly shape of a
// timestampFact, used to round-trip a Snapshot's timestamp maps across a
// Pack's on-disk representation without exposing the tri-state kind type
// itself.
type TimestampRecord struct {
	Kind         uint8
	SafeTime     int64
	HasTimestamp bool
	Timestamp    int64
}

// HashRecord is the exported, serialization-friendly shape of a hashFact.
type HashRecord struct {
	Kind uint8
	Hash string
}

const (
	// RecordNone, RecordValid, and RecordError mirror factNone/factValid/
	// factError for callers outside this package (namely the pack codec)
	// that need to round-trip a Snapshot's tri-state facts.
	RecordNone  uint8 = uint8(factNone)
	RecordValid uint8 = uint8(factValid)
	RecordError uint8 = uint8(factError)
)

// SnapshotData is the flattened, exported view of a Snapshot suitable for
// serialization.
type SnapshotData struct {
	StartTime         int64
	FileTimestamps    map[string]TimestampRecord
	FileHashes        map[string]HashRecord
	ContextTimestamps map[string]TimestampRecord
	ContextHashes      map[string]HashRecord
	MissingTimestamps map[string]TimestampRecord
	ManagedItemInfo   map[string]HashRecord
}

func exportTimestamps(m map[string]timestampFact) map[string]TimestampRecord {
	out := make(map[string]TimestampRecord, len(m))
	for k, v := range m {
		out[k] = TimestampRecord{
			Kind:         uint8(v.kind),
			SafeTime:     v.entry.SafeTime,
			HasTimestamp: v.entry.HasTimestamp,
			Timestamp:    v.entry.Timestamp,
		}
	}
	return out
}

func importTimestamps(m map[string]TimestampRecord) map[string]timestampFact {
	out := make(map[string]timestampFact, len(m))
	for k, v := range m {
		out[k] = timestampFact{
			kind: factKind(v.Kind),
			entry: FsEntry{
				SafeTime:     v.SafeTime,
				HasTimestamp: v.HasTimestamp,
				Timestamp:    v.Timestamp,
			},
		}
	}
	return out
}

func exportHashes(m map[string]hashFact) map[string]HashRecord {
	out := make(map[string]HashRecord, len(m))
	for k, v := range m {
		out[k] = HashRecord{Kind: uint8(v.kind), Hash: v.hash}
	}
	return out
}

func importHashes(m map[string]HashRecord) map[string]hashFact {
	out := make(map[string]hashFact, len(m))
	for k, v := range m {
		out[k] = hashFact{kind: factKind(v.Kind), hash: v.Hash}
	}
	return out
}

// Export flattens a Snapshot into a serialization-friendly SnapshotData.
func (s *Snapshot) Export() SnapshotData {
	if s == nil {
		return SnapshotData{}
	}
	return SnapshotData{
		StartTime:         s.StartTime,
		FileTimestamps:    exportTimestamps(s.fileTimestamps),
		FileHashes:        exportHashes(s.fileHashes),
		ContextTimestamps: exportTimestamps(s.contextTimestamps),
		ContextHashes:     exportHashes(s.contextHashes),
		MissingTimestamps: exportTimestamps(s.missingTimestamps),
		ManagedItemInfo:   exportHashes(s.managedItemInfo),
	}
}

// Import reconstructs a Snapshot from its flattened SnapshotData.
func Import(data SnapshotData) *Snapshot {
	return &Snapshot{
		StartTime:         data.StartTime,
		fileTimestamps:    importTimestamps(data.FileTimestamps),
		fileHashes:        importHashes(data.FileHashes),
		contextTimestamps: importTimestamps(data.ContextTimestamps),
		contextHashes:     importHashes(data.ContextHashes),
		missingTimestamps: importTimestamps(data.MissingTimestamps),
		managedItemInfo:   importHashes(data.ManagedItemInfo),
	}
}
