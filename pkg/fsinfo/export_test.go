package fsinfo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Export and Import must round-trip a Snapshot's data exactly: re-exporting
// an imported snapshot should reproduce the original SnapshotData, which is
// what the pack codec relies on to serialize a Snapshot without reaching
// into its unexported fields.
func TestExportImportRoundTrip(t *testing.T) {
	original := SnapshotData{
		StartTime: 1000,
		FileTimestamps: map[string]TimestampRecord{
			"/a": {Kind: RecordValid, SafeTime: 2000, HasTimestamp: true, Timestamp: 1500},
			"/b": {Kind: RecordNone},
		},
		FileHashes: map[string]HashRecord{
			"/a": {Kind: RecordValid, Hash: "deadbeef"},
			"/c": {Kind: RecordError},
		},
		ContextTimestamps: map[string]TimestampRecord{
			"/dir": {Kind: RecordError},
		},
		ContextHashes: map[string]HashRecord{
			"/dir": {Kind: RecordValid, Hash: "cafef00d"},
		},
		MissingTimestamps: map[string]TimestampRecord{
			"/missing": {Kind: RecordNone},
		},
		ManagedItemInfo: map[string]HashRecord{
			"/node_modules/left-pad": {Kind: RecordValid, Hash: "left-pad@1.3.0"},
		},
	}

	snap := Import(original)
	roundTripped := snap.Export()

	if diff := cmp.Diff(original, roundTripped); diff != "" {
		t.Fatalf("Export(Import(data)) mismatch (-want +got):\n%s", diff)
	}
}

func TestExportNilSnapshotIsZeroValue(t *testing.T) {
	var snap *Snapshot
	if diff := cmp.Diff(SnapshotData{}, snap.Export()); diff != "" {
		t.Fatalf("nil Snapshot Export() mismatch (-want +got):\n%s", diff)
	}
}
