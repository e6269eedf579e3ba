package pack

import (
	"bytes"
	"testing"
	"time"

	"github.com/buildcache/cachecore/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.RootLogger.Sublogger("pack-test")
}

func TestSetThenGetRoundTrip(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/a.js", "etag-1", []byte("compiled output"))

	data, ok := p.Get("module/a.js", "etag-1")
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(data) != "compiled output" {
		t.Fatalf("data = %q", data)
	}
}

func TestGetMissesOnEtagMismatch(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/a.js", "etag-1", []byte("compiled output"))

	if _, ok := p.Get("module/a.js", "etag-2"); ok {
		t.Fatalf("expected miss on etag mismatch")
	}
}

func TestSetIsNoopOnceUnserializable(t *testing.T) {
	p := New("v1", testLogger())
	p.unserializable["module/a.js"] = struct{}{}
	p.Set("module/a.js", "etag-1", []byte("data"))

	if _, ok := p.Get("module/a.js", "etag-1"); ok {
		t.Fatalf("expected Set to be a no-op for an unserializable id")
	}
}

// An entry freshly measured above MaxInlineSize is written with its lazy
// tier recorded on disk, so loading it back reads the same tier that was
// just stored and must not be re-flagged as a migration.
func TestSerializeDeserializeOversizedEntryRoundTripsStably(t *testing.T) {
	p := New("v1", testLogger())
	big := bytes.Repeat([]byte("x"), MaxInlineSize+500)
	p.Set("module/big.js", "etag-1", big)

	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p2, err := Deserialize(bytes.NewReader(buf.Bytes()), "v1", testLogger())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if p2 == nil {
		t.Fatalf("expected a pack, got nil")
	}

	data, ok := p2.Get("module/big.js", "etag-1")
	if !ok || !bytes.Equal(data, big) {
		t.Fatalf("round-tripped data mismatch")
	}
	if p2.Invalid() {
		t.Fatalf("expected an oversized entry's recorded tier to round-trip without re-triggering migration")
	}
}

// When an entry's in-memory tier disagrees with the tier recorded on disk
// (the case the stale-tier bug produced), unpack must still detect the
// mismatch and flag the pack invalid so the next write corrects it.
func TestUnpackFlagsInvalidOnTierMismatch(t *testing.T) {
	p := New("v1", testLogger())
	big := bytes.Repeat([]byte("x"), MaxInlineSize+500)

	data := p.unpack("module/big.js", &PackEntry{Data: big, Size: int64(len(big))}, true)
	if data == nil {
		t.Fatalf("expected unpack to return the entry's data")
	}
	if !p.Invalid() {
		t.Fatalf("expected a mismatched currentlyInline tier to mark the pack invalid")
	}
}

// A second serialize/deserialize cycle of an already-oversized entry must
// converge: the tier recorded on the first save should be read back as-is,
// so the entry stops being re-flagged invalid on every subsequent load.
func TestSerializeDeserializeConvergesAfterMigration(t *testing.T) {
	p := New("v1", testLogger())
	big := bytes.Repeat([]byte("x"), MaxInlineSize+500)
	p.Set("module/big.js", "etag-1", big)

	var buf1 bytes.Buffer
	if err := p.Serialize(&buf1); err != nil {
		t.Fatalf("Serialize (1): %v", err)
	}
	p2, err := Deserialize(bytes.NewReader(buf1.Bytes()), "v1", testLogger())
	if err != nil {
		t.Fatalf("Deserialize (1): %v", err)
	}
	if p2.Invalid() {
		t.Fatalf("expected first load to read back the lazy tier recorded on save without flagging a migration")
	}

	var buf2 bytes.Buffer
	if err := p2.Serialize(&buf2); err != nil {
		t.Fatalf("Serialize (2): %v", err)
	}
	p3, err := Deserialize(bytes.NewReader(buf2.Bytes()), "v1", testLogger())
	if err != nil {
		t.Fatalf("Deserialize (2): %v", err)
	}
	if p3.Invalid() {
		t.Fatalf("expected the oversized entry's tier to round-trip stably on a second cycle")
	}

	data, ok := p3.Get("module/big.js", "etag-1")
	if !ok || !bytes.Equal(data, big) {
		t.Fatalf("round-tripped data mismatch after two cycles")
	}
}

func TestSerializeDeserializeSmallEntryStaysValid(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/small.js", "etag-1", []byte("tiny"))

	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p2, err := Deserialize(bytes.NewReader(buf.Bytes()), "v1", testLogger())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	data, ok := p2.Get("module/small.js", "etag-1")
	if !ok || string(data) != "tiny" {
		t.Fatalf("round-tripped data mismatch: %q, %v", data, ok)
	}
	if p2.Invalid() {
		t.Fatalf("expected a freshly loaded small entry not to be marked invalid")
	}
}

func TestDeserializeVersionMismatchReturnsNil(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/a.js", "etag-1", []byte("data"))

	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p2, err := Deserialize(bytes.NewReader(buf.Bytes()), "v2", testLogger())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if p2 != nil {
		t.Fatalf("expected nil pack on version mismatch")
	}
}

func TestCollectGarbageEvictsStaleEntries(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/a.js", "etag-1", []byte("data"))

	// Simulate an access long enough ago to be stale, bypassing the
	// just-set `used` bookkeeping.
	for id := range p.used {
		p.lastAccess[id] = time.Now().Add(-72 * time.Hour).UnixMilli()
	}
	p.used = map[string]struct{}{}

	p.CollectGarbage(24 * time.Hour)

	if _, ok := p.Get("module/a.js", "etag-1"); ok {
		t.Fatalf("expected stale entry to be evicted")
	}
}

func TestCollectGarbageKeepsFreshEntries(t *testing.T) {
	p := New("v1", testLogger())
	p.Set("module/a.js", "etag-1", []byte("data"))

	p.CollectGarbage(24 * time.Hour)

	if _, ok := p.Get("module/a.js", "etag-1"); !ok {
		t.Fatalf("expected freshly accessed entry to survive garbage collection")
	}
}
