package fsinfo

import "testing"

// Context-hash stability: the digest over a tree is independent of readdir
// order (fakeFS always returns sorted names, so this also exercises that the
// hash doesn't depend on insertion order into the fake) and of hidden
// entries, since names are NFC-normalized, filtered, and sorted before
// digesting.
func TestReadContextHash_StableAcrossHiddenAndOrder(t *testing.T) {
	fsA := newFakeFS()
	fsA.putDir("/d", "b.txt", "a.txt", ".git")
	fsA.putFile("/d/a.txt", []byte("A"), 1)
	fsA.putFile("/d/b.txt", []byte("B"), 1)

	fsB := newFakeFS()
	fsB.putDir("/d", "a.txt", "b.txt")
	fsB.putFile("/d/a.txt", []byte("A"), 1)
	fsB.putFile("/d/b.txt", []byte("B"), 1)

	infoA := newTestInfo(fsA)
	infoB := newTestInfo(fsB)

	factA, err := infoA.getContextHash("/d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	factB, err := infoB.getContextHash("/d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factA.hash != factB.hash {
		t.Fatalf("expected equal hashes, got %q and %q", factA.hash, factB.hash)
	}
}

func TestReadContextHash_RecursesIntoSubdirectories(t *testing.T) {
	fs := newFakeFS()
	fs.putDir("/d", "sub")
	fs.putDir("/d/sub", "x.txt")
	fs.putFile("/d/sub/x.txt", []byte("x"), 1)

	info := newTestInfo(fs)
	fact, err := info.getContextHash("/d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fact.kind != factValid || fact.hash == "" {
		t.Fatalf("expected a valid non-empty hash, got %+v", fact)
	}

	fs.putFile("/d/sub/x.txt", []byte("different"), 2)
	info2 := newTestInfo(fs)
	fact2, err := info2.getContextHash("/d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fact2.hash == fact.hash {
		t.Fatalf("expected hash to change after subdirectory content changed")
	}
}

func TestReadContextHash_MissingDirectoryIsNone(t *testing.T) {
	fs := newFakeFS()
	info := newTestInfo(fs)
	fact, err := info.getContextHash("/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fact.kind != factNone {
		t.Fatalf("expected a None fact for a missing directory, got %+v", fact)
	}
}
