package fsinfo

import "testing"

func TestManagedItemPath_PlainPackage(t *testing.T) {
	got := managedItemPath("/node_modules", "/node_modules/lodash/lib/index.js")
	if want := "/node_modules/lodash"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestManagedItemPath_ScopedPackage(t *testing.T) {
	got := managedItemPath("/node_modules", "/node_modules/@scope/pkg/lib/index.js")
	if want := "/node_modules/@scope/pkg"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestManagedItemPath_ItemAtRoot(t *testing.T) {
	got := managedItemPath("/node_modules", "/node_modules/lodash")
	if want := "/node_modules/lodash"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadManagedItemInfo_ReadsManifest(t *testing.T) {
	fs := newFakeFS()
	fs.putFile("/node_modules/lodash/package.json", []byte(`{"name":"lodash","version":"4.17.21"}`), 1)
	info := newTestInfo(fs, WithManagedPaths("/node_modules"))

	fact, err := info.readManagedItemInfoFact("/node_modules/lodash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fact.hash != "lodash@4.17.21" {
		t.Fatalf("got %q", fact.hash)
	}
}

func TestReadManagedItemInfo_MissingManifestIsError(t *testing.T) {
	fs := newFakeFS()
	info := newTestInfo(fs, WithManagedPaths("/node_modules"))

	_, err := info.readManagedItemInfoFact("/node_modules/gone")
	if err == nil {
		t.Fatalf("expected an error for a missing manifest")
	}
}

func TestReadManagedItemInfo_NotMemoizedOnSuccess(t *testing.T) {
	// A successful managed-item read is deliberately not cached into the
	// live managedItems map: a snapshot's own managedItemInfo map is the memo
	// for that call, but the live cache stays empty so later snapshots
	// re-read the manifest.
	fs := newFakeFS()
	fs.putFile("/node_modules/lodash/package.json", []byte(`{"name":"lodash","version":"1.0.0"}`), 1)
	info := newTestInfo(fs, WithManagedPaths("/node_modules"))

	if _, err := info.readManagedItemInfoFact("/node_modules/lodash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.managedItems.Load("/node_modules/lodash"); ok {
		t.Fatalf("expected the live managedItems cache to remain unpopulated after a successful read")
	}
}
