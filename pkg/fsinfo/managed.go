package fsinfo

import (
	"encoding/json"
	"strings"
)

// managedItemPath folds path down to its managed item: the path up to the
// second boundary separator beneath root (the separator right after root
// counting as the first), with '@' resetting the separator count so scoped
// package names (@scope/name) are kept whole.
func managedItemPath(root, path string) string {
	rest := strings.TrimPrefix(path, root)
	rest = strings.TrimLeft(rest, "/\\")

	// The separator after root was trimmed above; it is the first boundary.
	boundaries := 1
	cut := len(rest)
	for idx := 0; idx < len(rest); idx++ {
		switch rest[idx] {
		case '@':
			boundaries = 0
		case '/', '\\':
			boundaries++
			if boundaries == 2 {
				cut = idx
				idx = len(rest)
			}
		}
	}
	item := rest[:cut]
	return joinPath(root, item)
}

// readManagedItemInfoFact reads itemPath/package.json and returns
// "name@version". A successful read is deliberately not stored into
// i.managedItems, so repeated snapshots over the same managed item re-read
// its manifest rather than risk serving a stale name@version after a package
// is reinstalled in place.
func (i *FileSystemInfo) readManagedItemInfoFact(itemPath string) (hashFact, error) {
	value, err := i.managedItemQueue.Add(itemPath, func() (interface{}, error) {
		manifestPath := joinPath(itemPath, "package.json")
		data, err := i.fs.ReadFile(manifestPath)
		if err != nil {
			return errorHash, err
		}
		var manifest struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &manifest); err != nil {
			return errorHash, err
		}
		return hashFact{kind: factValid, hash: manifest.Name + "@" + manifest.Version}, nil
	})
	if err != nil {
		return errorHash, err
	}
	return value.(hashFact), nil
}
