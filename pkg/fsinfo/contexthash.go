package fsinfo

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/buildcache/cachecore/pkg/filesystem"
	"golang.org/x/text/unicode/norm"
)

// readContextHashFact computes the recursive content digest of a directory:
// NFC-normalize and filter hidden entries, sort lexicographically, then
// digest over the sorted names followed by each entry's file-hash (regular
// files) or context-hash (subdirectories), in that order.
//
// This mirrors the recursive directory-digest walk this codebase's
// synchronization-core scanner performs during a sync pass, generalized here
// into a cache-backed, independently invocable read.
func (i *FileSystemInfo) readContextHashFact(path string) (hashFact, error) {
	value, err := i.contextHashQueue.Add(path, func() (interface{}, error) {
		return i.digestDirectory(path)
	})
	if err != nil {
		return errorHash, err
	}
	return value.(hashFact), nil
}

func (i *FileSystemInfo) digestDirectory(path string) (hashFact, error) {
	names, err := i.fs.ReadDir(path)
	if err != nil {
		if filesystem.IsNotExist(err) {
			return noneHash, nil
		}
		return errorHash, err
	}

	visible := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		visible = append(visible, norm.NFC.String(name))
	}
	sort.Strings(visible)

	childHashes := make([]string, len(visible))
	for idx, name := range visible {
		childPath := joinPath(path, name)
		st, err := i.fs.Stat(childPath)
		if err != nil {
			if filesystem.IsNotExist(err) {
				childHashes[idx] = ""
				continue
			}
			return errorHash, err
		}
		switch {
		case st.IsDirectory():
			// Raise the parallelism budget before recursing so that this
			// call's own token isn't required by the child, avoiding
			// self-deadlock at the default parallelism of 2.
			i.contextHashQueue.IncreaseParallelism()
			childFact, err := i.getContextHash(childPath)
			i.contextHashQueue.DecreaseParallelism()
			if err != nil {
				return errorHash, err
			}
			if childFact.kind == factError {
				return errorHash, nil
			}
			childHashes[idx] = childFact.hash
		case st.IsFile():
			childFact, err := i.getFileHash(childPath)
			if err != nil {
				return errorHash, err
			}
			if childFact.kind == factError {
				return errorHash, nil
			}
			childHashes[idx] = childFact.hash
		default:
			childHashes[idx] = ""
		}
	}

	h := i.algorithm.Factory()()
	for _, name := range visible {
		h.Write([]byte(name))
	}
	for _, childHash := range childHashes {
		h.Write([]byte(childHash))
	}
	return hashFact{kind: factValid, hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// joinPath concatenates a directory and an entry name using the directory's
// own separator style, since paths in this package are opaque strings that
// may use either '/' or '\' as configured by the caller's filesystem.
func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	sep := "/"
	if strings.ContainsRune(dir, '\\') && !strings.ContainsRune(dir, '/') {
		sep = "\\"
	}
	if strings.HasSuffix(dir, "/") || strings.HasSuffix(dir, "\\") {
		return dir + name
	}
	return dir + sep + name
}
