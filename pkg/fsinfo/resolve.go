package fsinfo

import (
	"encoding/json"
	"path"
	"strings"
	"sync"

	"github.com/buildcache/cachecore/pkg/filesystem"
)

// resolveParallelism bounds concurrent work items in resolveBuildDependencies,
// a separate queue from the five read caches since resolution work items are
// not keyed by a single cacheable path.
const resolveParallelism = 50

// Dependencies is the product of resolveBuildDependencies: the canonical
// files and directories a build depends on. Resolution never fills in
// Missing; it is left empty for callers to populate before snapshotting.
type Dependencies struct {
	Files       []string
	Directories []string
	Missing     []string
}

// ResolveBuildDependencies resolves a set of module requests against context
// into the files and directories the build depends on,
// following file- and directory-dependency edges transitively. Cycles are
// broken by the files/directories visited sets, keyed by canonical path;
// recursion terminates because directory-dependencies only ever ascends to
// parents or descends into a fixed manifest's dependency list.
//
// Work items fan out unboundedly (one goroutine per item, never blocking the
// discoverer that spawns it): resolving one item commonly enqueues several
// more from inside an already-running worker, and a fixed-size limiter that
// blocks the *spawning* call (as errgroup.Group.SetLimit does) deadlocks once
// every slot is held by a worker waiting to spawn its own children. Instead,
// resolveParallelism is enforced by a semaphore each worker acquires for
// itself only once it is running, and releases before returning — so a
// worker never spawns a child while holding a slot the child might need.
func (i *FileSystemInfo) ResolveBuildDependencies(context string, requests []string) (*Dependencies, error) {
	var mu sync.Mutex
	files := map[string]struct{}{}
	directories := map[string]struct{}{}

	sem := make(chan struct{}, resolveParallelism)
	var wg sync.WaitGroup
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	spawn := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := fn(); err != nil {
				fail(err)
			}
		}()
	}

	var enqueueResolve func(ctx, request string)
	var enqueueResolveDirectory func(ctx, request string)
	var enqueueFile func(p string)
	var enqueueDirectory func(p string)

	enqueueResolve = func(ctx, request string) {
		asDependencies := false
		trimmed := request
		if strings.HasPrefix(trimmed, "deps:") {
			asDependencies = true
			trimmed = strings.TrimPrefix(trimmed, "deps:")
		}
		spawn(func() error {
			if strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, "\\") {
				dir, err := i.resolver.ResolveContext(ctx, trimmed)
				if err != nil {
					return err
				}
				if asDependencies {
					return i.directoryDependencies(dir, &mu, directories, enqueueResolveDirectory)
				}
				enqueueDirectory(dir)
				return nil
			}
			fp, err := i.resolver.Resolve(ctx, trimmed)
			if err != nil {
				return err
			}
			if asDependencies {
				return i.fileDependencies(fp, enqueueFile, enqueueDirectory)
			}
			enqueueFile(fp)
			return nil
		})
	}

	enqueueResolveDirectory = func(ctx, request string) {
		spawn(func() error {
			dir, err := i.resolver.ResolveContext(ctx, request)
			if err != nil {
				return err
			}
			enqueueDirectory(dir)
			return nil
		})
	}

	enqueueFile = func(p string) {
		spawn(func() error {
			canonical, err := i.fs.Realpath(p)
			if err != nil {
				canonical = p
			}
			mu.Lock()
			_, seen := files[canonical]
			if !seen {
				files[canonical] = struct{}{}
			}
			mu.Unlock()
			if seen {
				return nil
			}
			return i.fileDependencies(canonical, enqueueFile, enqueueDirectory)
		})
	}

	enqueueDirectory = func(p string) {
		spawn(func() error {
			canonical, err := i.fs.Realpath(p)
			if err != nil {
				canonical = p
			}
			mu.Lock()
			_, seen := directories[canonical]
			if !seen {
				directories[canonical] = struct{}{}
			}
			mu.Unlock()
			if seen {
				return nil
			}
			return i.directoryDependencies(canonical, &mu, directories, enqueueResolveDirectory)
		})
	}

	for _, request := range requests {
		enqueueResolve(context, request)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	return &Dependencies{
		Files:       keysOf(files),
		Directories: keysOf(directories),
	}, nil
}

// fileDependencies enumerates a file's children via the host-loader
// callback, enqueuing each as a file. When the loader is absent or doesn't
// know this file (unknown module system), it falls back to enqueuing the
// containing directory as an over-approximation.
func (i *FileSystemInfo) fileDependencies(filePath string, enqueueFile, enqueueDirectory func(string)) error {
	if i.moduleChildren == nil {
		enqueueDirectory(path.Dir(filePath))
		return nil
	}
	children, ok := i.moduleChildren(filePath)
	if !ok {
		enqueueDirectory(path.Dir(filePath))
		return nil
	}
	for _, child := range children {
		enqueueFile(child)
	}
	return nil
}

// directoryDependencies locates the innermost node_modules package root
// containing dirPath (or dirPath itself if none), reads its package.json,
// and emits a resolve-directory request for each of its dependencies, with
// context set to the package root. ENOENT on package.json ascends to the
// parent directory; any other read/parse error fails the whole resolution.
func (i *FileSystemInfo) directoryDependencies(dirPath string, mu *sync.Mutex, directories map[string]struct{}, enqueueResolveDirectory func(ctx, request string)) error {
	root := packageRoot(dirPath)
	for {
		manifestPath := joinPath(root, "package.json")
		data, err := i.fs.ReadFile(manifestPath)
		if err == nil {
			var manifest struct {
				Dependencies map[string]string `json:"dependencies"`
			}
			if jsonErr := json.Unmarshal(data, &manifest); jsonErr != nil {
				return jsonErr
			}
			for dep := range manifest.Dependencies {
				enqueueResolveDirectory(root, dep)
			}
			return nil
		}
		if !filesystem.IsNotExist(err) {
			return err
		}
		parent := path.Dir(root)
		if parent == root || parent == "." || parent == "/" {
			return nil
		}
		root = parent
	}
}

// packageRoot matches the innermost node_modules/[@scope/]pkg prefix of
// dirPath and returns it, or dirPath itself if no such segment exists.
func packageRoot(dirPath string) string {
	sep := "/"
	if strings.Contains(dirPath, "\\") && !strings.Contains(dirPath, "/") {
		sep = "\\"
	}
	segments := strings.Split(dirPath, sep)

	lastNodeModules := -1
	for idx, segment := range segments {
		if segment == "node_modules" {
			lastNodeModules = idx
		}
	}
	if lastNodeModules == -1 || lastNodeModules+1 >= len(segments) {
		return dirPath
	}

	end := lastNodeModules + 2
	if strings.HasPrefix(segments[lastNodeModules+1], "@") && end < len(segments) {
		end++
	}
	if end > len(segments) {
		end = len(segments)
	}
	return strings.Join(segments[:end], sep)
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
