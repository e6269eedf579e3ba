package filesystem

const (
	// TemporaryNamePrefix is the file name prefix used for temporary files
	// created by this package (e.g. during atomic writes). Using a
	// recognizable prefix means such files can always be recognized (and
	// ignored) by any path-scanning logic built atop this package.
	TemporaryNamePrefix = ".cachecore-temporary-"
)
