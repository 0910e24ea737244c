package secondary

// FileSystem defines the secondary port for the e-book library on disk.
type FileSystem interface {
	// Abs returns an absolute, cleaned form of path.
	Abs(path string) (string, error)

	// Exists reports whether path exists (following symlinks).
	Exists(path string) bool

	// IsDir reports whether path is an existing directory.
	IsDir(path string) bool

	// IsFile reports whether path is an existing regular file.
	IsFile(path string) bool

	// ListNames returns the entry names of a directory.
	ListNames(dir string) ([]string, error)

	// WalkSources returns every MOBI file beneath root in lexical order.
	WalkSources(root string) ([]string, error)

	// Remove deletes a single file.
	Remove(path string) error
}
