package app

import (
	"path/filepath"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// OutputResolver decides where a conversion writes its EPUB.
type OutputResolver struct {
	fs secondary.FileSystem
}

// NewOutputResolver creates an OutputResolver over the given filesystem.
func NewOutputResolver(fs secondary.FileSystem) *OutputResolver {
	return &OutputResolver{fs: fs}
}

// Resolve returns the output path for source and whether the request must be skipped.
// A skip is only signalled for PolicySkip when the target already exists.
func (r *OutputResolver) Resolve(source string, policy conversion.ExistingPolicy, outputDir string) (string, bool) {
	base := conversion.OutputBase(source, outputDir)
	target := conversion.TargetPath(base)
	if !r.fs.Exists(target) {
		return target, false
	}

	switch policy {
	case conversion.PolicySkip:
		return target, true
	case conversion.PolicyRename:
		return r.nextFreeName(base), false
	default:
		return target, false
	}
}

func (r *OutputResolver) nextFreeName(base string) string {
	n := 1
	if names, err := r.fs.ListNames(filepath.Dir(base)); err == nil {
		n = conversion.NextRenameIndex(filepath.Base(base), names)
	}
	candidate := conversion.RenameCandidate(base, n)
	for r.fs.Exists(candidate) {
		n++
		candidate = conversion.RenameCandidate(base, n)
	}
	return candidate
}
