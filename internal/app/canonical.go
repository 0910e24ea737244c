package app

import (
	"path/filepath"
	"runtime"
	"strings"
)

// CanonicalPath returns the identity of a conversion request: the absolute,
// cleaned path, case-folded on platforms whose default filesystems ignore case.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if foldsCase(runtime.GOOS) {
		abs = strings.ToLower(abs)
	}
	return abs
}

func foldsCase(goos string) bool {
	return goos == "windows" || goos == "darwin"
}
