package conversion

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// OutputBase returns the extension-less output path for a source file.
// With an output directory override the source stem is placed in that
// directory, otherwise the output sits next to the source.
func OutputBase(source, outputDir string) string {
	if outputDir != "" {
		name := filepath.Base(source)
		return filepath.Join(outputDir, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	return strings.TrimSuffix(source, filepath.Ext(source))
}

// TargetPath returns the default EPUB path for an output base.
func TargetPath(base string) string {
	return base + TargetExtension
}

// RenameCandidate returns the numbered EPUB path "<base> (<n>).epub".
func RenameCandidate(base string, n int) string {
	return fmt.Sprintf("%s (%d)%s", base, n, TargetExtension)
}

// NextRenameIndex returns one more than the highest N among names matching
// "<stem> (<N>).epub" (case-insensitive), or 1 when none match.
func NextRenameIndex(stem string, names []string) int {
	pattern := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(stem) + ` \((\d+)\)\.epub$`)

	maxIndex := 0
	for _, name := range names {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxIndex {
			maxIndex = n
		}
	}
	return maxIndex + 1
}
