package conversion

import "strings"

// OutputLimit is the number of characters of converter output kept in a failure detail.
const OutputLimit = 1600

// TruncationMarker is appended to converter output cut at OutputLimit.
const TruncationMarker = "\n...[output truncated]..."

// SplitRetryFlags are appended to the converter command on the split-safe retry.
// They force unbounded flow size and disable splitting at page breaks.
var SplitRetryFlags = []string{"--flow-size", "0", "--dont-split-on-page-breaks"}

// splitMarkers identify the converter's "unsplittable content" failure.
var splitMarkers = []string{
	"could not find reasonable point at which to split",
	"calibre.ebooks.oeb.transforms.split.spliterror",
	"oeb/transforms/split.py",
}

// IsSplitError reports whether converter output carries the split-error signature.
func IsSplitError(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range splitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// TrimToolOutput cuts converter output to OutputLimit characters.
func TrimToolOutput(output string) string {
	r := []rune(output)
	if len(r) <= OutputLimit {
		return output
	}
	return string(r[:OutputLimit]) + TruncationMarker
}

// ToolOutput picks the converter text reported in failure details:
// standard error when present, otherwise standard output, trimmed.
func ToolOutput(stdout, stderr string) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	return strings.TrimSpace(stdout)
}
