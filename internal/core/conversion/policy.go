// Package conversion contains the pure business logic for MOBI to EPUB batch conversion.
// This is part of the Functional Core - no I/O, only data and decisions.
package conversion

import (
	"fmt"
	"strings"
)

// SourceExtension is the extension of files accepted into the work queue.
const SourceExtension = ".mobi"

// TargetExtension is the extension of files the converter produces.
const TargetExtension = ".epub"

// DefaultConverterCommand is the Calibre command looked up on PATH.
const DefaultConverterCommand = "ebook-convert"

// Timeout bounds for a single converter invocation, in seconds.
const (
	DefaultTimeoutSeconds = 600
	MinTimeoutSeconds     = 30
	MaxTimeoutSeconds     = 7200
)

// ExistingPolicy decides what happens when the target EPUB already exists.
type ExistingPolicy string

const (
	PolicySkip      ExistingPolicy = "skip"
	PolicyOverwrite ExistingPolicy = "overwrite"
	PolicyRename    ExistingPolicy = "rename"
)

// ExistingPolicies lists every valid existing-output policy.
var ExistingPolicies = []ExistingPolicy{PolicySkip, PolicyOverwrite, PolicyRename}

// FailurePolicy decides whether failed requests stay queued after a run.
type FailurePolicy string

const (
	KeepFailed   FailurePolicy = "keep-failed"
	RemoveFailed FailurePolicy = "remove-failed"
)

// FailurePolicies lists every valid failure policy.
var FailurePolicies = []FailurePolicy{KeepFailed, RemoveFailed}

// ParseExistingPolicy parses a policy name case-insensitively.
func ParseExistingPolicy(s string) (ExistingPolicy, error) {
	v := ExistingPolicy(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range ExistingPolicies {
		if v == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid existing-output policy '%s' (want one of: skip, overwrite, rename)", s)
}

// ParseFailurePolicy parses a failure policy name case-insensitively.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	v := FailurePolicy(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range FailurePolicies {
		if v == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid failure policy '%s' (want one of: keep-failed, remove-failed)", s)
}

// IsSourceFile reports whether name carries the source extension (case-insensitive).
func IsSourceFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), SourceExtension)
}

// CalibreDownloadURL is where the converter can be obtained.
const CalibreDownloadURL = "https://calibre-ebook.com/download"

// InstallHint returns platform-specific installation guidance for Calibre.
func InstallHint(goos string) string {
	switch goos {
	case "windows":
		return fmt.Sprintf("Install Calibre from %s, then restart.", CalibreDownloadURL)
	case "darwin":
		return fmt.Sprintf("Install Calibre from %s (or run: brew install --cask calibre), then restart.", CalibreDownloadURL)
	default:
		return fmt.Sprintf("Install Calibre from %s (or your distro package manager), then restart.", CalibreDownloadURL)
	}
}
