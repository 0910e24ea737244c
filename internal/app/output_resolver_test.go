package app

import (
	"errors"
	"testing"

	"github.com/example/mobi2epub/internal/core/conversion"
)

func TestOutputResolver_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		existing  []string
		listErr   error
		policy    conversion.ExistingPolicy
		outputDir string
		wantPath  string
		wantSkip  bool
	}{
		{
			name:     "missing target is used",
			policy:   conversion.PolicySkip,
			wantPath: "/work/book.epub",
		},
		{
			name:     "skip existing",
			existing: []string{"/work/book.epub"},
			policy:   conversion.PolicySkip,
			wantPath: "/work/book.epub",
			wantSkip: true,
		},
		{
			name:     "overwrite existing",
			existing: []string{"/work/book.epub"},
			policy:   conversion.PolicyOverwrite,
			wantPath: "/work/book.epub",
		},
		{
			name:     "rename after numbered copy",
			existing: []string{"/work/book.epub", "/work/book (1).epub"},
			policy:   conversion.PolicyRename,
			wantPath: "/work/book (2).epub",
		},
		{
			name:     "rename without numbered copies",
			existing: []string{"/work/book.epub"},
			policy:   conversion.PolicyRename,
			wantPath: "/work/book (1).epub",
		},
		{
			name:     "rename with unlistable directory starts at one and probes",
			existing: []string{"/work/book.epub", "/work/book (1).epub", "/work/book (2).epub"},
			listErr:  errors.New("permission denied"),
			policy:   conversion.PolicyRename,
			wantPath: "/work/book (3).epub",
		},
		{
			name:      "output directory override",
			existing:  []string{"/work/book.epub"},
			policy:    conversion.PolicySkip,
			outputDir: "/out",
			wantPath:  "/out/book.epub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newMockFileSystem()
			fs.listErr = tt.listErr
			for _, p := range tt.existing {
				fs.addFile(p)
			}
			r := NewOutputResolver(fs)

			path, skip := r.Resolve("/work/book.mobi", tt.policy, tt.outputDir)
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if skip != tt.wantSkip {
				t.Errorf("skip = %v, want %v", skip, tt.wantSkip)
			}
		})
	}
}
