// Package discovery locates coverage reports in a workspace.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/pathutil"
)

// ignoredDirs are never searched for reports.
var ignoredDirs = map[string]struct{}{".git": {}, "node_modules": {}, "vendor": {}}

// Finder implements application.ReportFinder on the local filesystem.
type Finder struct{}

// New creates a Finder.
func New() *Finder {
	return &Finder{}
}

// Find expands every pattern below root. A file matched by several patterns
// is reported once, with the format of the first pattern that matched it.
// Results keep pattern order and are sorted by path within a pattern.
func (f *Finder) Find(ctx context.Context, root string, patterns []application.ReportPattern) ([]application.ReportLocation, error) {
	if root == "" {
		root = "."
	}
	cleanRoot, err := pathutil.ValidatePath(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}

	seen := make(map[string]struct{})
	var out []application.ReportLocation
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		glob := filepath.Join(cleanRoot, filepath.FromSlash(p.Glob))
		matches, err := doublestar.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", p.Glob, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if _, dup := seen[m]; dup || ignored(cleanRoot, m) {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, application.ReportLocation{Path: m, Format: p.Format})
		}
	}
	return out, nil
}

// Read returns the content of a report file.
func (f *Finder) Read(path string) ([]byte, error) {
	return pathutil.ReadFile(path)
}

func ignored(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := ignoredDirs[part]; ok {
			return true
		}
	}
	return false
}
