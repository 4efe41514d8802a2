package domain

import (
	"strings"
	"time"
)

// ReferenceEntry is a recorded coverage value for one repository branch.
type ReferenceEntry struct {
	Key       string        `json:"key"`
	Coverage  CoverageRatio `json:"coverage"`
	Commit    string        `json:"commit,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// References maps repository keys to their recorded coverage.
type References struct {
	Entries map[string]ReferenceEntry `json:"entries"`
}

// Lookup returns the recorded coverage for key.
func (r References) Lookup(key string) (ReferenceEntry, bool) {
	e, ok := r.Entries[key]
	return e, ok
}

// Put replaces the entry stored under e.Key.
func (r *References) Put(e ReferenceEntry) {
	if r.Entries == nil {
		r.Entries = make(map[string]ReferenceEntry)
	}
	r.Entries[e.Key] = e
}

// ReferenceKey joins a repository URL and branch as "url#branch".
// An empty branch leaves the URL unchanged.
func ReferenceKey(repoURL, branch string) string {
	branch = strings.TrimPrefix(branch, "origin/")
	if branch == "" {
		return repoURL
	}
	return repoURL + "#" + branch
}
