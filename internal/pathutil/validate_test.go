package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "empty path", path: "", wantErr: ErrEmptyPath},
		{name: "null byte", path: "reports\x00/jacoco.xml", wantErr: ErrNullBytes},
		{name: "relative report path", path: "target/site/jacoco/jacoco.xml"},
		{name: "dot-dot is cleaned", path: "build/../coverage/coverage.json"},
		{name: "missing file keeps cleaned path", path: filepath.Join(tmpDir, "nope", "clover.xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidatePath(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ValidatePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidatePath(%q) unexpected error: %v", tt.path, err)
			}
			if result == "" {
				t.Errorf("ValidatePath(%q) returned empty string", tt.path)
			}
		})
	}
}

func TestValidatePath_SymlinkResolution(t *testing.T) {
	tmpDir := t.TempDir()
	realFile := filepath.Join(tmpDir, "cobertura.xml")
	if err := os.WriteFile(realFile, []byte("<coverage/>"), 0o600); err != nil {
		t.Fatalf("create test file: %v", err)
	}
	link := filepath.Join(tmpDir, "link.xml")
	if err := os.Symlink(realFile, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := ValidatePath(link)
	if err != nil {
		t.Fatalf("ValidatePath(%q) error: %v", link, err)
	}
	want, err := filepath.EvalSymlinks(realFile)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if got != want {
		t.Errorf("ValidatePath(%q) = %q, want %q", link, got, want)
	}
}

func TestValidateWithin(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(root, "module", "jacoco.xml")

	if _, err := ValidateWithin(root, inside); err != nil {
		t.Errorf("path inside root rejected: %v", err)
	}
	if _, err := ValidateWithin(root, filepath.Join(root, "..", "other.xml")); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
	if _, err := ValidateWithin(root, ""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.json")
	if err := os.WriteFile(path, []byte(`{"metrics":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"metrics":{}}` {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := ReadFile(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got %v", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.xml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestIsPathSafe(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"", false},
		{"some\x00path", false},
		{"build/clover.xml", true},
		{"/abs/build/clover.xml", true},
		{"../outside.xml", false},
		{"a/../../outside.xml", false},
		{"a/../inside.xml", true},
		{".", true},
	}
	for _, tt := range tests {
		if got := IsPathSafe(tt.path); got != tt.want {
			t.Errorf("IsPathSafe(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
