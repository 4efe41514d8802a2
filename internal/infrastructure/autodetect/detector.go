// Package autodetect seeds a configuration from the build files found in a
// workspace.
package autodetect

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/felixgeelhaar/covstatus/internal/application"
)

// Ecosystem names a build toolchain whose coverage tool writes a known report.
type Ecosystem string

const (
	EcosystemJava   Ecosystem = "java"
	EcosystemNode   Ecosystem = "node"
	EcosystemPython Ecosystem = "python"
	EcosystemRuby   Ecosystem = "ruby"
	EcosystemDotNet Ecosystem = "dotnet"
	EcosystemPHP    Ecosystem = "php"
)

var markers = map[string]Ecosystem{
	"pom.xml":          EcosystemJava,
	"build.gradle":     EcosystemJava,
	"build.gradle.kts": EcosystemJava,
	"package.json":     EcosystemNode,
	"pyproject.toml":   EcosystemPython,
	"setup.py":         EcosystemPython,
	"setup.cfg":        EcosystemPython,
	"Gemfile":          EcosystemRuby,
	"composer.json":    EcosystemPHP,
}

// extra report globs for tools whose default file name is not scanned.
var extraPatterns = map[Ecosystem]string{
	EcosystemPython: "**/coverage.xml",
	EcosystemDotNet: "**/coverage.cobertura.xml",
}

var ignoredDirs = map[string]struct{}{
	"node_modules": {}, "vendor": {}, "target": {}, "build": {}, "dist": {}, "testdata": {},
}

type Detector struct {
	Root string
}

// Detect looks at Root and its direct subdirectories and returns the
// ecosystems found, sorted by name.
func (d Detector) Detect() []Ecosystem {
	root := d.Root
	if root == "" {
		root = "."
	}
	found := map[Ecosystem]struct{}{}
	scanDir(root, found)

	entries, err := os.ReadDir(root)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if !entry.IsDir() || name[0] == '.' {
				continue
			}
			if _, ok := ignoredDirs[name]; ok {
				continue
			}
			scanDir(filepath.Join(root, name), found)
		}
	}

	out := make([]Ecosystem, 0, len(found))
	for e := range found {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func scanDir(dir string, found map[Ecosystem]struct{}) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if e, ok := markers[name]; ok {
			found[e] = struct{}{}
		}
		if ext := filepath.Ext(name); ext == ".csproj" || ext == ".sln" {
			found[EcosystemDotNet] = struct{}{}
		}
	}
}

// Apply adjusts cfg for the detected ecosystems. SimpleCov scanning is turned
// off when no Ruby project is present, and report globs are added for
// Python and .NET tools.
func Apply(cfg application.Config, ecosystems []Ecosystem) application.Config {
	ruby := false
	patterns := append([]string(nil), cfg.Reports.Patterns...)
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		seen[p] = struct{}{}
	}
	for _, e := range ecosystems {
		if e == EcosystemRuby {
			ruby = true
		}
		if p, ok := extraPatterns[e]; ok {
			if _, dup := seen[p]; !dup {
				patterns = append(patterns, p)
				seen[p] = struct{}{}
			}
		}
	}
	if len(ecosystems) > 0 {
		cfg.Reports.DisableSimpleCov = !ruby
	}
	cfg.Reports.Patterns = patterns
	return cfg
}
