package application

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

const logPrefix = "[covstatus] "

// SkipMessage is logged when a comparison is skipped for a failed build.
const SkipMessage = "skip, build is red"

var (
	// ErrNoReports is returned when no report file matched.
	ErrNoReports = errors.New("no coverage reports found")
	// ErrNoRepository is returned when an operation needs a repository URL.
	ErrNoRepository = errors.New("repository URL required")
)

// loadConfig loads config from path, falling back to defaults when the
// file does not exist.
func loadConfig(loader ConfigLoader, path string) (Config, error) {
	if loader == nil {
		return DefaultConfig(), nil
	}
	exists, err := loader.Exists(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return DefaultConfig(), nil
	}
	cfg, err := loader.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// DefaultPatterns returns the workspace globs searched when no report is
// named explicitly: the well-known report names of every format plus the
// configured extra patterns.
func DefaultPatterns(cfg Config) []ReportPattern {
	jacoco := jacocoFormat(cfg)
	patterns := []ReportPattern{
		{Glob: "**/cobertura.xml", Format: domain.FormatCobertura},
		{Glob: "**/cobertura-coverage.xml", Format: domain.FormatCobertura},
		{Glob: "**/jacoco.xml", Format: jacoco},
		{Glob: "**/jacocoTestReport.xml", Format: jacoco},
		{Glob: "**/clover.xml", Format: domain.FormatClover},
	}
	if !cfg.Reports.DisableSimpleCov {
		patterns = append(patterns, ReportPattern{Glob: "**/coverage/coverage.json", Format: domain.FormatSimpleCov})
	}
	for _, glob := range cfg.Reports.Patterns {
		patterns = append(patterns, ReportPattern{Glob: glob})
	}
	return patterns
}

func jacocoFormat(cfg Config) domain.ReportFormat {
	format, err := domain.JacocoFormat(cfg.Jacoco.Counter)
	if err != nil {
		return domain.FormatJacocoLine
	}
	return format
}

// stripOrigin removes the remote prefix Jenkins puts in front of branch names.
func stripOrigin(branch string) string {
	return strings.TrimPrefix(strings.TrimSpace(branch), "origin/")
}

func logf(out io.Writer, format string, args ...any) {
	if out == nil {
		return
	}
	fmt.Fprintf(out, logPrefix+format+"\n", args...)
}
