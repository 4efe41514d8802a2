// Package mcp exposes covstatus operations over the Model Context Protocol.
package mcp

import (
	"context"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// Service defines the application operations needed by MCP.
type Service interface {
	// Tools
	Collect(ctx context.Context, opts application.CollectOptions) (application.CollectResult, error)
	Compare(ctx context.Context, opts application.CompareOptions) (application.CompareResult, error)
	Record(ctx context.Context, opts application.RecordOptions) (application.RecordResult, error)

	// Resources
	Config(path string) (application.Config, error)
	References(configPath string) (domain.References, error)
}

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string // Path to .covstatus.yaml (default: ".covstatus.yaml")
	Root       string // Workspace searched for reports (default: ".")
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() Config {
	return Config{
		ConfigPath: ".covstatus.yaml",
		Root:       ".",
	}
}

// CollectInput defines the input parameters for the collect tool.
type CollectInput struct {
	ConfigPath string   `json:"configPath,omitempty" jsonschema:"path to the .covstatus.yaml config file"`
	Root       string   `json:"root,omitempty"       jsonschema:"workspace directory searched for reports"`
	Reports    []string `json:"reports,omitempty"    jsonschema:"explicit report files; skips the workspace scan"`
	Format     string   `json:"format,omitempty"     jsonschema:"format of the explicit reports (cobertura, jacoco-line, jacoco-branch, jacoco-instruction, clover, simplecov); detected when empty"`
}

// CompareInput defines the input parameters for the compare tool.
type CompareInput struct {
	ConfigPath string   `json:"configPath,omitempty" jsonschema:"path to the .covstatus.yaml config file"`
	Root       string   `json:"root,omitempty"       jsonschema:"workspace directory searched for reports"`
	Reports    []string `json:"reports,omitempty"    jsonschema:"explicit report files; skips the workspace scan"`
	Format     string   `json:"format,omitempty"     jsonschema:"format of the explicit reports; detected when empty"`
	RepoURL    string   `json:"repoUrl,omitempty"    jsonschema:"repository URL the reference was recorded under"`
	Branch     string   `json:"branch,omitempty"     jsonschema:"target branch of the change"`
	Label      string   `json:"label,omitempty"      jsonschema:"reference name shown in messages"`
	Reference  *float64 `json:"reference,omitempty"  jsonschema:"explicit reference coverage ratio between 0 and 1"`
}

func (in CompareInput) collect() CollectInput {
	return CollectInput{ConfigPath: in.ConfigPath, Root: in.Root, Reports: in.Reports, Format: in.Format}
}

// RecordInput defines the input parameters for the record tool.
type RecordInput struct {
	ConfigPath string   `json:"configPath,omitempty" jsonschema:"path to the .covstatus.yaml config file"`
	Root       string   `json:"root,omitempty"       jsonschema:"workspace directory searched for reports"`
	Reports    []string `json:"reports,omitempty"    jsonschema:"explicit report files; skips the workspace scan"`
	Format     string   `json:"format,omitempty"     jsonschema:"format of the explicit reports; detected when empty"`
	RepoURL    string   `json:"repoUrl"              jsonschema:"repository URL the reference is recorded under"`
	Branch     string   `json:"branch,omitempty"     jsonschema:"branch the coverage belongs to"`
	Commit     string   `json:"commit,omitempty"     jsonschema:"commit SHA of the measured build"`
}

func (in RecordInput) collect() CollectInput {
	return CollectInput{ConfigPath: in.ConfigPath, Root: in.Root, Reports: in.Reports, Format: in.Format}
}

// CollectOutput is the result of the collect tool.
type CollectOutput struct {
	Coverage domain.CoverageRatio        `json:"coverage"`
	Percent  int                         `json:"percent"`
	Policy   string                      `json:"policy,omitempty"`
	Reports  []string                    `json:"reports,omitempty"`
	Skipped  []application.SkippedReport `json:"skipped,omitempty"`
	Summary  string                      `json:"summary,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// CompareOutput is the result of the compare tool.
type CompareOutput struct {
	Coverage        domain.CoverageRatio `json:"coverage"`
	Reference       domain.CoverageRatio `json:"reference"`
	ReferenceSource string               `json:"referenceSource,omitempty"`
	Change          float64              `json:"change"`
	Color           string               `json:"color,omitempty"`
	Summary         string               `json:"summary,omitempty"`
	Comment         string               `json:"comment,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// RecordOutput is the result of the record tool.
type RecordOutput struct {
	Key      string               `json:"key,omitempty"`
	Coverage domain.CoverageRatio `json:"coverage"`
	Previous domain.CoverageRatio `json:"previous"`
	Existed  bool                 `json:"existed"`
	Summary  string               `json:"summary,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// coalesce returns value if non-empty, otherwise fallback.
func coalesce(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
