package application

import (
	"context"
	"io"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

type OutputFormat string

const (
	OutputText  OutputFormat = "text"
	OutputJSON  OutputFormat = "json"
	OutputBrief OutputFormat = "brief"
)

// ErrorPolicy decides what happens when one of several reports cannot be
// parsed.
type ErrorPolicy string

const (
	// ErrorPolicyFail aborts the whole collection on the first bad report.
	ErrorPolicyFail ErrorPolicy = "fail"
	// ErrorPolicySkip drops bad reports from aggregation and reports them
	// as warnings.
	ErrorPolicySkip ErrorPolicy = "skip"
)

// PRProvider represents a git hosting provider.
type PRProvider string

const (
	// ProviderGitHub is GitHub.com or GitHub Enterprise
	ProviderGitHub PRProvider = "github"
	// ProviderBitbucket is Bitbucket Server (Stash)
	ProviderBitbucket PRProvider = "bitbucket"
	// ProviderGitLab is GitLab.com or a self-managed GitLab
	ProviderGitLab PRProvider = "gitlab"
	// ProviderAuto auto-detects the provider from the repository URL
	ProviderAuto PRProvider = "auto"
)

// Config represents validated, application-ready configuration.
type Config struct {
	Thresholds  domain.ThresholdConfig
	Aggregation AggregationConfig
	Jacoco      JacocoConfig
	Reports     ReportsConfig
	Reference   ReferenceConfig
	Comment     CommentConfig
}

type AggregationConfig struct {
	UseAggregates bool
}

type JacocoConfig struct {
	Counter string // LINE, BRANCH or INSTRUCTION
}

type ReportsConfig struct {
	DisableSimpleCov bool
	Patterns         []string // extra globs, format detected from content
	OnError          ErrorPolicy
}

type ReferenceConfig struct {
	Store string // path of the reference JSON file
	Label string // overrides the target branch in messages
	Sonar SonarConfig
}

// SonarConfig enables reference lookup from a SonarQube server when URL is set.
type SonarConfig struct {
	URL      string
	Token    string
	Login    string
	Password string
}

// Enabled reports whether a Sonar server is configured.
func (s SonarConfig) Enabled() bool {
	return s.URL != ""
}

type CommentConfig struct {
	Mode       domain.CommentMode
	BaseURL    string
	PlainGreen bool
	Provider   PRProvider
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Thresholds: domain.DefaultThresholds(),
		Jacoco:     JacocoConfig{Counter: "LINE"},
		Reports:    ReportsConfig{OnError: ErrorPolicyFail},
		Reference:  ReferenceConfig{Store: ".covstatus/reference.json"},
		Comment:    CommentConfig{Mode: domain.CommentShields, Provider: ProviderAuto},
	}
}

type ConfigLoader interface {
	Load(path string) (Config, error)
	Exists(path string) (bool, error)
}

// Report is one coverage report whose content is already in memory.
// An empty Format asks the parser to detect it from the content.
type Report struct {
	Format  domain.ReportFormat
	Path    string
	Content []byte
}

// ReportParser reduces one report to a measurement.
type ReportParser interface {
	Parse(report Report) (domain.Measurement, error)
}

// FormatDetector is implemented by parsers that can sniff the format of a
// report before parsing it.
type FormatDetector interface {
	DetectFormat(path string, content []byte) (domain.ReportFormat, error)
}

// ReportLocation is a report file found in the workspace.
type ReportLocation struct {
	Path   string
	Format domain.ReportFormat // empty when the format must be detected
}

// ReportPattern is a workspace glob and the format of the files it matches.
type ReportPattern struct {
	Glob   string
	Format domain.ReportFormat
}

// ReportFinder locates and reads report files.
type ReportFinder interface {
	Find(ctx context.Context, root string, patterns []ReportPattern) ([]ReportLocation, error)
	Read(path string) ([]byte, error)
}

// ReferenceStore persists recorded reference coverage by repository key.
type ReferenceStore interface {
	Load() (domain.References, error)
	Put(entry domain.ReferenceEntry) error
}

// ReferenceLookup fetches reference coverage from an external quality server.
type ReferenceLookup interface {
	Coverage(ctx context.Context, repoName string) (domain.CoverageRatio, error)
}

// PRClient provides PR comment operations for any git hosting provider.
type PRClient interface {
	// Provider returns the provider type
	Provider() PRProvider
	// FindCoverageComment finds an existing coverage comment on a PR
	FindCoverageComment(ctx context.Context, owner, repo string, prNumber int) (int64, error)
	// CreateComment creates a new comment on a PR
	CreateComment(ctx context.Context, owner, repo string, prNumber int, body string) (int64, string, error)
	// UpdateComment updates an existing comment
	UpdateComment(ctx context.Context, owner, repo string, prNumber int, commentID int64, body string) error
}

// IconRenderer turns a caption and color into an SVG document.
type IconRenderer interface {
	Render(message, color string) (string, error)
}

// Reporter renders command results.
type Reporter interface {
	Write(w io.Writer, result CompareResult, format OutputFormat) error
	WriteCollect(w io.Writer, result CollectResult, format OutputFormat) error
}

// FileWatcher provides file change notifications.
type FileWatcher interface {
	WatchDir(root string) error
	Events(ctx context.Context) <-chan struct{}
	Close() error
}

// CollectOptions selects the reports whose coverage is collected. When
// Reports is empty the workspace under Root is scanned.
type CollectOptions struct {
	ConfigPath string
	Root       string
	Reports    []string
	Format     domain.ReportFormat // applies to Reports; empty detects
}

// CollectResult is the aggregated coverage of one workspace scan.
type CollectResult struct {
	Coverage     domain.CoverageRatio     `json:"coverage"`
	Percent      int                      `json:"percent"`
	Policy       domain.AggregationPolicy `json:"policy"`
	Measurements []domain.Measurement     `json:"measurements"`
	Skipped      []SkippedReport          `json:"skipped,omitempty"`
	Events       []domain.DomainEvent     `json:"-"`
}

// SkippedReport is a report dropped under ErrorPolicySkip.
type SkippedReport struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// CompareOptions configures a comparison against the reference coverage.
type CompareOptions struct {
	CollectOptions
	RepoURL     string   // key of the stored reference, e.g. the git URL
	Branch      string   // target branch; "origin/" is stripped
	Label       string   // reference label shown in messages
	Reference   *float64 // explicit reference, skips every lookup
	BuildURL    string
	BaseURL     string // root of the icon endpoint in local comment mode
	BuildResult string // skip everything unless empty or SUCCESS
	Publish     bool
	// StrictPublish turns a failed comment into an error wrapping ErrPublish.
	StrictPublish bool
	Owner         string
	Repo          string
	PRNumber      int
	Provider      PRProvider
	Output        OutputFormat
}

// CompareResult is the rendered comparison.
type CompareResult struct {
	Skipped          bool                 `json:"skipped,omitempty"`
	Coverage         domain.CoverageRatio `json:"coverage"`
	Reference        domain.CoverageRatio `json:"reference"`
	ReferenceSource  string               `json:"referenceSource"`
	Label            string               `json:"label"`
	Change           float64              `json:"change"`
	Percent          int                  `json:"percent"`
	ReferencePercent int                  `json:"referencePercent"`
	Color            string               `json:"color"`
	Console          string               `json:"console"`
	Icon             string               `json:"icon"`
	Comment          string               `json:"comment"`
	Collect          CollectResult        `json:"collect"`
	Published        *PRCommentResult     `json:"published,omitempty"`
	Events           []domain.DomainEvent `json:"-"`
}

// PRCommentResult contains the result of a PR comment operation.
type PRCommentResult struct {
	CommentID  int64  `json:"commentId,omitempty"`
	CommentURL string `json:"commentUrl,omitempty"`
	Created    bool   `json:"created"` // true if created, false if updated
}

// RecordOptions configures storing the current coverage as reference.
type RecordOptions struct {
	CollectOptions
	RepoURL string
	Branch  string
	Commit  string
}

// RecordResult reports the stored entry and the value it replaced.
type RecordResult struct {
	Entry    domain.ReferenceEntry `json:"entry"`
	Previous domain.CoverageRatio  `json:"previous"`
	Existed  bool                  `json:"existed"`
	Events   []domain.DomainEvent  `json:"-"`
}

// IconOptions are the query parameters of the icon endpoint.
type IconOptions struct {
	Coverage  domain.CoverageRatio
	Reference domain.CoverageRatio
	Color     string // red, yellow, brightgreen, green or #rrggbb; empty derives it
	Label     string
}

// WatchOptions configures watch mode behavior.
type WatchOptions struct {
	CompareOptions
	Clear bool // Clear terminal before each run
}
