package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

func TestLoadConfig(t *testing.T) {
	content := `thresholds:
  yellow: 50
  green: 75
  negativeCoverageIsRed: true
aggregation:
  useAggregates: true
jacoco:
  counter: BRANCH
reports:
  disableSimpleCov: true
  patterns: ["**/reports/*.xml"]
  onError: skip
reference:
  store: ci/reference.json
  sonar:
    url: https://sonar.example.com
    token: ${COVSTATUS_TEST_TOKEN}
comment:
  mode: local
  baseURL: https://ci.example.com
  provider: bitbucket
`
	t.Setenv("COVSTATUS_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := domain.ThresholdConfig{Yellow: 50, Green: 75, NegativeCoverageIsRed: true}
	if cfg.Thresholds != want {
		t.Fatalf("thresholds = %+v, want %+v", cfg.Thresholds, want)
	}
	if !cfg.Aggregation.UseAggregates {
		t.Fatal("expected useAggregates")
	}
	if cfg.Jacoco.Counter != "BRANCH" {
		t.Fatalf("expected BRANCH counter, got %q", cfg.Jacoco.Counter)
	}
	if !cfg.Reports.DisableSimpleCov || cfg.Reports.OnError != application.ErrorPolicySkip {
		t.Fatalf("unexpected reports config %+v", cfg.Reports)
	}
	if len(cfg.Reports.Patterns) != 1 || cfg.Reports.Patterns[0] != "**/reports/*.xml" {
		t.Fatalf("unexpected patterns %v", cfg.Reports.Patterns)
	}
	if cfg.Reference.Store != "ci/reference.json" {
		t.Fatalf("unexpected store %q", cfg.Reference.Store)
	}
	if cfg.Reference.Sonar.Token != "s3cret" || !cfg.Reference.Sonar.Enabled() {
		t.Fatalf("unexpected sonar config %+v", cfg.Reference.Sonar)
	}
	if cfg.Comment.Mode != domain.CommentLocal || cfg.Comment.Provider != application.ProviderBitbucket {
		t.Fatalf("unexpected comment config %+v", cfg.Comment)
	}
}

func TestLoadConfig_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("thresholds:\n  green: 95\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Thresholds.Yellow != domain.DefaultYellowThreshold || cfg.Thresholds.Green != 95 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Reference.Store != ".covstatus/reference.json" {
		t.Fatalf("expected default store, got %q", cfg.Reference.Store)
	}
	if cfg.Comment.Mode != domain.CommentShields || cfg.Reports.OnError != application.ErrorPolicyFail {
		t.Fatalf("expected defaults, got %+v / %+v", cfg.Comment, cfg.Reports)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "thresholds: [",
		"yellow above":   "thresholds: {yellow: 95, green: 90}",
		"out of range":   "thresholds: {green: 120}",
		"bad counter":    "jacoco: {counter: METHOD}",
		"bad error mode": "reports: {onError: ignore}",
		"bad comment":    "comment: {mode: inline}",
		"bad provider":   "comment: {provider: gitea}",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(content)); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}

func TestLoader_Exists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Loader{}.Exists(filepath.Join(dir, DefaultPath))
	if err != nil || ok {
		t.Fatalf("expected missing file, got %v %v", ok, err)
	}

	path := filepath.Join(dir, DefaultPath)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = Loader{}.Exists(path)
	if err != nil || !ok {
		t.Fatalf("expected existing file, got %v %v", ok, err)
	}
}

func TestWriteConfig_RoundTrips(t *testing.T) {
	cfg := application.DefaultConfig()
	cfg.Thresholds.Yellow = 60
	cfg.Reports.Patterns = []string{"**/lcov-free.xml"}

	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, key := range []string{"thresholds:", "yellow: 60", "aggregation:", "onError: fail", "mode: shields"} {
		if !strings.Contains(out, key) {
			t.Fatalf("expected %q in output:\n%s", key, out)
		}
	}

	back, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Thresholds != cfg.Thresholds || back.Reports.Patterns[0] != "**/lcov-free.xml" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
