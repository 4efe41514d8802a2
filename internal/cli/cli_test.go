package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/ciinfo"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/iconserver"
	"github.com/felixgeelhaar/covstatus/internal/mcp"
)

type fakeService struct {
	collectErr  error
	collectOpts application.CollectOptions
	collectFmt  application.OutputFormat
	compareErr  error
	compareOpts application.CompareOptions
	recordErr   error
	recordOpts  application.RecordOptions
	cfg         application.Config
	cfgErr      error
	icons       *application.IconHandler
	watchErr    error
}

func (f *fakeService) Collect(_ context.Context, opts application.CollectOptions) (application.CollectResult, error) {
	f.collectOpts = opts
	return application.CollectResult{}, f.collectErr
}

func (f *fakeService) CollectAndReport(_ context.Context, opts application.CollectOptions, format application.OutputFormat) (application.CollectResult, error) {
	f.collectOpts = opts
	f.collectFmt = format
	return application.CollectResult{}, f.collectErr
}

func (f *fakeService) Compare(_ context.Context, opts application.CompareOptions) (application.CompareResult, error) {
	f.compareOpts = opts
	return application.CompareResult{}, f.compareErr
}

func (f *fakeService) CompareAndReport(_ context.Context, opts application.CompareOptions) (application.CompareResult, error) {
	f.compareOpts = opts
	return application.CompareResult{}, f.compareErr
}

func (f *fakeService) Record(_ context.Context, opts application.RecordOptions) (application.RecordResult, error) {
	f.recordOpts = opts
	if f.recordErr != nil {
		return application.RecordResult{}, f.recordErr
	}
	return application.RecordResult{Entry: domain.ReferenceEntry{Key: domain.ReferenceKey(opts.RepoURL, opts.Branch), Coverage: 0.81}}, nil
}

func (f *fakeService) Config(string) (application.Config, error) {
	if f.cfgErr != nil {
		return application.Config{}, f.cfgErr
	}
	return f.cfg, nil
}

func (f *fakeService) References(string) (domain.References, error) {
	return domain.References{}, nil
}

func (f *fakeService) IconSource(string) (*application.IconHandler, error) {
	if f.icons == nil {
		return nil, errors.New("no icons")
	}
	return f.icons, nil
}

func (f *fakeService) Watch(_ context.Context, _ application.WatchOptions, _ application.FileWatcher, _ application.WatchCallback) error {
	return f.watchErr
}

type svgRenderer struct{}

func (svgRenderer) Render(message, color string) (string, error) {
	return "<svg>" + message + " " + color + "</svg>", nil
}

// withEnv replaces the environment lookup for the duration of a test and
// keeps the local checkout out of it.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	oldEnv, oldLocal := getenv, localEnv
	getenv = func(k string) string { return env[k] }
	localEnv = func(_ context.Context, e ciinfo.Env) ciinfo.Env { return e }
	t.Cleanup(func() {
		getenv = oldEnv
		localEnv = oldLocal
	})
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"covstatus"}, &out, &out, &fakeService{}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(out.String(), "compare") {
		t.Fatalf("expected usage, got %q", out.String())
	}
}

func TestRunUnknown(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "nope"}, &out, &out, &fakeService{}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "version"}, &out, &out, &fakeService{}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out.String(), "covstatus dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRunCollect(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer
	code := Run([]string{"covstatus", "collect", "--report", "a.xml", "--report", "b.xml", "--format", "clover", "-o", "brief"}, &out, &out, svc)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if len(svc.collectOpts.Reports) != 2 || svc.collectOpts.Format != domain.FormatClover || svc.collectFmt != application.OutputBrief {
		t.Fatalf("unexpected options %+v / %s", svc.collectOpts, svc.collectFmt)
	}
}

func TestRunCollectErrors(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "collect", "--format", "lcov"}, &out, &out, &fakeService{}); code != 2 {
		t.Fatalf("expected exit 2 for bad format, got %d", code)
	}
	svc := &fakeService{collectErr: application.ErrNoReports}
	if code := Run([]string{"covstatus", "collect"}, &out, &out, svc); code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunCompareReadsCIEnvironment(t *testing.T) {
	withEnv(t, map[string]string{
		"BUILD_URL":     "https://jenkins.example.com/job/app/job/PR-7/3/",
		"GIT_URL":       "https://stash.example.com/scm/prj/app.git",
		"CHANGE_ID":     "7",
		"CHANGE_TARGET": "origin/release",
		"BUILD_RESULT":  "SUCCESS",
	})
	svc := &fakeService{}
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "compare", "--publish"}, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}

	opts := svc.compareOpts
	if opts.RepoURL != "https://stash.example.com/scm/prj/app" {
		t.Errorf("unexpected repo URL %q", opts.RepoURL)
	}
	if opts.Owner != "prj" || opts.Repo != "app" || opts.PRNumber != 7 {
		t.Errorf("unexpected pull request %q/%q#%d", opts.Owner, opts.Repo, opts.PRNumber)
	}
	if opts.Branch != "release" || opts.BuildResult != "SUCCESS" || !opts.Publish {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.BaseURL != "" || opts.BuildURL != "https://jenkins.example.com/job/app/job/PR-7/3/" {
		t.Errorf("expected only the build URL from the environment, got base %q build %q", opts.BaseURL, opts.BuildURL)
	}
	if opts.StrictPublish {
		t.Error("expected lenient publish by default")
	}
	if opts.Provider != application.ProviderAuto {
		t.Errorf("expected auto provider, got %s", opts.Provider)
	}
}

func TestRunCompareFlagsWin(t *testing.T) {
	withEnv(t, map[string]string{"GIT_URL": "https://github.com/acme/web", "ghprbPullId": "3"})
	svc := &fakeService{}
	var out bytes.Buffer
	args := []string{"covstatus", "compare",
		"--reference", "0.5", "--pr", "9", "--owner", "other", "--provider", "github",
		"--label", "trunk", "--base-url", "https://icons.example.com", "--strict-publish", "-o", "json"}
	if code := Run(args, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	opts := svc.compareOpts
	if opts.Reference == nil || *opts.Reference != 0.5 {
		t.Errorf("expected explicit reference, got %v", opts.Reference)
	}
	if opts.PRNumber != 9 || opts.Owner != "other" || opts.Repo != "web" {
		t.Errorf("unexpected pull request %q/%q#%d", opts.Owner, opts.Repo, opts.PRNumber)
	}
	if opts.Label != "trunk" || opts.BaseURL != "https://icons.example.com" || opts.Output != application.OutputJSON {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Provider != application.ProviderGitHub {
		t.Errorf("expected github provider, got %s", opts.Provider)
	}
	if !opts.StrictPublish {
		t.Error("expected strict publish from the flag")
	}
}

func TestRunCompareInvalidFlags(t *testing.T) {
	withEnv(t, map[string]string{})
	var out bytes.Buffer
	for _, args := range [][]string{
		{"covstatus", "compare", "--reference", "1.5"},
		{"covstatus", "compare", "--reference", "abc"},
		{"covstatus", "compare", "--provider", "gitea"},
		{"covstatus", "compare", "--repo-url", "not a url"},
	} {
		if code := Run(args, &out, &out, &fakeService{}); code != 2 {
			t.Errorf("%v: expected exit 2, got %d", args[2:], code)
		}
	}
}

func TestRunCompareError(t *testing.T) {
	withEnv(t, map[string]string{})
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "compare"}, &out, &out, &fakeService{compareErr: errors.New("boom")}); code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunRecord(t *testing.T) {
	withEnv(t, map[string]string{"GIT_URL": "git@github.com:acme/web.git", "GIT_COMMIT": "abc123"})
	svc := &fakeService{}
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "record", "--branch", "main"}, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if svc.recordOpts.RepoURL != "git@github.com:acme/web" || svc.recordOpts.Commit != "abc123" || svc.recordOpts.Branch != "main" {
		t.Fatalf("unexpected options %+v", svc.recordOpts)
	}
	if !strings.Contains(out.String(), "Reference 81% recorded for git@github.com:acme/web#main") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunRecordErrors(t *testing.T) {
	withEnv(t, map[string]string{})
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "record"}, &out, &out, &fakeService{}); code != 2 {
		t.Fatalf("expected exit 2 without repository, got %d", code)
	}
	svc := &fakeService{recordErr: errors.New("locked")}
	if code := Run([]string{"covstatus", "record", "--repo-url", "https://github.com/acme/web"}, &out, &out, svc); code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunIcon(t *testing.T) {
	svc := &fakeService{icons: &application.IconHandler{Renderer: svgRenderer{}}}
	var out bytes.Buffer
	code := Run([]string{"covstatus", "icon", "--coverage", "0.92", "--reference", "0.7"}, &out, &out, svc)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if out.String() != "<svg>92% (+22.0%) vs master 70% brightgreen</svg>" {
		t.Fatalf("unexpected icon %q", out.String())
	}
}

func TestRunIconToFile(t *testing.T) {
	svc := &fakeService{icons: &application.IconHandler{Renderer: svgRenderer{}}}
	path := filepath.Join(t.TempDir(), "icon.svg")
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "icon", "--coverage", "0.5", "--color", "red", "--output", path}, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), " red</svg>") {
		t.Fatalf("unexpected icon %q", data)
	}
}

func TestRunIconError(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "icon"}, &out, &out, &fakeService{}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunServe(t *testing.T) {
	old := serveIcons
	defer func() { serveIcons = old }()
	var gotAddr string
	serveIcons = func(ctx context.Context, icons iconserver.IconSource, out io.Writer, addr string) error {
		gotAddr = addr
		return nil
	}

	svc := &fakeService{icons: &application.IconHandler{Renderer: svgRenderer{}}}
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "serve", "--addr", "127.0.0.1:9090"}, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if gotAddr != "127.0.0.1:9090" {
		t.Fatalf("unexpected address %q", gotAddr)
	}
}

func TestRunMCP(t *testing.T) {
	old := runMCP
	defer func() { runMCP = old }()
	var got mcp.Config
	runMCP = func(ctx context.Context, svc mcp.Service, cfg mcp.Config) error {
		got = cfg
		return nil
	}

	var out bytes.Buffer
	if code := Run([]string{"covstatus", "mcp", "--root", "services"}, &out, &out, &fakeService{}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got.Root != "services" || got.ConfigPath != ".covstatus.yaml" {
		t.Fatalf("unexpected config %+v", got)
	}
}

func TestRunWatchConfigError(t *testing.T) {
	withEnv(t, map[string]string{})
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "watch"}, &out, &out, &fakeService{cfgErr: errors.New("bad yaml")}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunWatchError(t *testing.T) {
	withEnv(t, map[string]string{})
	dir := t.TempDir()
	svc := &fakeService{cfg: application.DefaultConfig(), watchErr: errors.New("boom")}
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "watch", "--root", dir}, &out, &out, svc); code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunInitCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".covstatus.yaml")
	svc := &fakeService{cfg: application.DefaultConfig()}
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "init", "--config", path, "--no-interactive"}, &out, &out, svc); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	if code := Run([]string{"covstatus", "init", "--config", path, "--no-interactive"}, &out, &out, svc); code != 2 {
		t.Fatalf("expected exit 2 for existing file, got %d", code)
	}
}

func TestRunInitDetectsProject(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	path := filepath.Join(dir, ".covstatus.yaml")
	var out bytes.Buffer
	code := Run([]string{"covstatus", "init", "--config", path, "--root", dir, "--no-interactive"}, &out, &out, &fakeService{cfg: application.DefaultConfig()})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), "Detected python") {
		t.Fatalf("unexpected output %q", out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "coverage.xml") || !strings.Contains(string(data), "disableSimpleCov: true") {
		t.Fatalf("expected detected settings written:\n%s", data)
	}
}

func TestRunInitInteractiveBranch(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		cfg.Thresholds.Yellow = 60
		return cfg, true, nil
	}

	path := filepath.Join(t.TempDir(), ".covstatus.yaml")
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "init", "--config", path}, &out, &out, &fakeService{cfg: application.DefaultConfig()}); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "60") {
		t.Fatalf("expected wizard thresholds written:\n%s", data)
	}
}

func TestRunInitInteractiveCancelled(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		return cfg, false, nil
	}

	path := filepath.Join(t.TempDir(), ".covstatus.yaml")
	var out bytes.Buffer
	if code := Run([]string{"covstatus", "init", "--config", path}, &out, &out, &fakeService{}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected no config file")
	}
	if !strings.Contains(out.String(), "Init cancelled") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunInitWizardError(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		return cfg, false, errors.New("no tty")
	}

	var out bytes.Buffer
	if code := Run([]string{"covstatus", "init", "--config", filepath.Join(t.TempDir(), "x.yaml")}, &out, &out, &fakeService{}); code != 5 {
		t.Fatalf("expected exit 5, got %d", code)
	}
}

func TestFromLocalGitKeepsCIValues(t *testing.T) {
	env := ciinfo.Env{GitURL: "https://github.com/acme/web", Commit: "abc"}
	if got := fromLocalGit(context.Background(), env); got != env {
		t.Fatalf("expected CI values kept, got %+v", got)
	}
}

func TestWriteConfigFileStdout(t *testing.T) {
	var out bytes.Buffer
	if err := writeConfigFile("-", application.DefaultConfig(), &out, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(out.String(), "thresholds") {
		t.Fatalf("expected yaml output, got %q", out.String())
	}
}

func TestOutputValueSet(t *testing.T) {
	val := outputValue(application.OutputText)
	if err := val.Set("brief"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if val.String() != "brief" {
		t.Fatalf("expected brief, got %s", val.String())
	}
	if err := val.Set("html"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    application.PRProvider
		wantErr bool
	}{
		{"", application.ProviderAuto, false},
		{"auto", application.ProviderAuto, false},
		{"GitHub", application.ProviderGitHub, false},
		{"bitbucket", application.ProviderBitbucket, false},
		{"gitlab", application.ProviderGitLab, false},
		{"gitea", "", true},
	}
	for _, tt := range tests {
		got, err := parseProvider(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseProvider(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestStringListFlag(t *testing.T) {
	var list stringList
	_ = list.Set("a.xml")
	_ = list.Set("b.xml")
	if list.String() != "a.xml,b.xml" {
		t.Fatalf("unexpected list %q", list.String())
	}
}

func TestSupportedFormatsHelp(t *testing.T) {
	want := "cobertura|jacoco-line|jacoco-branch|jacoco-instruction|clover|simplecov"
	if got := supportedFormats(); got != want {
		t.Fatalf("supportedFormats() = %q, want %q", got, want)
	}

	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	collectFlags(fs)
	if usage := fs.Lookup("format").Usage; !strings.Contains(usage, want) {
		t.Fatalf("expected formats in --format help, got %q", usage)
	}
}

func TestBuildService(t *testing.T) {
	withEnv(t, map[string]string{})
	svc := BuildService(io.Discard)
	if svc.Parser == nil || svc.Finder == nil || svc.Reporter == nil || svc.Icons == nil {
		t.Fatalf("expected adapters wired: %+v", svc)
	}
	for _, p := range []application.PRProvider{application.ProviderGitHub, application.ProviderGitLab} {
		if _, ok := svc.PRClients[p]; !ok {
			t.Fatalf("expected %s client", p)
		}
	}
	lookup := sonarLookup(application.SonarConfig{URL: "https://sonar.example.com", Token: "t"})
	if lookup == nil {
		t.Fatal("expected sonar lookup")
	}
}

func TestHTTPClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := httpClient().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if got != "covstatus/dev" {
		t.Fatalf("unexpected user agent %q", got)
	}
}
