package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/autodetect"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/badge"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/bitbucket"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/ciinfo"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/config"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/discovery"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/github"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/gitinfo"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/gitlab"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/iconserver"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/reference"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/report"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/sonar"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/watcher"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/wizard"
	"github.com/felixgeelhaar/covstatus/internal/mcp"
)

type Service interface {
	mcp.Service
	CollectAndReport(ctx context.Context, opts application.CollectOptions, format application.OutputFormat) (application.CollectResult, error)
	CompareAndReport(ctx context.Context, opts application.CompareOptions) (application.CompareResult, error)
	IconSource(configPath string) (*application.IconHandler, error)
	Watch(ctx context.Context, opts application.WatchOptions, watcher application.FileWatcher, callback application.WatchCallback) error
}

var (
	initWizard = wizard.Run
	getenv     = os.Getenv
	serveIcons = func(ctx context.Context, icons iconserver.IconSource, out io.Writer, addr string) error {
		return iconserver.New(icons, out).ListenAndServe(ctx, addr)
	}
	runMCP = func(ctx context.Context, svc mcp.Service, cfg mcp.Config) error {
		return mcp.New(svc, cfg, Version).Run(ctx)
	}
	localEnv = fromLocalGit
)

func Run(args []string, stdout, stderr io.Writer, svc Service) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	ctx := context.Background()

	switch args[1] {
	case "collect":
		fs := flag.NewFlagSet("collect", flag.ExitOnError)
		collect := collectFlags(fs)
		output := outputFlags(fs)
		_ = fs.Parse(args[2:])
		opts, err := collect.options()
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		_, err = svc.CollectAndReport(ctx, opts, *output)
		return exitCode(err, 3, stderr)
	case "compare":
		fs := flag.NewFlagSet("compare", flag.ExitOnError)
		cmp := compareFlags(fs)
		_ = fs.Parse(args[2:])
		opts, err := cmp.options(localEnv(ctx, ciinfo.Read(getenv)))
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		_, err = svc.CompareAndReport(ctx, opts)
		return exitCode(err, 3, stderr)
	case "record":
		fs := flag.NewFlagSet("record", flag.ExitOnError)
		collect := collectFlags(fs)
		repoURL := fs.String("repo-url", "", "Repository URL the reference is stored under (default: from CI environment)")
		branch := fs.String("branch", "", "Branch the coverage belongs to (default: from CI environment)")
		commit := fs.String("commit", "", "Commit SHA of the measured build (default: from CI environment)")
		_ = fs.Parse(args[2:])
		collectOpts, err := collect.options()
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		env := localEnv(ctx, ciinfo.Read(getenv))
		url, err := repoURLOrEnv(*repoURL, env)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		result, err := svc.Record(ctx, application.RecordOptions{
			CollectOptions: collectOpts,
			RepoURL:        url,
			Branch:         coalesce(*branch, env.TargetBranch),
			Commit:         coalesce(*commit, env.Commit),
		})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		fmt.Fprintf(stdout, "Reference %s recorded for %s\n", domain.FormatWholeNoSign(result.Entry.Coverage), result.Entry.Key)
		return 0
	case "icon":
		fs := flag.NewFlagSet("icon", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		coverage := fs.Float64("coverage", 0, "Current coverage ratio (0-1)")
		ref := fs.Float64("reference", 0, "Reference coverage ratio (0-1)")
		color := fs.String("color", "", "Icon color: red|yellow|brightgreen|green or #rrggbb (default: from thresholds)")
		label := fs.String("label", "", "Reference label (default: master)")
		output := fs.String("output", "-", "Output file path, - for stdout")
		_ = fs.Parse(args[2:])
		icons, err := svc.IconSource(*configPath)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		svg, err := icons.Icon(application.IconOptions{Coverage: *coverage, Reference: *ref, Color: *color, Label: *label})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		if err := writeOutput(*output, svg, stdout); err != nil {
			return exitCode(err, 3, stderr)
		}
		return 0
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		addr := fs.String("addr", ":8080", "Listen address")
		_ = fs.Parse(args[2:])
		icons, err := svc.IconSource(*configPath)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return exitCode(serveIcons(ctx, icons, stdout, *addr), 3, stderr)
	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		cmp := compareFlags(fs)
		clearScreen := fs.Bool("clear", false, "Clear the terminal before each run")
		_ = fs.Parse(args[2:])
		opts, err := cmp.options(localEnv(ctx, ciinfo.Read(getenv)))
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		return runWatch(ctx, stdout, stderr, svc, application.WatchOptions{CompareOptions: opts, Clear: *clearScreen})
	case "init":
		fs := flag.NewFlagSet("init", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		force := fs.Bool("force", false, "Overwrite existing config file")
		noInteractive := fs.Bool("no-interactive", false, "Skip the interactive init wizard")
		root := fs.String("root", ".", "Workspace inspected for build files")
		_ = fs.Parse(args[2:])
		cfg, err := svc.Config(*configPath)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
			if found := (autodetect.Detector{Root: *root}).Detect(); len(found) > 0 {
				cfg = autodetect.Apply(cfg, found)
				fmt.Fprintf(stdout, "Detected %s\n", joinEcosystems(found))
			}
		}
		if !*noInteractive {
			var confirmed bool
			cfg, confirmed, err = initWizard(cfg, stdout, os.Stdin)
			if err != nil {
				return exitCode(err, 5, stderr)
			}
			if !confirmed {
				fmt.Fprintln(stdout, "Init cancelled; no configuration written.")
				return 0
			}
		}
		if err := writeConfigFile(*configPath, cfg, stdout, *force); err != nil {
			return exitCode(err, 2, stderr)
		}
		return 0
	case "mcp":
		fs := flag.NewFlagSet("mcp", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		root := fs.String("root", ".", "Workspace searched for reports")
		_ = fs.Parse(args[2:])
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return exitCode(runMCP(ctx, svc, mcp.Config{ConfigPath: *configPath, Root: *root}), 3, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "covstatus %s (commit %s, built %s)\n", Version, Commit, Date)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

// BuildService wires the production adapters.
func BuildService(out io.Writer) *application.Service {
	hc := httpClient()
	clients := map[application.PRProvider]application.PRClient{
		application.ProviderGitHub: github.NewClientWithHTTP("", hc, getenv("GITHUB_API_URL")),
		application.ProviderGitLab: gitlab.NewClientWithHTTP("", hc, coalesce(getenv("GITLAB_API_URL"), getenv("CI_API_V4_URL"))),
	}
	// Bitbucket Server needs BITBUCKET_URL
	if bb, err := bitbucket.NewClientWithHTTP(getenv("BITBUCKET_URL"), bitbucket.CredentialsFromEnv(), hc); err == nil {
		clients[application.ProviderBitbucket] = bb
	}

	return &application.Service{
		ConfigLoader:   config.Loader{},
		Finder:         discovery.New(),
		Parser:         parsers.NewRegistry(),
		Reporter:       report.Writer{},
		Icons:          badge.NewRenderer(),
		StoreFactory:   func(path string) application.ReferenceStore { return reference.NewFileStore(path) },
		SonarFactory:   sonarLookup,
		PRClients:      clients,
		DetectProvider: ciinfo.DetectProvider,
		Out:            out,
	}
}

func sonarLookup(cfg application.SonarConfig) application.ReferenceLookup {
	opts := []sonar.Option{sonar.WithHTTPClient(httpClient())}
	switch {
	case cfg.Token != "":
		opts = append(opts, sonar.WithToken(cfg.Token))
	case cfg.Login != "":
		opts = append(opts, sonar.WithBasicAuth(cfg.Login, cfg.Password))
	}
	return sonar.NewClient(cfg.URL, opts...)
}

func httpClient() *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: userAgentTransport{base: http.DefaultTransport},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent())
	return t.base.RoundTrip(req)
}

type collectFlagSet struct {
	configPath *string
	root       *string
	reports    *stringList
	format     *string
}

func collectFlags(fs *flag.FlagSet) collectFlagSet {
	reports := &stringList{}
	fs.Var(reports, "report", "Report file (repeatable); skips the workspace scan")
	return collectFlagSet{
		configPath: fs.String("config", config.DefaultPath, "Config file path"),
		root:       fs.String("root", ".", "Workspace searched for reports"),
		reports:    reports,
		format:     fs.String("format", "", "Format of --report files: "+supportedFormats()+" (default: detect)"),
	}
}

// supportedFormats lists the formats the parser registry accepts.
func supportedFormats() string {
	formats := parsers.NewRegistry().SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}

func (c collectFlagSet) options() (application.CollectOptions, error) {
	opts := application.CollectOptions{
		ConfigPath: *c.configPath,
		Root:       *c.root,
		Reports:    *c.reports,
	}
	if *c.format != "" {
		format, err := domain.ParseReportFormat(*c.format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	return opts, nil
}

type compareFlagSet struct {
	collect     collectFlagSet
	output      *application.OutputFormat
	repoURL     *string
	branch      *string
	label       *string
	reference   *string
	buildURL    *string
	baseURL     *string
	buildResult *string
	publish     *bool
	strict      *bool
	pr          *int
	owner       *string
	repo        *string
	provider    *string
}

func compareFlags(fs *flag.FlagSet) compareFlagSet {
	return compareFlagSet{
		collect:     collectFlags(fs),
		output:      outputFlags(fs),
		repoURL:     fs.String("repo-url", "", "Repository URL the reference is stored under (default: from CI environment)"),
		branch:      fs.String("branch", "", "Target branch (default: from CI environment, then master)"),
		label:       fs.String("label", "", "Reference label shown in messages (default: target branch)"),
		reference:   fs.String("reference", "", "Explicit reference coverage ratio (0-1); skips every lookup"),
		buildURL:    fs.String("build-url", "", "Build URL linked from the comment (default: BUILD_URL)"),
		baseURL:     fs.String("base-url", "", "Root URL of the icon endpoint in local comment mode (default: comment.baseURL, then the Jenkins root of the build URL)"),
		buildResult: fs.String("build-result", "", "Build result; anything but SUCCESS skips the comparison (default: BUILD_RESULT)"),
		publish:     fs.Bool("publish", false, "Create or update the pull request comment"),
		strict:      fs.Bool("strict-publish", false, "Exit with an error when the pull request comment cannot be posted"),
		pr:          fs.Int("pr", 0, "Pull request number (default: from CI environment)"),
		owner:       fs.String("owner", "", "Repository owner or Bitbucket project key (default: from repository URL)"),
		repo:        fs.String("repo", "", "Repository name (default: from repository URL)"),
		provider:    fs.String("provider", string(application.ProviderAuto), "Pull request provider: github|bitbucket|gitlab|auto"),
	}
}

// options merges the flags with the CI environment. Flags win.
func (c compareFlagSet) options(env ciinfo.Env) (application.CompareOptions, error) {
	collect, err := c.collect.options()
	if err != nil {
		return application.CompareOptions{}, err
	}

	opts := application.CompareOptions{
		CollectOptions: collect,
		Branch:         coalesce(*c.branch, env.TargetBranch),
		Label:          *c.label,
		BuildURL:       coalesce(*c.buildURL, env.BuildURL),
		BaseURL:        *c.baseURL,
		BuildResult:    coalesce(*c.buildResult, getenv("BUILD_RESULT")),
		Publish:        *c.publish,
		StrictPublish:  *c.strict,
		PRNumber:       *c.pr,
		Owner:          *c.owner,
		Repo:           *c.repo,
		Output:         *c.output,
	}

	provider, err := parseProvider(*c.provider)
	if err != nil {
		return opts, err
	}
	opts.Provider = provider

	if *c.reference != "" {
		ref, err := strconv.ParseFloat(*c.reference, 64)
		if err != nil || ref < 0 || ref > 1 {
			return opts, fmt.Errorf("invalid reference %q: want a ratio between 0 and 1", *c.reference)
		}
		opts.Reference = &ref
	}

	if opts.PRNumber == 0 {
		opts.PRNumber = env.PRNumber
	}

	gitURL := coalesce(*c.repoURL, env.GitURL)
	if gitURL == "" {
		return opts, nil
	}
	if opts.RepoURL, err = ciinfo.RepoURL(gitURL); err != nil {
		return opts, err
	}
	if opts.Owner == "" || opts.Repo == "" {
		if owner, repo, err := ciinfo.OwnerRepo(gitURL); err == nil {
			opts.Owner = coalesce(opts.Owner, owner)
			opts.Repo = coalesce(opts.Repo, repo)
		}
	}
	return opts, nil
}

// fromLocalGit fills the repository URL and commit from the working
// directory checkout when no CI variable names them.
func fromLocalGit(ctx context.Context, env ciinfo.Env) ciinfo.Env {
	if env.GitURL != "" && env.Commit != "" {
		return env
	}
	git := gitinfo.Git{Dir: "."}
	if env.GitURL == "" {
		if remote, err := git.RemoteURL(ctx); err == nil {
			env.GitURL = remote
		}
	}
	if env.Commit == "" {
		if sha, err := git.Head(ctx); err == nil {
			env.Commit = sha
		}
	}
	return env
}

func repoURLOrEnv(flagValue string, env ciinfo.Env) (string, error) {
	gitURL := coalesce(flagValue, env.GitURL)
	if gitURL == "" {
		return "", application.ErrNoRepository
	}
	return ciinfo.RepoURL(gitURL)
}

func parseProvider(value string) (application.PRProvider, error) {
	switch p := application.PRProvider(strings.ToLower(value)); p {
	case "", application.ProviderAuto:
		return application.ProviderAuto, nil
	case application.ProviderGitHub, application.ProviderBitbucket, application.ProviderGitLab:
		return p, nil
	default:
		return "", fmt.Errorf("invalid provider: %s", value)
	}
}

func outputFlags(fs *flag.FlagSet) *application.OutputFormat {
	output := application.OutputText
	fs.Var((*outputValue)(&output), "output", "Output format: text|json|brief")
	fs.Var((*outputValue)(&output), "o", "Output format: text|json|brief")
	return &output
}

type outputValue application.OutputFormat

func (o *outputValue) String() string { return string(*o) }

func (o *outputValue) Set(value string) error {
	switch value {
	case string(application.OutputText), string(application.OutputJSON), string(application.OutputBrief):
		*o = outputValue(value)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", value)
	}
}

// stringList implements flag.Value for repeatable flags
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func joinEcosystems(found []autodetect.Ecosystem) string {
	names := make([]string, len(found))
	for i, e := range found {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

func coalesce(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func writeConfigFile(path string, cfg application.Config, stdout io.Writer, force bool) error {
	if path == "-" {
		return config.Write(stdout, cfg)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return config.Write(file, cfg)
}

func writeOutput(path, content string, stdout io.Writer) error {
	if path == "-" || path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `covstatus <command>

Commands:
  collect  Aggregate the coverage reports of the workspace
  compare  Compare coverage with the reference and report the status
  record   Store the current coverage as reference
  icon     Render the coverage status icon as SVG
  serve    Serve the coverage status icon over HTTP
  watch    Re-run compare whenever a report changes
  init     Write a config file with the interactive wizard
  mcp      Run the MCP server on stdio
  version  Print version information`)
}

func exitCode(err error, code int, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err)
	return code
}

func runWatch(ctx context.Context, stdout, stderr io.Writer, svc Service, opts application.WatchOptions) int {
	cfg, err := svc.Config(opts.ConfigPath)
	if err != nil {
		return exitCode(err, 2, stderr)
	}
	globs := make([]string, 0, len(opts.Reports))
	if len(opts.Reports) > 0 {
		globs = append(globs, opts.Reports...)
	} else {
		for _, p := range application.DefaultPatterns(cfg) {
			globs = append(globs, p.Glob)
		}
	}

	w, err := watcher.New(
		watcher.WithDebounce(500*time.Millisecond),
		watcher.WithPatterns(globs...),
		watcher.WithErrorHandler(func(err error) {
			fmt.Fprintf(stderr, "[covstatus] watch error: %v\n", err)
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create watcher: %v\n", err)
		return 3
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(stdout, "Watching coverage reports... (Ctrl+C to stop)")

	callback := func(runNumber int, result application.CompareResult, runErr error) {
		if opts.Clear {
			fmt.Fprint(stdout, "\033[H\033[2J")
		}
		fmt.Fprintf(stdout, "\n--- Run #%d at %s ---\n", runNumber, time.Now().Format("15:04:05"))
		switch {
		case runErr != nil:
			fmt.Fprintf(stderr, "Comparison failed: %v\n", runErr)
		case result.Skipped:
			fmt.Fprintln(stdout, application.SkipMessage)
		default:
			fmt.Fprintln(stdout, result.Console)
		}
	}

	if err := svc.Watch(ctx, opts, w, callback); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(stderr, "watch error: %v\n", err)
		return 3
	}
	return 0
}
