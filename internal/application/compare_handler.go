package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// Reference sources reported in CompareResult.ReferenceSource.
const (
	SourceExplicit = "explicit"
	SourceSonar    = "sonar"
	SourceStore    = "store"
	SourceNone     = "none"
)

// ErrPublish wraps a failure to post the coverage comment. It is only
// returned under CompareOptions.StrictPublish.
var ErrPublish = errors.New("publish coverage comment")

// CompareHandler compares the collected coverage with a reference value and
// optionally publishes the result as a pull request comment.
type CompareHandler struct {
	ConfigLoader ConfigLoader
	Collector    *CollectHandler
	// Store opens the reference file configured under reference.store.
	Store func(path string) ReferenceStore
	// Sonar builds a lookup for the configured Sonar server.
	Sonar          func(cfg SonarConfig) ReferenceLookup
	PRClients      map[PRProvider]PRClient
	DetectProvider func(repoURL string) PRProvider
	Out            io.Writer
}

// Compare runs the comparison. A build result other than SUCCESS skips it.
func (h *CompareHandler) Compare(ctx context.Context, opts CompareOptions) (CompareResult, error) {
	if red(opts.BuildResult) {
		logf(h.Out, SkipMessage)
		return CompareResult{Skipped: true}, nil
	}

	cfg, err := loadConfig(h.ConfigLoader, opts.ConfigPath)
	if err != nil {
		return CompareResult{}, err
	}

	collected, err := h.Collector.collect(ctx, cfg, opts.CollectOptions)
	if err != nil {
		return CompareResult{}, err
	}

	reference, source, err := h.reference(ctx, cfg, opts)
	if err != nil {
		return CompareResult{}, err
	}

	msg := domain.NewMessage(collected.Coverage, reference, label(cfg, opts))
	tier := msg.Color(cfg.Thresholds)
	baseURL := iconBaseURL(cfg, opts)

	events := domain.NewEventCollector()
	for _, e := range collected.Events {
		events.Record(e)
	}
	events.Record(domain.NewCoverageComparedEvent(msg, tier))

	result := CompareResult{
		Coverage:         msg.Coverage(),
		Reference:        msg.Reference(),
		ReferenceSource:  source,
		Label:            msg.Label(),
		Change:           msg.Change(),
		Percent:          domain.ToPercent(msg.Coverage()),
		ReferencePercent: domain.ToPercent(msg.Reference()),
		Color:            tier.Token(cfg.Comment.PlainGreen),
		Console:          msg.Console(),
		Icon:             msg.Icon(),
		Comment: msg.Comment(domain.CommentOptions{
			Mode:       cfg.Comment.Mode,
			BaseURL:    baseURL,
			BuildURL:   opts.BuildURL,
			Thresholds: cfg.Thresholds,
			PlainGreen: cfg.Comment.PlainGreen,
		}),
		Collect: collected,
		Events:  events.Events(),
	}

	if opts.Publish {
		published, err := h.publish(ctx, cfg, opts, result.Comment)
		if err != nil {
			if opts.StrictPublish {
				return result, fmt.Errorf("%w: %w", ErrPublish, err)
			}
			logf(h.Out, "couldn't add comment to pull request #%d: %v", opts.PRNumber, err)
		}
		result.Published = published
	}
	return result, nil
}

// iconBaseURL resolves the root of the local icon endpoint: the explicit
// option, the configured one, then the Jenkins root of the build URL.
func iconBaseURL(cfg Config, opts CompareOptions) string {
	if opts.BaseURL != "" {
		return opts.BaseURL
	}
	if cfg.Comment.BaseURL != "" {
		return cfg.Comment.BaseURL
	}
	if opts.BuildURL == "" {
		return ""
	}
	root, err := domain.JenkinsRoot(opts.BuildURL)
	if err != nil {
		return ""
	}
	return root
}

func red(buildResult string) bool {
	r := strings.TrimSpace(buildResult)
	return r != "" && !strings.EqualFold(r, "SUCCESS")
}

// label picks the reference name shown in messages: the explicit label,
// the configured one, then the target branch.
func label(cfg Config, opts CompareOptions) string {
	if opts.Label != "" {
		return opts.Label
	}
	if cfg.Reference.Label != "" {
		return cfg.Reference.Label
	}
	return stripOrigin(opts.Branch)
}

// reference resolves the reference coverage. Lookup failures are logged and
// yield 0 so a missing reference never fails the build.
func (h *CompareHandler) reference(ctx context.Context, cfg Config, opts CompareOptions) (domain.CoverageRatio, string, error) {
	if opts.Reference != nil {
		return *opts.Reference, SourceExplicit, nil
	}

	if cfg.Reference.Sonar.Enabled() && h.Sonar != nil {
		coverage, err := h.Sonar(cfg.Reference.Sonar).Coverage(ctx, opts.Repo)
		if err != nil {
			logf(h.Out, "sonar reference for %s unavailable: %v", opts.Repo, err)
			return 0, SourceNone, nil
		}
		return coverage, SourceSonar, nil
	}

	if h.Store == nil || cfg.Reference.Store == "" || opts.RepoURL == "" {
		return 0, SourceNone, nil
	}
	refs, err := h.Store(cfg.Reference.Store).Load()
	if err != nil {
		logf(h.Out, "reference store %s unreadable: %v", cfg.Reference.Store, err)
		return 0, SourceNone, nil
	}

	branch := stripOrigin(opts.Branch)
	key := domain.ReferenceKey(opts.RepoURL, branch)
	if entry, ok := refs.Lookup(key); ok {
		return entry.Coverage, SourceStore, nil
	}
	// entries recorded without a branch belong to master
	if branch == "" || branch == domain.DefaultReferenceLabel {
		if entry, ok := refs.Lookup(opts.RepoURL); ok {
			return entry.Coverage, SourceStore, nil
		}
	}
	logf(h.Out, "no reference coverage recorded for %s", key)
	return 0, SourceNone, nil
}

// publish creates the coverage comment, or updates the one left by an
// earlier build of the same pull request.
func (h *CompareHandler) publish(ctx context.Context, cfg Config, opts CompareOptions, body string) (*PRCommentResult, error) {
	if opts.PRNumber <= 0 {
		return nil, fmt.Errorf("pull request number required to publish a comment")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("repository owner and name required to publish a comment")
	}

	provider := h.provider(cfg, opts)
	client, ok := h.PRClients[provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no pull request client configured for %s", provider)
	}

	existing, err := client.FindCoverageComment(ctx, opts.Owner, opts.Repo, opts.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("find coverage comment: %w", err)
	}
	if existing > 0 {
		if err := client.UpdateComment(ctx, opts.Owner, opts.Repo, opts.PRNumber, existing, body); err != nil {
			return nil, fmt.Errorf("update coverage comment: %w", err)
		}
		logf(h.Out, "updated coverage comment %d on pull request %d", existing, opts.PRNumber)
		return &PRCommentResult{CommentID: existing}, nil
	}

	id, url, err := client.CreateComment(ctx, opts.Owner, opts.Repo, opts.PRNumber, body)
	if err != nil {
		return nil, fmt.Errorf("create coverage comment: %w", err)
	}
	logf(h.Out, "created coverage comment %d on pull request %d", id, opts.PRNumber)
	return &PRCommentResult{CommentID: id, CommentURL: url, Created: true}, nil
}

func (h *CompareHandler) provider(cfg Config, opts CompareOptions) PRProvider {
	provider := opts.Provider
	if provider == "" || provider == ProviderAuto {
		provider = cfg.Comment.Provider
	}
	if provider == "" || provider == ProviderAuto {
		if h.DetectProvider != nil {
			return h.DetectProvider(opts.RepoURL)
		}
		return ProviderGitHub
	}
	return provider
}
