package application

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// CollectHandler finds, parses and aggregates coverage reports.
type CollectHandler struct {
	ConfigLoader ConfigLoader
	Finder       ReportFinder
	Parser       ReportParser
	Out          io.Writer
	// Concurrency caps parallel report parsing; zero uses GOMAXPROCS.
	Concurrency int
}

type target struct {
	path     string
	format   domain.ReportFormat
	explicit bool
}

type outcome struct {
	measurement domain.Measurement
	format      domain.ReportFormat
	err         error
}

// Collect loads the config at opts.ConfigPath and aggregates the reports.
func (h *CollectHandler) Collect(ctx context.Context, opts CollectOptions) (CollectResult, error) {
	cfg, err := loadConfig(h.ConfigLoader, opts.ConfigPath)
	if err != nil {
		return CollectResult{}, err
	}
	return h.collect(ctx, cfg, opts)
}

func (h *CollectHandler) collect(ctx context.Context, cfg Config, opts CollectOptions) (CollectResult, error) {
	targets, err := h.targets(ctx, cfg, opts)
	if err != nil {
		return CollectResult{}, err
	}
	if len(targets) == 0 {
		return CollectResult{}, ErrNoReports
	}

	skip := cfg.Reports.OnError == ErrorPolicySkip
	jacoco := jacocoFormat(cfg)

	outcomes := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency())
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, format, err := h.measure(t, jacoco)
			outcomes[i] = outcome{measurement: m, format: format, err: err}
			if err != nil && !skip {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CollectResult{}, err
	}

	events := domain.NewEventCollector()
	var (
		measurements []domain.Measurement
		skipped      []SkippedReport
		failures     *multierror.Error
	)
	for i, o := range outcomes {
		if o.err != nil {
			failures = multierror.Append(failures, o.err)
			skipped = append(skipped, SkippedReport{Path: targets[i].path, Reason: o.err.Error()})
			events.Record(domain.NewReportSkippedEvent(targets[i].path, o.format, o.err))
			logf(h.Out, "skipping %s: %v", targets[i].path, o.err)
			continue
		}
		measurements = append(measurements, o.measurement)
	}
	if len(measurements) == 0 {
		return CollectResult{}, fmt.Errorf("no readable coverage reports: %w", failures.ErrorOrNil())
	}

	policy := domain.PolicyFor(cfg.Aggregation.UseAggregates)
	coverage, err := domain.Aggregate(measurements, policy)
	if err != nil {
		return CollectResult{}, err
	}

	return CollectResult{
		Coverage:     coverage,
		Percent:      domain.ToPercent(coverage),
		Policy:       policy,
		Measurements: measurements,
		Skipped:      skipped,
		Events:       events.Events(),
	}, nil
}

// targets lists the explicit reports, or scans the workspace when none are
// given.
func (h *CollectHandler) targets(ctx context.Context, cfg Config, opts CollectOptions) ([]target, error) {
	if len(opts.Reports) > 0 {
		out := make([]target, 0, len(opts.Reports))
		for _, p := range opts.Reports {
			out = append(out, target{path: p, format: opts.Format, explicit: opts.Format != ""})
		}
		return out, nil
	}

	locations, err := h.Finder.Find(ctx, opts.Root, DefaultPatterns(cfg))
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	out := make([]target, 0, len(locations))
	for _, loc := range locations {
		out = append(out, target{path: loc.Path, format: loc.Format, explicit: loc.Format != ""})
	}
	return out, nil
}

// measure reads and parses one report. A detected JaCoCo report is read
// with the configured counter; an explicitly named variant is kept.
func (h *CollectHandler) measure(t target, jacoco domain.ReportFormat) (domain.Measurement, domain.ReportFormat, error) {
	content, err := h.Finder.Read(t.path)
	if err != nil {
		return domain.Measurement{}, t.format, &domain.UnreadableReportError{Format: t.format, Path: t.path, Err: err}
	}

	format := t.format
	if format == "" {
		if detector, ok := h.Parser.(FormatDetector); ok && len(content) > 0 {
			detected, err := detector.DetectFormat(t.path, content)
			if err != nil {
				return domain.Measurement{}, format, fmt.Errorf("%s: %w", t.path, err)
			}
			format = detected
		}
	}
	if format.IsJacoco() && !t.explicit {
		format = jacoco
	}

	m, err := h.Parser.Parse(Report{Format: format, Path: t.path, Content: content})
	if err != nil {
		return domain.Measurement{}, format, err
	}
	return m, format, nil
}

func (h *CollectHandler) concurrency() int {
	if h.Concurrency > 0 {
		return h.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}
