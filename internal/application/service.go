package application

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// Service wires the ports used by every covstatus operation.
type Service struct {
	ConfigLoader ConfigLoader
	Finder       ReportFinder
	Parser       ReportParser
	Reporter     Reporter
	Icons        IconRenderer
	// StoreFactory opens the reference store at the configured path.
	StoreFactory func(path string) ReferenceStore
	// SonarFactory builds the Sonar lookup when a server is configured.
	SonarFactory   func(cfg SonarConfig) ReferenceLookup
	PRClients      map[PRProvider]PRClient
	DetectProvider func(repoURL string) PRProvider
	Out            io.Writer
	Now            func() time.Time
}

func (s *Service) collectHandler() *CollectHandler {
	return &CollectHandler{
		ConfigLoader: s.ConfigLoader,
		Finder:       s.Finder,
		Parser:       s.Parser,
		Out:          s.Out,
	}
}

func (s *Service) compareHandler() *CompareHandler {
	return &CompareHandler{
		ConfigLoader:   s.ConfigLoader,
		Collector:      s.collectHandler(),
		Store:          s.StoreFactory,
		Sonar:          s.SonarFactory,
		PRClients:      s.PRClients,
		DetectProvider: s.DetectProvider,
		Out:            s.Out,
	}
}

// Collect aggregates the coverage of the selected reports.
func (s *Service) Collect(ctx context.Context, opts CollectOptions) (CollectResult, error) {
	return s.collectHandler().Collect(ctx, opts)
}

// CollectAndReport collects and writes the result with the Reporter.
func (s *Service) CollectAndReport(ctx context.Context, opts CollectOptions, format OutputFormat) (CollectResult, error) {
	result, err := s.Collect(ctx, opts)
	if err != nil {
		return result, err
	}
	return result, s.Reporter.WriteCollect(s.Out, result, format)
}

// Compare compares the current coverage with the reference.
func (s *Service) Compare(ctx context.Context, opts CompareOptions) (CompareResult, error) {
	return s.compareHandler().Compare(ctx, opts)
}

// CompareAndReport compares and writes the result with the Reporter. The
// result is written even when a strict publish failed.
func (s *Service) CompareAndReport(ctx context.Context, opts CompareOptions) (CompareResult, error) {
	result, err := s.Compare(ctx, opts)
	if err != nil && !errors.Is(err, ErrPublish) {
		return result, err
	}
	if werr := s.Reporter.Write(s.Out, result, outputOrText(opts.Output)); werr != nil {
		return result, werr
	}
	return result, err
}

// Record stores the current coverage as reference.
func (s *Service) Record(ctx context.Context, opts RecordOptions) (RecordResult, error) {
	h := &RecordHandler{
		ConfigLoader: s.ConfigLoader,
		Collector:    s.collectHandler(),
		Store:        s.StoreFactory,
		Out:          s.Out,
		Now:          s.Now,
	}
	return h.Record(ctx, opts)
}

// IconSource returns an icon handler using the thresholds of the config at
// configPath.
func (s *Service) IconSource(configPath string) (*IconHandler, error) {
	cfg, err := loadConfig(s.ConfigLoader, configPath)
	if err != nil {
		return nil, err
	}
	return &IconHandler{
		Renderer:   s.Icons,
		Thresholds: cfg.Thresholds,
		PlainGreen: cfg.Comment.PlainGreen,
	}, nil
}

// Watch re-runs the comparison whenever a report changes.
func (s *Service) Watch(ctx context.Context, opts WatchOptions, watcher FileWatcher, callback WatchCallback) error {
	h := &WatchHandler{Compare: s.compareHandler()}
	return h.Watch(ctx, opts, watcher, callback)
}

// Config returns the effective configuration at path.
func (s *Service) Config(path string) (Config, error) {
	return loadConfig(s.ConfigLoader, path)
}

func outputOrText(format OutputFormat) OutputFormat {
	if format == "" {
		return OutputText
	}
	return format
}

// References returns every entry of the configured reference store.
func (s *Service) References(configPath string) (domain.References, error) {
	cfg, err := loadConfig(s.ConfigLoader, configPath)
	if err != nil {
		return domain.References{}, err
	}
	if s.StoreFactory == nil || cfg.Reference.Store == "" {
		return domain.References{}, nil
	}
	return s.StoreFactory(cfg.Reference.Store).Load()
}
