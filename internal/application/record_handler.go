package application

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// RecordHandler stores the collected coverage as the reference of a
// repository branch, typically from the build of a merged commit.
type RecordHandler struct {
	ConfigLoader ConfigLoader
	Collector    *CollectHandler
	Store        func(path string) ReferenceStore
	Out          io.Writer
	Now          func() time.Time
}

func (h *RecordHandler) Record(ctx context.Context, opts RecordOptions) (RecordResult, error) {
	if opts.RepoURL == "" {
		return RecordResult{}, ErrNoRepository
	}
	cfg, err := loadConfig(h.ConfigLoader, opts.ConfigPath)
	if err != nil {
		return RecordResult{}, err
	}
	if cfg.Reference.Store == "" || h.Store == nil {
		return RecordResult{}, fmt.Errorf("no reference store configured")
	}

	collected, err := h.Collector.collect(ctx, cfg, opts.CollectOptions)
	if err != nil {
		return RecordResult{}, err
	}

	store := h.Store(cfg.Reference.Store)
	refs, err := store.Load()
	if err != nil {
		return RecordResult{}, fmt.Errorf("load references: %w", err)
	}

	key := domain.ReferenceKey(opts.RepoURL, stripOrigin(opts.Branch))
	previous, existed := refs.Lookup(key)
	entry := domain.ReferenceEntry{
		Key:       key,
		Coverage:  domain.RoundFourAfterDigit(collected.Coverage),
		Commit:    opts.Commit,
		UpdatedAt: h.now().UTC(),
	}
	if err := store.Put(entry); err != nil {
		return RecordResult{}, fmt.Errorf("store reference: %w", err)
	}
	logf(h.Out, "recorded coverage %s for %s", domain.FormatWholeNoSign(entry.Coverage), key)

	events := domain.NewEventCollector()
	for _, e := range collected.Events {
		events.Record(e)
	}
	events.Record(domain.NewReferenceRecordedEvent(key, previous.Coverage, entry.Coverage))

	return RecordResult{
		Entry:    entry,
		Previous: previous.Coverage,
		Existed:  existed,
		Events:   events.Events(),
	}, nil
}

func (h *RecordHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
