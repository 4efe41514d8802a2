package application

import (
	"context"
	"fmt"
)

// WatchCallback is called after each comparison in watch mode.
type WatchCallback func(run int, result CompareResult, err error)

// WatchHandler handles watch mode operations.
type WatchHandler struct {
	Compare *CompareHandler
}

// Watch compares once, then again every time a report below opts.Root is
// rewritten, until ctx is done or the watcher stops.
func (h *WatchHandler) Watch(ctx context.Context, opts WatchOptions, watcher FileWatcher, callback WatchCallback) error {
	root := opts.Root
	if root == "" {
		root = "."
	}
	if err := watcher.WatchDir(root); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	// watch mode never publishes
	compareOpts := opts.CompareOptions
	compareOpts.Publish = false

	runNumber := 1
	result, runErr := h.Compare.Compare(ctx, compareOpts)
	if callback != nil {
		callback(runNumber, result, runErr)
	}

	events := watcher.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			runNumber++
			result, runErr := h.Compare.Compare(ctx, compareOpts)
			if callback != nil {
				callback(runNumber, result, runErr)
			}
		}
	}
}
