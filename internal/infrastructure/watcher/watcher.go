// Package watcher signals when coverage reports in a workspace are
// rewritten.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"
)

// Watcher monitors report files for changes.
type Watcher struct {
	watcher    *fsnotify.Watcher
	root       string
	debounce   time.Duration
	extensions []string
	patterns   []string
	onError    func(error)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for file change events. Coverage
// tools often write a report in several chunks.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithPatterns restricts events to files whose path relative to the watched
// root matches one of the doublestar globs.
func WithPatterns(patterns ...string) Option {
	return func(w *Watcher) {
		w.patterns = patterns
	}
}

// WithErrorHandler receives watch errors; they are dropped otherwise.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:    fsw,
		debounce:   500 * time.Millisecond,
		extensions: []string{".xml", ".json"},
		onError:    func(error) {},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// WatchDir adds a directory and its subdirectories to the watch list.
// Directories created later (e.g. build/) are picked up while Events runs.
func (w *Watcher) WatchDir(root string) error {
	w.root = root
	return w.addTree(root)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && skipDir(filepath.Base(path)) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func skipDir(base string) bool {
	return strings.HasPrefix(base, ".") || base == "vendor" || base == "node_modules"
}

// Events returns a channel that emits when relevant files change.
// The channel is debounced to avoid rapid successive triggers.
func (w *Watcher) Events(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

		var timer *time.Timer
		var timerCh <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if !skipDir(filepath.Base(event.Name)) {
							if err := w.addTree(event.Name); err != nil {
								w.onError(err)
							}
						}
						continue
					}
				}

				if !isWriteEvent(event.Op) || !w.isReport(event.Name) {
					continue
				}

				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C

			case <-timerCh:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
				timerCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.onError(err)
			}
		}
	}()

	return out
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isWriteEvent(op fsnotify.Op) bool {
	return op&fsnotify.Write == fsnotify.Write ||
		op&fsnotify.Create == fsnotify.Create
}

func (w *Watcher) isReport(path string) bool {
	if !w.hasRelevantExtension(path) {
		return false
	}
	if len(w.patterns) == 0 {
		return true
	}
	rel := path
	if w.root != "" {
		if r, err := filepath.Rel(w.root, path); err == nil {
			rel = r
		}
	}
	for _, p := range w.patterns {
		if ok, _ := doublestar.PathMatch(filepath.FromSlash(p), rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) hasRelevantExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
