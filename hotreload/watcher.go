// Package hotreload watches shader directories and raises a reload request
// when sources change. The render loop polls the request between frames;
// nothing here touches the GPU.
package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultExtensions are the file suffixes that trigger a reload.
var DefaultExtensions = []string{".fs", ".vs", ".glsl", ".frag", ".vert"}

// Watcher debounces file changes under a directory tree into a single
// pending reload request.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	root     string
	exts     []string
	debounce time.Duration

	started  atomic.Bool
	pending  atomic.Bool
	requests chan struct{}
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the tree must be quiet before a request is raised.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions replaces DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) { w.exts = exts }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		logger:   zap.NewNop(),
		watcher:  fw,
		root:     root,
		exts:     DefaultExtensions,
		debounce: 150 * time.Millisecond,
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start adds every directory under root and runs the event loop until ctx
// is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			w.logger.Debug("watching shader directory", zap.String("path", path))
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add directories to watch: %w", err)
	}
	w.logger.Info("watching shaders for changes",
		zap.String("root", w.root),
		zap.Duration("debounce", w.debounce))

	w.started.Store(true)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	go func() {
		defer close(w.done)
		defer timer.Stop()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					w.addIfDir(event.Name)
				}
				if w.relevant(event) {
					w.logger.Debug("shader change detected",
						zap.String("file", event.Name),
						zap.String("op", event.Op.String()))
					timer.Reset(w.debounce)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("watcher error", zap.Error(err))
			case <-timer.C:
				w.raise()
			case <-ctx.Done():
				w.logger.Debug("stopping shader watcher")
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("cannot watch new directory", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, e := range w.exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) raise() {
	w.pending.Store(true)
	select {
	case w.requests <- struct{}{}:
	default:
	}
	w.logger.Info("shader reload requested", zap.String("root", w.root))
}

// Pending reports and clears the reload request. It is meant to be polled
// once per frame.
func (w *Watcher) Pending() bool {
	if !w.pending.Swap(false) {
		return false
	}
	select {
	case <-w.requests:
	default:
	}
	return true
}

// Requests delivers one value per debounced burst of changes, for callers
// that prefer to block rather than poll. At most one request is buffered.
func (w *Watcher) Requests() <-chan struct{} {
	return w.requests
}

// Stop closes the underlying watcher and waits for the event loop to exit
// if it was started.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started.Load() {
		<-w.done
	}
	return err
}
