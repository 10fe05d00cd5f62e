// Package watcher implements the Watcher capability: observing each
// watched template's base path and emitting debounced FileAdded events
// once a new file's size has been stable for a threshold duration.
//
// Follows pkg/mcp/resources.FileSystemResourceWatcher's shape: an
// fsnotify.Watcher wrapped in a run loop dispatching to callbacks, adapted
// from "watch arbitrary resource URIs" to "watch per-template base paths,
// debounced, depth-1, hidden files suppressed".
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/aios/organizer/internal/telemetry"
	"github.com/aios/organizer/internal/template"
)

// EventType distinguishes a delivered FileAdded from a subscription-level
// Error.
type EventType string

const (
	EventFileAdded EventType = "file_added"
	EventError     EventType = "error"
)

// Event is what the Watcher delivers on its Events channel.
type Event struct {
	Type     EventType
	Path     string
	FileName string
	Template *template.Template
	Err      error
}

// Options tunes the stability-window debounce.
type Options struct {
	StabilityThreshold time.Duration // default 2s
	PollInterval       time.Duration // default 100ms
}

func (o Options) withDefaults() Options {
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	return o
}

// Watcher subscribes to a set of template base paths and emits debounced
// FileAdded events, or an Error event scoped to one template on a
// subscription failure — a failed subscription never tears down its
// siblings.
type Watcher struct {
	fsw     *fsnotify.Watcher
	opts    Options
	logger  *logrus.Logger
	events  chan Event
	pending map[string]*pendingFile // path -> in-flight stability tracker
	pathTpl map[string]*template.Template
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type pendingFile struct {
	cancel context.CancelFunc
}

// New constructs a Watcher. Call Subscribe for each template, then Run to
// start the event loop.
func New(logger *logrus.Logger, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:     fsw,
		opts:    opts.withDefaults(),
		logger:  logger,
		events:  make(chan Event, 64),
		pending: make(map[string]*pendingFile),
		pathTpl: make(map[string]*template.Template),
	}, nil
}

// Events returns the channel Run delivers Event values on.
func (w *Watcher) Events() <-chan Event { return w.events }

// Subscribe adds t.BasePath to the watch set. A failure (unreadable path)
// is sent straight to the Events channel as an Error event rather than
// returned directly, so one bad template doesn't prevent Subscribe from
// registering the others.
func (w *Watcher) Subscribe(t *template.Template) {
	if err := w.fsw.Add(t.BasePath); err != nil {
		w.events <- Event{Type: EventError, Template: t, Err: err}
		return
	}
	w.mu.Lock()
	w.pathTpl[t.BasePath] = t
	w.mu.Unlock()
}

// Run processes fsnotify events until ctx is cancelled, closing Events
// when it returns.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)
	tracer := telemetry.Tracer("watcher")
	_, span := tracer.Start(ctx, "watcher.Run")
	defer span.End()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.wg.Wait()
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.wg.Wait()
				return
			}
			if w.logger != nil {
				w.logger.WithError(err).Error("watcher: fsnotify error")
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	base := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return // hidden files suppressed
	}

	w.mu.Lock()
	tmpl, ok := w.pathTpl[base]
	w.mu.Unlock()
	if !ok {
		return // depth-1 only: events from a subdirectory of base are ignored
	}

	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if pf, exists := w.pending[ev.Name]; exists {
		pf.cancel() // a new write restarts the stability window
	}
	stabilizeCtx, cancel := context.WithCancel(ctx)
	w.pending[ev.Name] = &pendingFile{cancel: cancel}
	w.mu.Unlock()

	w.wg.Add(1)
	go w.waitForStability(stabilizeCtx, ev.Name, name, tmpl)
}

// waitForStability polls the file's size every PollInterval and delivers a
// FileAdded event once it has been unchanged for StabilityThreshold.
func (w *Watcher) waitForStability(ctx context.Context, path, name string, tmpl *template.Template) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var lastSize int64 = -1
	var stableSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return // removed before it stabilized
			}
			if info.Size() != lastSize {
				lastSize = info.Size()
				stableSince = time.Now()
				continue
			}
			if time.Since(stableSince) >= w.opts.StabilityThreshold {
				select {
				case w.events <- Event{Type: EventFileAdded, Path: path, FileName: name, Template: tmpl}:
				case <-ctx.Done():
				}
				return
			}
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }
