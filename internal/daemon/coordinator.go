// Package daemon implements the Daemon Coordinator: the long-lived loop
// that feeds Watcher events through the Organization Pipeline with bounded
// concurrency, per-path ordering, and graceful shutdown.
//
// The startup sequence and SIGINT/SIGTERM handling follow
// cmd/aios-daemon.Server, and the event loop follows
// pkg/mcp/resources.FileSystemResourceWatcher's run-loop shape, both
// retargeted onto the Watcher/Pipeline/Catalog components here.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/pipeline"
	"github.com/aios/organizer/internal/telemetry"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/internal/watcher"
	"github.com/aios/organizer/pkg/config"
)

// Options tunes the coordinator's concurrency model.
type Options struct {
	Concurrency int // default 4
	QueueDepth  int // default 64
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 64
	}
	return o
}

// Coordinator is the Daemon Coordinator capability.
type Coordinator struct {
	cfg       *config.Store
	templates *template.Registry
	catalog   *catalog.Repository
	pipeline  *pipeline.Pipeline
	logger    *logrus.Logger
	tracer    trace.Tracer
	opts      Options

	sem      chan struct{}
	inFlight sync.Map // path -> struct{}, enforces per-path in-order processing

	queueMu sync.Mutex
	queued  map[string][]watcher.Event // events for a path already in-flight, FIFO per path

	wg sync.WaitGroup

	metrics *Metrics
	bus     *activityBus
}

// New constructs a Coordinator. Call Run to start the main loop.
func New(cfg *config.Store, templates *template.Registry, cat *catalog.Repository, p *pipeline.Pipeline, logger *logrus.Logger, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		cfg:       cfg,
		templates: templates,
		catalog:   cat,
		pipeline:  p,
		logger:    logger,
		tracer:    telemetry.Tracer("daemon"),
		opts:      opts,
		sem:       make(chan struct{}, opts.Concurrency),
		metrics:   NewMetrics(prometheus.DefaultRegisterer),
		bus:       newActivityBus(),
	}
}

// ErrNoWatchedTemplates is returned by Run when no template has
// watchForChanges set: the daemon has nothing to watch, so it exits with a
// diagnostic rather than idling forever.
var ErrNoWatchedTemplates = fmt.Errorf("daemon: no templates have watchForChanges enabled")

// Run implements the startup sequence and main loop. It blocks
// until ctx is cancelled (SIGINT/SIGTERM at the caller), at which point it
// waits for in-flight pipeline tasks to observe cancellation before
// returning.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "daemon.Run")
	defer span.End()

	watched := c.templates.WithWatch()
	if len(watched) == 0 {
		return ErrNoWatchedTemplates
	}

	w, err := watcher.New(c.logger, watcher.Options{})
	if err != nil {
		return fmt.Errorf("daemon: creating watcher: %w", err)
	}
	defer w.Close()

	for _, t := range watched {
		w.Subscribe(t)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go w.Run(watchCtx)

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				c.wg.Wait()
				return nil
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev watcher.Event) {
	switch ev.Type {
	case watcher.EventError:
		if c.logger != nil {
			c.logger.WithError(ev.Err).WithField("template", ev.Template.ID).Warn("watcher subscription failed")
		}
		c.metrics.WatchErrors.Inc()
		return
	case watcher.EventFileAdded:
		c.dispatch(ctx, ev)
	}
}

// dispatch enforces the per-path in-flight set and the bounded worker pool,
// then submits to the pipeline per the template's autoOrganize flag. A
// second event for a path already being processed is queued behind the
// first rather than dropped: when the in-flight run for that path finishes,
// it dequeues and runs the next event for the same path before releasing
// the path's in-flight entry, so events for one path are never interleaved
// or lost.
func (c *Coordinator) dispatch(ctx context.Context, ev watcher.Event) {
	if _, loaded := c.inFlight.LoadOrStore(ev.Path, struct{}{}); loaded {
		c.enqueue(ev)
		return
	}
	c.run(ctx, ev)
}

func (c *Coordinator) enqueue(ev watcher.Event) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.queued == nil {
		c.queued = make(map[string][]watcher.Event)
	}
	c.queued[ev.Path] = append(c.queued[ev.Path], ev)
}

// dequeue pops the next queued event for path, if any.
func (c *Coordinator) dequeue(path string) (watcher.Event, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	q := c.queued[path]
	if len(q) == 0 {
		return watcher.Event{}, false
	}
	next := q[0]
	if len(q) == 1 {
		delete(c.queued, path)
	} else {
		c.queued[path] = q[1:]
	}
	return next, true
}

// run acquires a worker slot and processes ev. The path's in-flight entry
// stays held across a chain of queued events for the same path and is only
// released once the queue for that path runs dry, closing the race where a
// fresh event for the path could otherwise slip in between two chained runs.
func (c *Coordinator) run(ctx context.Context, ev watcher.Event) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		c.inFlight.Delete(ev.Path)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()

		c.metrics.EventsInFlight.Inc()
		if ev.Template.AutoOrganize {
			c.organize(ctx, ev)
		} else {
			c.recordDiscovered(ctx, ev)
		}
		c.metrics.EventsInFlight.Dec()

		if next, ok := c.dequeue(ev.Path); ok {
			c.run(ctx, next)
			return
		}
		c.inFlight.Delete(ev.Path)
	}()
}

func (c *Coordinator) organize(ctx context.Context, ev watcher.Event) {
	_, err := c.pipeline.OrganizeWatched(ctx, ev.Path, ev.Template)
	if err != nil {
		c.metrics.OrganizeErrors.Inc()
		c.bus.publish(ActivityEvent{Type: "error", Path: ev.Path, Error: err.Error()})
		if c.logger != nil {
			c.logger.WithError(err).WithField("path", ev.Path).Error("organize failed")
		}
		return
	}
	c.metrics.OrganizeSuccess.Inc()
	c.bus.publish(ActivityEvent{Type: "organized", Path: ev.Path})
}

// recordDiscovered handles the autoOrganize=false branch: record to the
// discovered-files index only, no pipeline invocation.
func (c *Coordinator) recordDiscovered(ctx context.Context, ev watcher.Event) {
	if err := c.catalog.RecordDiscovered(ctx, &catalog.Discovered{
		FilePath: ev.Path, FileName: ev.FileName, OrganizationStatus: catalog.StatusUnorganized, TemplateID: ev.Template.ID,
	}); err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("path", ev.Path).Warn("recording discovered file failed")
		return
	}
	c.bus.publish(ActivityEvent{Type: "discovered", Path: ev.Path})
}
