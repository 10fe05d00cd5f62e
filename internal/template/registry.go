package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/telemetry"
)

// Registry loads, validates, and persists the user's Template documents
//. All writes go through an atomic document rewrite: write to a
// sibling temp path, then rename over the live file, so readers always see
// a fully-formed document.
type Registry struct {
	path   string
	mu     sync.RWMutex
	byID   map[string]*Template
	order  []string // preserves insertion/file order for List
	logger *logrus.Logger
	tracer trace.Tracer
}

// NewRegistry loads templates from <configDir>/templates.json. A missing
// file is treated as an empty registry (first run).
func NewRegistry(configDir string, logger *logrus.Logger) (*Registry, error) {
	r := &Registry{
		path:   filepath.Join(configDir, "templates.json"),
		byID:   make(map[string]*Template),
		logger: logger,
		tracer: telemetry.Tracer("template.registry"),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return orgerrors.Config(fmt.Errorf("reading templates document: %w", err))
	}

	var list []*Template
	if err := json.Unmarshal(data, &list); err != nil {
		return orgerrors.Config(fmt.Errorf("parsing templates document: %w", err))
	}

	byID := make(map[string]*Template, len(list))
	order := make([]string, 0, len(list))
	for _, t := range list {
		if err := t.Validate(); err != nil {
			return orgerrors.Config(fmt.Errorf("invalid template in document: %w", err))
		}
		byID[t.ID] = t
		order = append(order, t.ID)
	}

	r.mu.Lock()
	r.byID = byID
	r.order = order
	r.mu.Unlock()
	return nil
}

// List returns every template in document order.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every template id, used by the coercer to validate the
// model's template-selection choice against the allowed set.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Get returns the template with the given id, or (nil, false).
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// WithWatch returns the subset of templates with WatchForChanges set,
// consumed by the Daemon Coordinator at startup.
func (r *Registry) WithWatch() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Template
	for _, id := range r.order {
		if t := r.byID[id]; t.WatchForChanges {
			out = append(out, t)
		}
	}
	return out
}

// Add inserts a new template, failing if its id already exists.
func (r *Registry) Add(t *Template) error {
	if err := t.Validate(); err != nil {
		return orgerrors.Config(err)
	}
	r.mu.Lock()
	if _, exists := r.byID[t.ID]; exists {
		r.mu.Unlock()
		return orgerrors.Config(fmt.Errorf("template id %q already exists", t.ID))
	}
	r.byID[t.ID] = t
	r.order = append(r.order, t.ID)
	r.mu.Unlock()
	return r.persist()
}

// Update replaces the template with the given id.
func (r *Registry) Update(t *Template) error {
	if err := t.Validate(); err != nil {
		return orgerrors.Config(err)
	}
	r.mu.Lock()
	if _, exists := r.byID[t.ID]; !exists {
		r.mu.Unlock()
		return orgerrors.Config(fmt.Errorf("template id %q does not exist", t.ID))
	}
	r.byID[t.ID] = t
	r.mu.Unlock()
	return r.persist()
}

// Remove deletes the template with the given id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, exists := r.byID[id]; !exists {
		r.mu.Unlock()
		return orgerrors.Config(fmt.Errorf("template id %q does not exist", id))
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return r.persist()
}

// EnableWatch and DisableWatch flip WatchForChanges on an existing template.
func (r *Registry) EnableWatch(id string) error  { return r.setWatch(id, true) }
func (r *Registry) DisableWatch(id string) error { return r.setWatch(id, false) }

func (r *Registry) setWatch(id string, watch bool) error {
	r.mu.Lock()
	t, exists := r.byID[id]
	if !exists {
		r.mu.Unlock()
		return orgerrors.Config(fmt.Errorf("template id %q does not exist", id))
	}
	t.WatchForChanges = watch
	r.mu.Unlock()
	return r.persist()
}

// persist performs the atomic document rewrite: write to a sibling temp
// file then rename over the live path.
func (r *Registry) persist() error {
	r.mu.RLock()
	list := make([]*Template, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.byID[id])
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return orgerrors.Config(fmt.Errorf("marshaling templates document: %w", err))
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return orgerrors.Config(fmt.Errorf("creating config dir: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".templates-*.json.tmp")
	if err != nil {
		return orgerrors.Config(fmt.Errorf("creating temp file: %w", err))
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return orgerrors.Config(fmt.Errorf("writing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return orgerrors.Config(fmt.Errorf("closing temp file: %w", err))
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return orgerrors.Config(fmt.Errorf("renaming temp file over live document: %w", err))
	}

	if r.logger != nil {
		r.logger.WithField("path", r.path).Debug("templates document rewritten")
	}
	return nil
}
