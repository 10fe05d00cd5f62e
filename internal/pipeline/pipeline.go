// Package pipeline implements the Organization Pipeline: extract -> analyze
// -> resolve path -> commit, in either single-call or multi-call mode, plus
// the watch-mode and re-analyze entry points the Daemon Coordinator and CLI
// driver use.
//
// The multi-call shape follows internal/ai/services.PromptManager's chain
// of named prompt steps feeding one another; the extract/analyze/persist
// composition follows internal/knowledge.Service.
package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aios/organizer/internal/analysis"
	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/telemetry"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/pkg/config"
)

// Deps bundles every collaborator the pipeline needs. All fields are
// required except Sidecar, whose absence just skips step 5 of the commit
// stage, and Logger, whose absence turns off the pipeline's own warnings.
type Deps struct {
	Config    *config.Store
	Provider  chatprovider.Provider
	Extractor *extractor.Extractor
	Templates *template.Registry
	Catalog   *catalog.Repository
	Sidecar   sidecar.Sidecar
	Logger    *logrus.Logger
}

// Pipeline is the Organization Pipeline capability.
type Pipeline struct {
	deps   Deps
	tracer trace.Tracer
}

func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, tracer: telemetry.Tracer("pipeline")}
}

// Outcome is what a successful Organize call produces: the persisted
// catalog row, the analysis that drove it, and the path it now lives at.
type Outcome struct {
	File     *catalog.File
	Analysis *analysis.Result
	Path     string
}

// Organize runs one file end to end: extract, analyze (single- or
// multi-call per Config.OrganizationMode), resolve, commit. templateID
// selects the destination template explicitly; pass "" to let sub-step 5
// (template selection) pick one from the registry.
func (p *Pipeline) Organize(ctx context.Context, path string, templateID string) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Organize")
	defer span.End()

	deadline := p.deps.Config.OrganizationTimeout()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	if outcome, skip, err := p.alreadyOrganized(ctx, path); err != nil || skip {
		return outcome, err
	}

	excerpt, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	var result *analysis.Result
	switch p.deps.Config.OrganizationMode() {
	case "single":
		result, err = p.RunSingleCall(ctx, path, excerpt)
	default:
		result, err = p.RunMultiCall(ctx, path, excerpt, templateID)
	}
	if err != nil {
		return nil, err
	}
	if templateID != "" {
		result.SetField("selectedTemplateId", templateID)
	}

	return p.commit(ctx, path, excerpt, result)
}

// OrganizeWatched is the daemon's auto-organize entry point: a
// single-call analysis using WATCH_MODE_PROMPT, committed the same way as
// Organize.
func (p *Pipeline) OrganizeWatched(ctx context.Context, path string, tmpl *template.Template) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.OrganizeWatched")
	defer span.End()

	deadline := p.deps.Config.OrganizationTimeout()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	if outcome, skip, err := p.alreadyOrganized(ctx, path); err != nil || skip {
		return outcome, err
	}

	excerpt, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	result, err := p.runSimple(ctx, path, excerpt, p.deps.Config.PromptTemplate(config.KeyWatchModePrompt))
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		result.SetField("selectedTemplateId", tmpl.ID)
	}

	return p.commit(ctx, path, excerpt, result)
}

// Reanalyze re-runs analysis over an already-organized file using
// REANALYZE_PROMPT and updates its existing catalog row rather than
// inserting a new one.
func (p *Pipeline) Reanalyze(ctx context.Context, fileID string) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Reanalyze")
	defer span.End()

	f, err := p.deps.Catalog.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, notFoundError(fileID)
	}

	excerpt, err := p.deps.Extractor.Extract(ctx, f.CurrentPath)
	if err != nil {
		return nil, err
	}

	result, err := p.runSimple(ctx, f.CurrentPath, excerpt, p.deps.Config.PromptTemplate(config.KeyReanalyzePrompt))
	if err != nil {
		return nil, err
	}

	applyResultToFile(f, result, p.deps.Provider)
	if err := p.deps.Catalog.UpdateFile(ctx, f); err != nil {
		return nil, err
	}
	return &Outcome{File: f, Analysis: result, Path: f.CurrentPath}, nil
}

// alreadyOrganized makes re-running the pipeline on a file the Metadata
// Sidecar already marks organized a no-op, returning the existing catalog
// row rather than producing a second one.
func (p *Pipeline) alreadyOrganized(ctx context.Context, path string) (*Outcome, bool, error) {
	if p.deps.Sidecar == nil || !p.deps.Sidecar.Has(path) {
		return nil, false, nil
	}
	f, err := p.deps.Catalog.GetFileByPath(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if f == nil {
		return nil, false, nil
	}
	return &Outcome{File: f, Path: f.CurrentPath}, true, nil
}

type notFoundError string

func (e notFoundError) Error() string { return "pipeline: file not found: " + string(e) }
