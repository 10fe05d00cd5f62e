package pipeline

import (
	"context"

	"github.com/aios/organizer/internal/analysis"
	"github.com/aios/organizer/internal/coercer"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/pkg/config"
)

// RunSingleCall runs single-call mode: one prompt requesting the full
// AnalysisResult, one coercion pass against the SingleCall schema. Kept as
// an explicit, separate code path from RunMultiCall rather than unified
// with it.
func (p *Pipeline) RunSingleCall(ctx context.Context, path string, excerpt *extractor.Excerpt) (*analysis.Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.RunSingleCall")
	defer span.End()

	prompt := renderPrompt(p.deps.Config.PromptTemplate(config.KeyOrganizationPromptTemplate), excerpt, "")
	obj, err := coercer.Coerce(ctx, p.deps.Provider, prompt, coercer.Options{Schema: coercer.SingleCall})
	if err != nil {
		return nil, err
	}

	result := analysis.New()
	applySingleCallFields(result, obj)
	result.SetField("rawPrompt", prompt)
	return result, nil
}

// runSimple implements the reduced Simple schema used by OrganizeWatched
// and Reanalyze.
func (p *Pipeline) runSimple(ctx context.Context, path string, excerpt *extractor.Excerpt, promptTemplate string) (*analysis.Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.runSimple")
	defer span.End()

	prompt := renderPrompt(promptTemplate, excerpt, "")
	obj, err := coercer.Coerce(ctx, p.deps.Provider, prompt, coercer.Options{Schema: coercer.Simple})
	if err != nil {
		return nil, err
	}

	result := analysis.New()
	result.Title, _ = obj["title"].(string)
	result.Category, _ = obj["category"].(string)
	result.Summary, _ = obj["summary"].(string)
	result.Tags = stringSlice(obj["tags"])
	result.SetField("rawPrompt", prompt)
	return result, nil
}

func applySingleCallFields(result *analysis.Result, obj map[string]any) {
	result.Title, _ = obj["title"].(string)
	result.Summary, _ = obj["summary"].(string)
	result.Category, _ = obj["category"].(string)
	result.Tags = stringSlice(obj["tags"])
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
