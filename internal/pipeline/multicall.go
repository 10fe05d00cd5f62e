package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/aios/organizer/internal/analysis"
	"github.com/aios/organizer/internal/coercer"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/pkg/config"
)

// RunMultiCall runs the six-sub-step mode, each call feeding the next via
// the "additionalPrompts" placeholder. Kept as an explicit, separate code
// path from RunSingleCall.
func (p *Pipeline) RunMultiCall(ctx context.Context, path string, excerpt *extractor.Excerpt, templateID string) (*analysis.Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.RunMultiCall")
	defer span.End()

	result := analysis.New()
	var prior strings.Builder
	base := p.deps.Config.PromptTemplate(config.KeyOrganizationPromptTemplate)

	// 1. Basic understanding.
	basic, err := p.step(ctx, base, excerpt, prior.String(), coercer.BasicUnderstanding, nil)
	if err != nil {
		return nil, err
	}
	result.Title, _ = basic["title"].(string)
	result.Summary, _ = basic["summary"].(string)
	result.SetField("mainTopic", basic["mainTopic"])
	result.SetField("contentType", basic["contentType"])
	fmt.Fprintf(&prior, "Basic understanding: title=%q summary=%q mainTopic=%v contentType=%v\n",
		result.Title, result.Summary, basic["mainTopic"], basic["contentType"])

	// 2. Categorization (sees 1).
	categorization, err := p.step(ctx, base, excerpt, prior.String(), coercer.Categorization, nil)
	if err != nil {
		return nil, err
	}
	result.Category, _ = categorization["category"].(string)
	result.SetField("subcategories", categorization["subcategories"])
	result.SetField("fileType", categorization["fileType"])
	fmt.Fprintf(&prior, "Categorization: category=%q fileType=%v\n", result.Category, categorization["fileType"])

	// 3. Metadata extraction (sees 1,2 + file excerpt, implicit via prompt template).
	metadata, err := p.step(ctx, base, excerpt, prior.String(), coercer.MetadataExtraction, nil)
	if err != nil {
		return nil, err
	}
	result.Tags = stringSlice(metadata["tags"])
	for _, optional := range []string{"keywords", "dateRelevant", "people", "locations", "organizations"} {
		if v, ok := metadata[optional]; ok {
			result.SetField(optional, v)
		}
	}
	fmt.Fprintf(&prior, "Metadata: tags=%v keywords=%v\n", result.Tags, metadata["keywords"])

	// 4. Organization recommendation (sees 1,2,3).
	recommendation, err := p.step(ctx, base, excerpt, prior.String(), coercer.OrganizationRecommendation, nil)
	if err != nil {
		return nil, err
	}
	result.SetField("suggestedPath", recommendation["suggestedPath"])
	result.SetField("suggestedFilename", recommendation["suggestedFilename"])
	result.SetField("priority", recommendation["priority"])
	if conf, ok := coercer.Float64(recommendation["confidence"]); ok {
		result.Confidence = conf
	}
	fmt.Fprintf(&prior, "Recommendation: suggestedPath=%v suggestedFilename=%v confidence=%v\n",
		recommendation["suggestedPath"], recommendation["suggestedFilename"], recommendation["confidence"])

	// 5. Template selection (sees 1-4 + registry list). Skipped if no
	// templates exist, or if the caller already pinned templateID.
	ids := p.deps.Templates.IDs()
	selectedID := templateID
	if selectedID == "" && len(ids) > 0 {
		selectionPrompt := base + fmt.Sprintf("\n\nAvailable template ids: %s\n", strings.Join(ids, ", "))
		selection, err := p.step(ctx, selectionPrompt, excerpt, prior.String(), coercer.TemplateSelection,
			map[string][]string{"selectedTemplateId": ids})
		if err != nil {
			return nil, err
		}
		selectedID, _ = selection["selectedTemplateId"].(string)
		result.SetField("templateConfidence", selection["templateConfidence"])
		result.SetField("templateReasoning", selection["templateReasoning"])
		fmt.Fprintf(&prior, "Template selection: selectedTemplateId=%v\n", selectedID)
	}
	result.SetField("selectedTemplateId", selectedID)

	// 6. Folder selection within template (sees 1-5 + selected template's
	// folder list). Skipped if the selected template has no folderStructure.
	if selectedID != "" {
		if tmpl, ok := p.deps.Templates.Get(selectedID); ok && tmpl.HasFolderStructure() {
			folderPrompt := base + fmt.Sprintf("\n\nAvailable folders for template %s: %s\n",
				tmpl.ID, strings.Join(tmpl.FolderStructure, ", "))
			var allowed map[string][]string
			if tmpl.EnforceTemplateStructure {
				allowed = map[string][]string{"selectedFolderPath": tmpl.FolderStructure}
			}
			folder, err := p.step(ctx, folderPrompt, excerpt, prior.String(), coercer.FolderSelection, allowed)
			if err != nil {
				return nil, err
			}
			result.SetField("selectedFolderPath", folder["selectedFolderPath"])
			result.SetField("folderConfidence", folder["folderConfidence"])
			result.SetField("folderReasoning", folder["folderReasoning"])
		}
	}

	return result, nil
}

// step renders the prompt with the accumulated "additionalPrompts" context
// and runs one Coerce call against schema.
func (p *Pipeline) step(ctx context.Context, promptTemplate string, excerpt *extractor.Excerpt, prior string,
	schema coercer.Schema, allowed map[string][]string) (map[string]any, error) {
	prompt := renderPrompt(promptTemplate, excerpt, prior)
	return coercer.Coerce(ctx, p.deps.Provider, prompt, coercer.Options{Schema: schema, AllowedValues: allowed})
}
