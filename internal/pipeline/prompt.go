package pipeline

import (
	"strings"

	"github.com/aios/organizer/internal/extractor"
)

// renderPrompt substitutes the master-prompt placeholder vocabulary:
// {fileName}, {fileContent}, {mimeType}, {additionalPrompts}.
// additionalPrompts carries prior sub-steps' findings in multi-call mode,
// empty in single-call mode.
func renderPrompt(tmpl string, excerpt *extractor.Excerpt, additionalPrompts string) string {
	r := strings.NewReplacer(
		"{fileName}", excerpt.OriginalName,
		"{fileContent}", excerpt.TextExcerpt,
		"{mimeType}", string(excerpt.MIMECategory),
		"{additionalPrompts}", additionalPrompts,
	)
	return r.Replace(tmpl)
}
