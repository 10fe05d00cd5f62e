// Package analysis defines AnalysisResult, the ephemeral record the
// Organization Pipeline produces and the Template Resolver consumes.
//
// It is modelled as a known required core plus a typed map of optional
// fields, rather than a closed struct: the domain has hundreds of possible
// per-file-type fields (music_artist, picture_date_taken, ...) and the
// resolver must tolerate absence rather than demand a fixed schema.
package analysis

import "fmt"

// Result is the bridge between the LLM output and the template resolver.
// Title, Summary, Category and Tags are the required core every code path
// populates; Confidence is set only by multi-call mode. Fields carries
// everything else (subcategories,
// fileType, keywords, dateRelevant, people, locations, organizations,
// suggestedPath, suggestedFilename, selectedTemplateId, selectedFolderPath,
// and any per-file-type field a prompt template introduces).
type Result struct {
	Title      string
	Summary    string
	Category   string
	Tags       []string
	Confidence float64

	// Fields holds every optional, domain-specific value by placeholder
	// name (without braces), e.g. "music_artist", "picture_date_taken".
	Fields map[string]any
}

// New returns a Result with an initialized Fields map.
func New() *Result {
	return &Result{Fields: make(map[string]any)}
}

// Field looks up an optional field by name, reporting whether it was present
// and non-nil.
func (r *Result) Field(name string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	return v, ok && v != nil
}

// StringField renders an optional field as a string for placeholder
// substitution, returning ("", false) if absent, nil, or not string-like.
func (r *Result) StringField(name string) (string, bool) {
	v, ok := r.Field(name)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// SetField sets an optional field, initializing Fields if necessary.
func (r *Result) SetField(name string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// Merge copies every populated field of other into r, used when a later
// multi-call sub-step (e.g. metadata extraction) augments the result
// produced by an earlier one (basic understanding, categorization).
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	if other.Title != "" {
		r.Title = other.Title
	}
	if other.Summary != "" {
		r.Summary = other.Summary
	}
	if other.Category != "" {
		r.Category = other.Category
	}
	if len(other.Tags) > 0 {
		r.Tags = append(r.Tags, other.Tags...)
	}
	if other.Confidence > 0 {
		r.Confidence = other.Confidence
	}
	for k, v := range other.Fields {
		r.SetField(k, v)
	}
}
