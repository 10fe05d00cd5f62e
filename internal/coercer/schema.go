package coercer

// Schema names the component-specific required-field list the coercer
// validates a parsed JSON object against: each pipeline sub-step carries
// its own Schema. FieldType is a primitive JSON type name as returned by
// the Go JSON decoder: "string", "number", "bool", "array", "object".
type Schema struct {
	Name     string
	Required []RequiredField
}

type RequiredField struct {
	Name string
	Type string
}

// Schemas used by the Organization Pipeline's sub-steps plus
// the single-call mode.
var (
	BasicUnderstanding = Schema{
		Name: "basic",
		Required: []RequiredField{
			{"title", "string"},
			{"summary", "string"},
			{"mainTopic", "string"},
			{"contentType", "string"},
		},
	}

	Categorization = Schema{
		Name: "categorization",
		Required: []RequiredField{
			{"category", "string"},
			{"subcategories", "array"},
			{"fileType", "string"},
		},
	}

	MetadataExtraction = Schema{
		Name: "metadata",
		Required: []RequiredField{
			{"tags", "array"},
			{"keywords", "array"},
		},
	}

	OrganizationRecommendation = Schema{
		Name: "organization",
		Required: []RequiredField{
			{"suggestedPath", "string"},
			{"suggestedFilename", "string"},
			{"confidence", "number"},
		},
	}

	TemplateSelection = Schema{
		Name: "template-selection",
		Required: []RequiredField{
			{"selectedTemplateId", "string"},
			{"templateConfidence", "number"},
		},
	}

	FolderSelection = Schema{
		Name: "folder-selection",
		Required: []RequiredField{
			{"selectedFolderPath", "string"},
			{"folderConfidence", "number"},
		},
	}

	SingleCall = Schema{
		Name: "single-call",
		Required: []RequiredField{
			{"title", "string"},
			{"summary", "string"},
			{"category", "string"},
			{"tags", "array"},
		},
	}

	// Simple is the reduced schema used by the watch daemon's auto-organize
	// path and the re-analyze operation, kept as an explicit, separate
	// schema rather than unified with SingleCall.
	Simple = Schema{
		Name: "simple",
		Required: []RequiredField{
			{"title", "string"},
			{"category", "string"},
			{"tags", "array"},
			{"summary", "string"},
		},
	}
)
