// Package template implements the Template Registry and the Template & Path
// Resolver: loading, validating, and persisting user templates,
// and mapping an AnalysisResult onto a concrete destination path.
package template

import (
	"fmt"
	"strings"
)

// Case identifies one of the six closed filename/folder case conventions.
type Case string

const (
	CaseSnake      Case = "snake"
	CaseKebab      Case = "kebab"
	CaseCamel      Case = "camel"
	CasePascal     Case = "pascal"
	CaseUpperSnake Case = "upper_snake"
	CaseLowerSnake Case = "lower_snake"
)

var validCases = map[Case]bool{
	CaseSnake: true, CaseKebab: true, CaseCamel: true,
	CasePascal: true, CaseUpperSnake: true, CaseLowerSnake: true,
}

// Template is a user-authored rule describing where a class of files
// should live and how they should be named.
type Template struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	BasePath        string   `json:"basePath" db:"base_path"`
	NamingStructure string   `json:"namingStructure" db:"naming_structure"`
	FileNameCase    Case     `json:"fileNameCase" db:"file_name_case"`
	FolderStructure []string `json:"folderStructure,omitempty" db:"-"`

	EnforceTemplateStructure bool `json:"enforceTemplateStructure" db:"enforce_template_structure"`
	WatchForChanges          bool `json:"watchForChanges" db:"watch_for_changes"`
	AutoOrganize             bool `json:"autoOrganize" db:"auto_organize"`
}

// Validate checks that id is a non-empty token, namingStructure contains
// at least one placeholder, and fileNameCase is from the closed set.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("template: id must be a non-empty token")
	}
	if strings.ContainsAny(t.ID, " \t\n/") {
		return fmt.Errorf("template: id %q must be a single token", t.ID)
	}
	if !strings.Contains(t.NamingStructure, "{") || !strings.Contains(t.NamingStructure, "}") {
		return fmt.Errorf("template: namingStructure %q must contain at least one {placeholder}", t.NamingStructure)
	}
	if !validCases[t.FileNameCase] {
		return fmt.Errorf("template: fileNameCase %q is not a recognized case convention", t.FileNameCase)
	}
	return nil
}

// HasFolderStructure reports whether this template declares predefined
// subfolders.
func (t *Template) HasFolderStructure() bool {
	return len(t.FolderStructure) > 0
}
