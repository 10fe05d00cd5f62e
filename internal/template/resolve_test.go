package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aios/organizer/internal/analysis"
)

// Plain text to snake-case.
func TestResolve_Scenario1_PlainTextSnakeCase(t *testing.T) {
	tmpl := &Template{
		ID:              "docs",
		BasePath:        "/home/user/Documents",
		NamingStructure: "{file_category_1}/{file_title}",
		FileNameCase:    CaseSnake,
	}
	result := &analysis.Result{
		Title:    "Q1 Sales Report",
		Category: "Reports",
		Tags:     []string{"finance", "quarterly"},
		Summary:  "Quarterly sales report",
	}

	got, err := Resolve(tmpl, result, ".txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user/Documents", "reports", "q1_sales_report.txt"), got)
}

// Enforced folder rejection-then-accept. Here we
// test the resolver's half of the scenario: once the pipeline has settled
// on selectedFolderPath="Contracts", Resolve must place the file there and
// must reject an out-of-list folder under enforcement.
func TestResolve_EnforceTemplateStructure(t *testing.T) {
	tmpl := &Template{
		ID:                       "client-files",
		BasePath:                 "/home/user/Clients",
		NamingStructure:          "{selectedFolderPath}/{file_title}",
		FileNameCase:             CaseSnake,
		FolderStructure:          []string{"Contracts", "Reports/Financial", "Personal"},
		EnforceTemplateStructure: true,
	}

	result := analysis.New()
	result.Title = "Acme MSA"
	result.SetField("selectedFolderPath", "Contracts")

	got, err := Resolve(tmpl, result, ".pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user/Clients", "Contracts", "acme_msa.pdf"), got)

	result.SetField("selectedFolderPath", "Invoices")
	_, err = Resolve(tmpl, result, ".pdf")
	require.Error(t, err)
}

func TestResolve_MissingPlaceholderElided(t *testing.T) {
	tmpl := &Template{
		ID:              "pictures",
		BasePath:        "/home/user/Pictures",
		NamingStructure: "{picture_date_taken}/{file_title}",
		FileNameCase:    CaseKebab,
	}
	result := analysis.New()
	result.Title = "Beach Trip"
	// picture_date_taken intentionally absent.

	got, err := Resolve(tmpl, result, ".jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user/Pictures", "beach-trip.jpg"), got)
}

func TestResolve_ReservedTransformerRecasesPreviousValue(t *testing.T) {
	tmpl := &Template{
		ID:              "music",
		BasePath:        "/home/user/Music",
		NamingStructure: "{file_title}{_kebab_}",
		FileNameCase:    CaseSnake,
	}
	result := analysis.New()
	result.Title = "My Favorite Song"

	got, err := Resolve(tmpl, result, ".mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user/Music", "my-favorite-song.mp3"), got)
}

func TestResolve_TildeExpandsToHome(t *testing.T) {
	tmpl := &Template{
		ID:              "docs",
		BasePath:        "~/Documents",
		NamingStructure: "{file_title}",
		FileNameCase:    CaseSnake,
	}
	result := analysis.New()
	result.Title = "Notes"

	got, err := Resolve(tmpl, result, ".txt")
	require.NoError(t, err)
	assert.NotContains(t, got, "~")
	assert.Contains(t, got, filepath.Join("Documents", "notes.txt"))
}
