package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/pkg/config"
)

// scriptedProvider replays one scripted response per Chat call, in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) Chat(context.Context, string) (string, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}
func (s *scriptedProvider) Vision(context.Context, []byte, string, string) (string, error) {
	return "", nil
}
func (s *scriptedProvider) Variant() chatprovider.Variant { return chatprovider.VariantOllama }
func (s *scriptedProvider) Model() string                { return "test-model" }

func writeConfig(t *testing.T, dir, extra string) *config.Store {
	t.Helper()
	body := "LLM_PROVIDER=ollama\nMOVE_FILE_OPERATION=true\n" + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), []byte(body), 0o600))
	s, err := config.Load(dir)
	require.NoError(t, err)
	return s
}

func newTestDeps(t *testing.T, provider chatprovider.Provider, extraConfig string) (Deps, string) {
	t.Helper()
	configDir := t.TempDir()
	watchDir := t.TempDir()

	cfg := writeConfig(t, configDir, extraConfig)

	registry, err := template.NewRegistry(configDir, nil)
	require.NoError(t, err)

	db, err := sqlx.Connect("sqlite", filepath.Join(configDir, "catalog.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := catalog.New(db, nil)
	require.NoError(t, err)

	return Deps{
		Config:    cfg,
		Provider:  provider,
		Extractor: extractor.New(extractor.Collaborators{}, 2000, nil),
		Templates: registry,
		Catalog:   repo,
		Sidecar:   sidecar.NewFile(),
	}, watchDir
}

func TestOrganize_SingleCallMode_CommitsFile(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"Q1 Sales Report","summary":"quarterly numbers","category":"Reports","tags":["finance"]}`},
	}, "ORGANIZATION_MODE=single\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "report.txt")
	require.NoError(t, os.WriteFile(src, []byte("Q1 sales were strong across all regions."), 0o600))

	p := New(deps)
	outcome, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.FileExists(t, outcome.Path)
	require.NoFileExists(t, src) // moved, not copied

	got, err := deps.Catalog.GetFileByID(context.Background(), outcome.File.ID)
	require.NoError(t, err)
	require.Equal(t, "Q1 Sales Report", got.Title)
	require.Equal(t, 1, got.Version)
}

func TestOrganize_MultiCallMode_NoTemplatesSkipsSelectionSteps(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{
			`{"title":"Vacation Photo","summary":"beach at sunset","mainTopic":"travel","contentType":"image"}`,
			`{"category":"Pictures","subcategories":["travel"],"fileType":"jpg"}`,
			`{"tags":["beach","sunset"],"keywords":["vacation"]}`,
			`{"suggestedPath":"Pictures/Vacation","suggestedFilename":"beach-sunset","priority":"normal","confidence":0.9}`,
		},
	}, "ORGANIZATION_MODE=multi\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "IMG_001.jpg")
	require.NoError(t, os.WriteFile(src, []byte("not really a jpg but close enough"), 0o600))

	p := New(deps)
	outcome, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.FileExists(t, outcome.Path)
	require.Equal(t, "Vacation Photo", outcome.Analysis.Title)
	require.Equal(t, []string{"beach", "sunset"}, outcome.Analysis.Tags)
}

func TestOrganize_CopyModePreservesSource(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"Notes","summary":"misc","category":"Documents","tags":[]}`},
	}, "ORGANIZATION_MODE=single\nMOVE_FILE_OPERATION=false\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("misc notes"), 0o600))

	p := New(deps)
	outcome, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.FileExists(t, outcome.Path)
	require.FileExists(t, src) // copy, not move
}

func TestOrganize_CollisionAppendsCounterSuffix(t *testing.T) {
	base := filepath.Join(t.TempDir(), "organized")
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"Notes","summary":"misc","category":"Documents","tags":[]}`},
	}, "ORGANIZATION_MODE=single\nBASE_DIRECTORY="+base+"\n")

	require.NoError(t, os.MkdirAll(filepath.Join(base, "documents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "documents", "notes.txt"), []byte("existing"), 0o600))

	p := New(deps)
	srcA := filepath.Join(watchDir, "a.txt")
	require.NoError(t, os.WriteFile(srcA, []byte("misc notes a"), 0o600))
	outcome, err := p.Organize(context.Background(), srcA, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "documents", "notes-2.txt"), outcome.Path)
}

func TestOrganizeWatched_UsesWatchModePromptAndTemplate(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"Invoice","summary":"march invoice","category":"Finance","tags":["billing"]}`},
	}, "BASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	tmplBase := t.TempDir()
	tmpl := &template.Template{
		ID: "finance", Name: "Finance", BasePath: tmplBase,
		NamingStructure: "{file_category_1}/{file_title}", FileNameCase: template.CaseSnake,
		WatchForChanges: true, AutoOrganize: true,
	}
	require.NoError(t, deps.Templates.Add(tmpl))

	src := filepath.Join(watchDir, "invoice.pdf")
	require.NoError(t, os.WriteFile(src, []byte("march invoice total due"), 0o600))

	p := New(deps)
	outcome, err := p.OrganizeWatched(context.Background(), src, tmpl)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmplBase, "finance", "invoice.pdf"), outcome.Path)
	require.Equal(t, "finance", outcome.File.TemplateID)
	require.Contains(t, outcome.File.AIPrompt, "Classify the new file")
}

func TestOrganize_EmptyCategoryFallsBackToMIMECategory(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"Notes","summary":"misc","category":"","tags":[]}`},
	}, "ORGANIZATION_MODE=single\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("misc notes"), 0o600))

	p := New(deps)
	outcome, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.Equal(t, "Documents", outcome.File.Category)
	require.Equal(t, filepath.Join(deps.Config.Get(config.KeyBaseDirectory), "documents", "notes.txt"), outcome.Path)
}

func TestOrganize_EmptyTitleFallsBackToSourceFileName(t *testing.T) {
	deps, watchDir := newTestDeps(t, &scriptedProvider{
		responses: []string{`{"title":"","summary":"misc","category":"Documents","tags":[]}`},
	}, "ORGANIZATION_MODE=single\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "meeting-notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("misc notes"), 0o600))

	p := New(deps)
	outcome, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.Equal(t, "meeting-notes", outcome.File.Title)
}

func TestReanalyze_UpdatesExistingCatalogRow(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"title":"Notes v1","summary":"first","category":"Documents","tags":["draft"]}`,
	}}
	deps, watchDir := newTestDeps(t, provider, "ORGANIZATION_MODE=single\nBASE_DIRECTORY="+filepath.Join(t.TempDir(), "organized")+"\n")

	src := filepath.Join(watchDir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("first draft of notes"), 0o600))

	p := New(deps)
	first, err := p.Organize(context.Background(), src, "")
	require.NoError(t, err)
	require.Equal(t, 1, first.File.Version)

	provider.responses = append(provider.responses, `{"title":"Notes v2","summary":"revised","category":"Documents","tags":["final"]}`)
	second, err := p.Reanalyze(context.Background(), first.File.ID)
	require.NoError(t, err)
	require.Equal(t, "Notes v2", second.File.Title)
	require.Equal(t, 2, second.File.Version)

	versions, err := deps.Catalog.GetVersions(context.Background(), first.File.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
}
