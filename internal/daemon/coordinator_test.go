package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/pipeline"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/pkg/config"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) Chat(context.Context, string) (string, error) {
	r := s.responses[s.calls%len(s.responses)]
	s.calls++
	return r, nil
}
func (s *scriptedProvider) Vision(context.Context, []byte, string, string) (string, error) {
	return "", nil
}
func (s *scriptedProvider) Variant() chatprovider.Variant { return chatprovider.VariantOllama }
func (s *scriptedProvider) Model() string                { return "test-model" }

func newTestCoordinator(t *testing.T, watchTemplates ...*template.Template) (*Coordinator, string) {
	t.Helper()
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"),
		[]byte("LLM_PROVIDER=ollama\nMOVE_FILE_OPERATION=true\nORGANIZATION_MODE=single\n"), 0o600))
	cfg, err := config.Load(configDir)
	require.NoError(t, err)

	registry, err := template.NewRegistry(configDir, nil)
	require.NoError(t, err)
	for _, tmpl := range watchTemplates {
		require.NoError(t, registry.Add(tmpl))
	}

	db, err := sqlx.Connect("sqlite", filepath.Join(configDir, "catalog.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := catalog.New(db, nil)
	require.NoError(t, err)

	p := pipeline.New(pipeline.Deps{
		Config: cfg,
		Provider: &scriptedProvider{responses: []string{
			`{"title":"Invoice","summary":"march invoice","category":"Finance","tags":["billing"]}`,
		}},
		Extractor: extractor.New(extractor.Collaborators{}, 2000, nil),
		Templates: registry,
		Catalog:   repo,
		Sidecar:   sidecar.NewFile(),
	})

	return New(cfg, registry, repo, p, nil, Options{}), configDir
}

func TestRun_NoWatchedTemplatesReturnsDiagnostic(t *testing.T) {
	c, _ := newTestCoordinator(t)
	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrNoWatchedTemplates)
}

func TestRun_AutoOrganizeTemplateOrganizesNewFile(t *testing.T) {
	base := t.TempDir()
	tmpl := &template.Template{
		ID: "finance", Name: "Finance", BasePath: base,
		NamingStructure: "{file_category_1}/{file_title}", FileNameCase: template.CaseSnake,
		WatchForChanges: true, AutoOrganize: true,
	}
	c, _ := newTestCoordinator(t, tmpl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(base, "invoice.pdf"), []byte("march invoice total due"), 0o600))

	require.Eventually(t, func() bool {
		files, err := c.catalog.ListFiles(context.Background(), 10)
		return err == nil && len(files) == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_NonAutoOrganizeTemplateOnlyRecordsDiscovered(t *testing.T) {
	base := t.TempDir()
	tmpl := &template.Template{
		ID: "inbox", Name: "Inbox", BasePath: base,
		NamingStructure: "{file_category_1}/{file_title}", FileNameCase: template.CaseSnake,
		WatchForChanges: true, AutoOrganize: false,
	}
	c, _ := newTestCoordinator(t, tmpl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(base, "notes.txt"), []byte("misc notes"), 0o600))

	require.Eventually(t, func() bool {
		stats, err := c.catalog.GetDiscoveredStats(context.Background())
		return err == nil && stats.Unorganized == 1
	}, 5*time.Second, 50*time.Millisecond)

	files, err := c.catalog.ListFiles(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, files)

	cancel()
	require.NoError(t, <-done)
}
