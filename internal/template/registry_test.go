package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	return r, dir
}

func sampleTemplate(id string) *Template {
	return &Template{
		ID:              id,
		Name:            "Documents",
		BasePath:        "~/Documents",
		NamingStructure: "{file_category_1}/{file_title}",
		FileNameCase:    CaseSnake,
	}
}

func TestRegistry_AddGetList(t *testing.T) {
	r, _ := freshRegistry(t)

	require.NoError(t, r.Add(sampleTemplate("docs")))

	got, ok := r.Get("docs")
	require.True(t, ok)
	assert.Equal(t, "Documents", got.Name)
	assert.Len(t, r.List(), 1)
	assert.Equal(t, []string{"docs"}, r.IDs())
}

func TestRegistry_AddRejectsDuplicateID(t *testing.T) {
	r, _ := freshRegistry(t)
	require.NoError(t, r.Add(sampleTemplate("docs")))
	err := r.Add(sampleTemplate("docs"))
	require.Error(t, err)
}

func TestRegistry_AddRejectsInvalidTemplate(t *testing.T) {
	r, _ := freshRegistry(t)
	bad := sampleTemplate("docs")
	bad.NamingStructure = "no-placeholder-here"
	require.Error(t, r.Add(bad))
}

func TestRegistry_UpdateAndRemove(t *testing.T) {
	r, _ := freshRegistry(t)
	require.NoError(t, r.Add(sampleTemplate("docs")))

	updated := sampleTemplate("docs")
	updated.Name = "Docs v2"
	require.NoError(t, r.Update(updated))

	got, _ := r.Get("docs")
	assert.Equal(t, "Docs v2", got.Name)

	require.NoError(t, r.Remove("docs"))
	_, ok := r.Get("docs")
	assert.False(t, ok)
}

func TestRegistry_PersistsAcrossReload(t *testing.T) {
	r, dir := freshRegistry(t)
	require.NoError(t, r.Add(sampleTemplate("docs")))

	r2, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	got, ok := r2.Get("docs")
	require.True(t, ok)
	assert.Equal(t, "Documents", got.Name)
}

func TestRegistry_WatchToggles(t *testing.T) {
	r, _ := freshRegistry(t)
	require.NoError(t, r.Add(sampleTemplate("docs")))
	assert.Empty(t, r.WithWatch())

	require.NoError(t, r.EnableWatch("docs"))
	assert.Len(t, r.WithWatch(), 1)

	require.NoError(t, r.DisableWatch("docs"))
	assert.Empty(t, r.WithWatch())
}

func TestRegistry_AtomicRewriteLeavesNoTempFiles(t *testing.T) {
	r, dir := freshRegistry(t)
	require.NoError(t, r.Add(sampleTemplate("docs")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.Ext(e.Name()) == ".tmp", "leftover temp file: %s", e.Name())
	}
}
