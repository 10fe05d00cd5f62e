package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtract_PlainTextPassthrough(t *testing.T) {
	path := writeTempFile(t, "report.txt", "Quarterly sales report for the west region.")
	e := New(Collaborators{}, 2000, nil)

	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, CategoryDocuments, got.MIMECategory)
	assert.Contains(t, got.TextExcerpt, "Quarterly sales report")
}

func TestExtract_TruncatesToMaxWords(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	path := writeTempFile(t, "big.txt", strings.Join(words, " "))
	e := New(Collaborators{}, 10, nil)

	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(got.TextExcerpt), 10)
}

func TestExtract_UnknownFormatDegradesToOthers(t *testing.T) {
	path := writeTempFile(t, "mystery.xyz", "\x00\x01\x02binarygarbage")
	e := New(Collaborators{}, 2000, nil)

	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, CategoryOthers, got.MIMECategory)
	assert.Empty(t, got.TextExcerpt)
}

func TestExtract_UnreadableFileFails(t *testing.T) {
	e := New(Collaborators{}, 2000, nil)
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.Error(t, err)
}

type fakeVision struct{ caption string }

func (f fakeVision) Caption(context.Context, string) (string, error) { return f.caption, nil }

func TestExtract_PictureUsesVisionCaptioner(t *testing.T) {
	// Minimal PNG header so http.DetectContentType classifies it as an image.
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	path := writeTempFile(t, "photo.png", string(png))

	e := New(Collaborators{VisionCaptioner: fakeVision{caption: "a sunset over the beach"}}, 2000, nil)
	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, CategoryPictures, got.MIMECategory)
	assert.Contains(t, got.TextExcerpt, "sunset")
}
