// Package extractor implements the Content Extractor capability: given a
// local path, produce a textual excerpt and a MIME category. Per-category
// extraction beyond plain text delegates to the abstract TextExtractor /
// VisionCaptioner / TagReader / ArchiveLister collaborators, whose concrete
// backends (PDF parsing, OCR, audio tag reading, archive listing) live
// outside this package; this package ships only the .txt/.md passthrough it
// implements natively, and tests supply their own fakes for the rest.
package extractor

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/telemetry"
)

// Category is the MIME category the extractor assigns to a file.
type Category string

const (
	CategoryDocuments Category = "Documents"
	CategoryPictures  Category = "Pictures"
	CategoryMusic     Category = "Music"
	CategoryVideos    Category = "Videos"
	CategoryArchives  Category = "Archives"
	CategoryOthers    Category = "Others"
)

// Excerpt is the result of extracting a single file.
type Excerpt struct {
	MIMECategory Category
	TextExcerpt  string
	OriginalName string
	Extension    string
}

// TextExtractor is the abstract "text from document" collaborator for
// non-plain-text Documents (pdf, docx, ...). Out of core scope; the core
// only depends on this interface.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// VisionCaptioner is the abstract image-captioning collaborator, backed by
// the Chat Provider's vision capability in a full deployment.
type VisionCaptioner interface {
	Caption(ctx context.Context, path string) (string, error)
}

// TagReader is the abstract audio/video tag + metadata collaborator.
type TagReader interface {
	ReadTags(ctx context.Context, path string) (map[string]string, error)
}

// ArchiveLister is the abstract archive-contents collaborator.
type ArchiveLister interface {
	ListEntries(ctx context.Context, path string) ([]ArchiveEntry, error)
}

// ArchiveEntry is one file inside an archive.
type ArchiveEntry struct {
	Name string
	Size int64
}

// Collaborators bundles the out-of-scope capabilities this extractor
// delegates to. Any may be nil; a nil collaborator degrades that category
// to metadata-only or empty excerpt rather than failing.
type Collaborators struct {
	TextExtractor   TextExtractor
	VisionCaptioner VisionCaptioner
	TagReader       TagReader
	ArchiveLister   ArchiveLister
}

// Extractor produces a textual excerpt + MIME category for an arbitrary
// file, truncated to MaxWords whitespace-separated words.
type Extractor struct {
	collab   Collaborators
	maxWords int
	logger   *logrus.Logger
	tracer   trace.Tracer
}

func New(collab Collaborators, maxWords int, logger *logrus.Logger) *Extractor {
	if maxWords <= 0 {
		maxWords = 2000
	}
	return &Extractor{
		collab:   collab,
		maxWords: maxWords,
		logger:   logger,
		tracer:   telemetry.Tracer("extractor"),
	}
}

// Extract runs the per-category extraction policy. It fails with
// ExtractFailed only when the file is unreadable or a collaborator returns
// an unmaskable error; unrecognized formats degrade to Others with an empty
// excerpt rather than failing.
func (e *Extractor) Extract(ctx context.Context, path string) (*Excerpt, error) {
	ctx, span := e.tracer.Start(ctx, "Extract")
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		return nil, orgerrors.ExtractFailed(err).WithContext("open", path)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	mimeType := http.DetectContentType(head[:n])
	ext := strings.ToLower(filepath.Ext(path))
	category := categorize(mimeType, ext)

	excerpt := &Excerpt{
		MIMECategory: category,
		OriginalName: filepath.Base(path),
		Extension:    ext,
	}

	switch category {
	case CategoryDocuments:
		text, err := e.extractDocument(ctx, path, ext)
		if err != nil {
			return nil, orgerrors.ExtractFailed(err).WithContext("document", path)
		}
		excerpt.TextExcerpt = truncateWords(text, e.maxWords)

	case CategoryPictures:
		parts := []string{}
		if e.collab.VisionCaptioner != nil {
			caption, err := e.collab.VisionCaptioner.Caption(ctx, path)
			if err == nil && caption != "" {
				parts = append(parts, caption)
			}
		}
		excerpt.TextExcerpt = truncateWords(strings.Join(parts, "\n"), e.maxWords)

	case CategoryMusic, CategoryVideos:
		if e.collab.TagReader != nil {
			tags, err := e.collab.TagReader.ReadTags(ctx, path)
			if err == nil {
				excerpt.TextExcerpt = truncateWords(formatTags(tags), e.maxWords)
			}
		}

	case CategoryArchives:
		if e.collab.ArchiveLister != nil {
			entries, err := e.collab.ArchiveLister.ListEntries(ctx, path)
			if err == nil {
				excerpt.TextExcerpt = truncateWords(formatEntries(entries), e.maxWords)
			}
		}

	default:
		excerpt.MIMECategory = CategoryOthers
	}

	return excerpt, nil
}

func (e *Extractor) extractDocument(ctx context.Context, path, ext string) (string, error) {
	if ext == ".txt" || ext == ".md" {
		return readPlainText(path)
	}
	if e.collab.TextExtractor == nil {
		return "", nil
	}
	return e.collab.TextExtractor.ExtractText(ctx, path)
}

func readPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func categorize(mimeType, ext string) Category {
	switch {
	case strings.HasPrefix(mimeType, "text/"), ext == ".txt", ext == ".md", ext == ".pdf", ext == ".docx", ext == ".doc":
		return CategoryDocuments
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryPictures
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryMusic
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideos
	case ext == ".zip", ext == ".tar", ext == ".gz", ext == ".7z", ext == ".rar":
		return CategoryArchives
	default:
		return CategoryOthers
	}
}

func truncateWords(s string, maxWords int) string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Split(bufio.ScanWords)
	words := make([]string, 0, maxWords)
	for scanner.Scan() {
		words = append(words, scanner.Text())
		if len(words) >= maxWords {
			break
		}
	}
	return strings.Join(words, " ")
}

func formatTags(tags map[string]string) string {
	var b strings.Builder
	for k, v := range tags {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}

func formatEntries(entries []ArchiveEntry) string {
	var b strings.Builder
	for _, en := range entries {
		b.WriteString(en.Name)
		b.WriteString("\n")
	}
	return b.String()
}
