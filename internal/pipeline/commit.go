package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/aios/organizer/internal/analysis"
	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/template"
)

// commit runs the commit stage: resolve, mkdir, backup, move-or-copy,
// sidecar mark, catalog transaction, discovered-file upsert. If any step
// through the sidecar mark fails fatally, the catalog insert (step 6) is
// never attempted, so a file never ends up half-recorded.
func (p *Pipeline) commit(ctx context.Context, sourcePath string, excerpt *extractor.Excerpt, result *analysis.Result) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.commit")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, orgerrors.Cancelled(err)
	}

	fillMissingCore(result, excerpt)

	tmpl, err := p.resolveTemplate(result, excerpt)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(sourcePath)
	target, err := template.Resolve(tmpl, result, ext)
	if err != nil {
		return nil, err
	}
	target = p.resolveCollision(target)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, orgerrors.CommitFailed(err).WithContext("mkdir", filepath.Dir(target))
	}

	backupPath, err := p.backup(sourcePath)
	if err != nil {
		return nil, orgerrors.CommitFailed(err).WithContext("backup", sourcePath)
	}

	if p.deps.Config.MoveFile() {
		if err := renameOrCopy(sourcePath, target); err != nil {
			return nil, orgerrors.CommitFailed(err).WithContext("move", target)
		}
	} else {
		if err := copyFile(sourcePath, target); err != nil {
			return nil, orgerrors.CommitFailed(err).WithContext("copy", target)
		}
	}

	f := catalog.NewFile(sourcePath, target)
	f.BackupPath = backupPath
	f.OriginalName = excerpt.OriginalName
	f.CurrentName = filepath.Base(target)
	f.TemplateID = tmpl.ID
	f.TemplateName = tmpl.Name
	applyResultToFile(f, result, p.deps.Provider)

	if p.deps.Sidecar != nil {
		meta := sidecar.Metadata{OrganizedAt: time.Now().UTC(), TemplateID: tmpl.ID, FileID: f.ID}
		if err := p.deps.Sidecar.Mark(target, meta); err != nil && p.deps.Logger != nil {
			// Step 5 failure is tolerated: logged, not fatal.
			p.deps.Logger.WithError(err).WithField("path", target).WithField("file_id", f.ID).Warn("sidecar mark failed")
		}
	}

	if err := ctx.Err(); err != nil {
		// Cancellation observed after the filesystem steps but before the
		// catalog write: skip the insert so no half-recorded state
		// persists.
		return nil, orgerrors.Cancelled(err)
	}

	if err := p.deps.Catalog.InsertFile(ctx, f); err != nil {
		return nil, err
	}

	if err := p.deps.Catalog.RecordDiscovered(ctx, &catalog.Discovered{
		FilePath: target, FileName: f.CurrentName, OrganizationStatus: catalog.StatusOrganized, TemplateID: tmpl.ID,
	}); err != nil && p.deps.Logger != nil {
		p.deps.Logger.WithError(err).WithField("path", target).WithField("file_id", f.ID).Warn("recording discovered file failed")
	}
	if sourcePath != target {
		_ = p.deps.Catalog.RemoveDiscovered(ctx, sourcePath)
	}

	return &Outcome{File: f, Analysis: result, Path: target}, nil
}

// fillMissingCore guarantees an organized file never ends up with an empty
// title or category: an empty category falls back to the extractor's
// MIME-derived category, and an empty title falls back to the source file's
// base name with its extension stripped.
func fillMissingCore(result *analysis.Result, excerpt *extractor.Excerpt) {
	if result.Category == "" {
		result.Category = string(excerpt.MIMECategory)
	}
	if result.Title == "" {
		base := excerpt.OriginalName
		result.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
}

// resolveTemplate picks the destination template: the registered template
// named by the analysis's selectedTemplateId, or a synthetic fallback
// template rooted at the excerpt's category directory when no registered
// template is selected.
func (p *Pipeline) resolveTemplate(result *analysis.Result, excerpt *extractor.Excerpt) (*template.Template, error) {
	if id, ok := result.StringField("selectedTemplateId"); ok {
		if tmpl, found := p.deps.Templates.Get(id); found {
			return tmpl, nil
		}
	}
	return fallbackTemplate(p.deps.Config.CategoryDirectory(string(excerpt.MIMECategory))), nil
}

// fallbackTemplate synthesizes a template for unorganized categories with
// no registered template: basePath/category/title.
func fallbackTemplate(basePath string) *template.Template {
	return &template.Template{
		ID:              "default",
		Name:            "default",
		BasePath:        basePath,
		NamingStructure: "{file_category_1}/{file_title}",
		FileNameCase:    template.CaseSnake,
	}
}

// resolveCollision applies TEMPLATE_COLLISION_STRATEGY: append a
// disambiguating suffix when target already exists.
// "counter" (default) tries -2, -3, ...; "hash" appends an 8-hex-char
// blake2b digest of the original target path.
func (p *Pipeline) resolveCollision(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}

	ext := filepath.Ext(target)
	base := target[:len(target)-len(ext)]

	if p.deps.Config.CollisionStrategy() == "hash" {
		sum := blake2b.Sum256([]byte(target))
		return fmt.Sprintf("%s-%x%s", base, sum[:4], ext)
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func (p *Pipeline) backup(sourcePath string) (string, error) {
	backupDir := filepath.Join(p.deps.Config.ConfigDir(), "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.backup.%d", filepath.Base(sourcePath), time.Now().UnixMilli())
	backupPath := filepath.Join(backupDir, name)
	if err := copyFile(sourcePath, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

func renameOrCopy(source, target string) error {
	if err := os.Rename(source, target); err != nil {
		// os.Rename fails across filesystems/devices; fall back to
		// copy+remove so "move" still behaves like one across mount points.
		if copyErr := copyFile(source, target); copyErr != nil {
			return copyErr
		}
		return os.Remove(source)
	}
	return nil
}

func copyFile(source, target string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

// applyResultToFile copies an AnalysisResult's fields onto a catalog.File,
// including the prompt and response stored in its rawPrompt and
// rawResponse fields. The single-call and watch-mode analyses set only
// rawPrompt, and multi-call mode sets neither, so AIResponse stays empty
// for files organized by this package.
func applyResultToFile(f *catalog.File, result *analysis.Result, provider chatprovider.Provider) {
	f.Title = result.Title
	f.Summary = result.Summary
	f.Category = result.Category
	f.TagsJSON = catalog.MarshalTags(result.Tags)
	if provider != nil {
		f.AIProvider = string(provider.Variant())
		f.AIModel = provider.Model()
	}
	if prompt, ok := result.StringField("rawPrompt"); ok {
		f.AIPrompt = prompt
	}
	if resp, ok := result.StringField("rawResponse"); ok {
		f.AIResponse = resp
	}
}
