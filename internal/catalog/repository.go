package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/telemetry"
)

// Repository is the Catalog capability the pipeline and daemon consume,
// built in the shape of internal/knowledge.Repository: sqlx struct-scan
// reads, NamedExecContext writes, a tracer span per operation.
type Repository struct {
	db     *sqlx.DB
	logger *logrus.Logger
	tracer trace.Tracer
}

// New opens a Repository against db, applying the schema if not already
// present.
func New(db *sqlx.DB, logger *logrus.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, orgerrors.Catalog(err).WithContext("migrate", "")
	}
	return &Repository{
		db:     db,
		logger: logger,
		tracer: telemetry.Tracer("catalog"),
	}, nil
}

// NewFile builds a File with a fresh id, version 1, and createdAt/updatedAt
// set to now; InsertFile is responsible for persisting it.
func NewFile(originalPath, currentPath string) *File {
	now := time.Now().UTC()
	return &File{
		ID:           uuid.NewString(),
		OriginalPath: originalPath,
		CurrentPath:  currentPath,
		TagsJSON:     "[]",
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// InsertFile persists f and its initial FileVersion row in one transaction:
// the pair exists together or not at all.
func (r *Repository) InsertFile(ctx context.Context, f *File) error {
	ctx, span := r.tracer.Start(ctx, "catalog.InsertFile")
	defer span.End()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		const insertFile = `
			INSERT INTO files (
				id, original_path, current_path, backup_path, original_name, current_name,
				template_id, template_name, category, title, tags_json, summary,
				ai_provider, ai_model, ai_prompt, ai_response, created_at, updated_at, version
			) VALUES (
				:id, :original_path, :current_path, :backup_path, :original_name, :current_name,
				:template_id, :template_name, :category, :title, :tags_json, :summary,
				:ai_provider, :ai_model, :ai_prompt, :ai_response, :created_at, :updated_at, :version
			)`
		if _, err := tx.NamedExecContext(ctx, insertFile, f); err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		return insertVersion(ctx, tx, f)
	})
}

// UpdateFile persists a mutation of an existing File: it increments version
// and inserts a corresponding FileVersion row, both inside one transaction.
func (r *Repository) UpdateFile(ctx context.Context, f *File) error {
	ctx, span := r.tracer.Start(ctx, "catalog.UpdateFile")
	defer span.End()

	f.Version++
	f.UpdatedAt = time.Now().UTC()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		const updateFile = `
			UPDATE files SET
				current_path = :current_path, backup_path = :backup_path, current_name = :current_name,
				template_id = :template_id, template_name = :template_name, category = :category,
				title = :title, tags_json = :tags_json, summary = :summary,
				ai_provider = :ai_provider, ai_model = :ai_model, ai_prompt = :ai_prompt, ai_response = :ai_response,
				updated_at = :updated_at, version = :version
			WHERE id = :id`
		result, err := tx.NamedExecContext(ctx, updateFile, f)
		if err != nil {
			return fmt.Errorf("update file: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("file not found: %s", f.ID)
		}
		return insertVersion(ctx, tx, f)
	})
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, f *File) error {
	v := &Version{
		FileID:     f.ID,
		Version:    f.Version,
		Title:      f.Title,
		Category:   f.Category,
		TagsJSON:   f.TagsJSON,
		Summary:    f.Summary,
		Path:       f.CurrentPath,
		Name:       f.CurrentName,
		AIPrompt:   f.AIPrompt,
		AIResponse: f.AIResponse,
		CreatedAt:  time.Now().UTC(),
	}
	const insertVersionSQL = `
		INSERT INTO file_versions (file_id, version, title, category, tags_json, summary, path, name, ai_prompt, ai_response, created_at)
		VALUES (:file_id, :version, :title, :category, :tags_json, :summary, :path, :name, :ai_prompt, :ai_response, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertVersionSQL, v); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// GetFileByID retrieves a File by its id.
func (r *Repository) GetFileByID(ctx context.Context, id string) (*File, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.GetFileByID")
	defer span.End()

	var f File
	err := r.db.GetContext(ctx, &f, `SELECT * FROM files WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, orgerrors.Catalog(err).WithContext("getFileById", id)
	}
	return &f, nil
}

// GetFileByPath retrieves a File by its current path.
func (r *Repository) GetFileByPath(ctx context.Context, path string) (*File, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.GetFileByPath")
	defer span.End()

	var f File
	err := r.db.GetContext(ctx, &f, `SELECT * FROM files WHERE current_path = ?`, path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, orgerrors.Catalog(err).WithContext("getFileByPath", path)
	}
	return &f, nil
}

// ListFiles returns up to limit files, most recently updated first.
func (r *Repository) ListFiles(ctx context.Context, limit int) ([]*File, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.ListFiles")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	var files []*File
	err := r.db.SelectContext(ctx, &files, `SELECT * FROM files ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, orgerrors.Catalog(err).WithContext("listFiles", "")
	}
	return files, nil
}

// Search performs a case-insensitive LIKE match over title, category,
// tags_json and current_path.
func (r *Repository) Search(ctx context.Context, query string) ([]*File, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.Search")
	defer span.End()

	like := "%" + query + "%"
	const q = `
		SELECT * FROM files
		WHERE title LIKE ? COLLATE NOCASE
		   OR category LIKE ? COLLATE NOCASE
		   OR tags_json LIKE ? COLLATE NOCASE
		   OR current_path LIKE ? COLLATE NOCASE
		ORDER BY updated_at DESC`
	var files []*File
	if err := r.db.SelectContext(ctx, &files, q, like, like, like, like); err != nil {
		return nil, orgerrors.Catalog(err).WithContext("search", query)
	}
	return files, nil
}

// GetVersions returns every FileVersion for fileID, oldest first.
func (r *Repository) GetVersions(ctx context.Context, fileID string) ([]*Version, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.GetVersions")
	defer span.End()

	var versions []*Version
	err := r.db.SelectContext(ctx, &versions, `SELECT * FROM file_versions WHERE file_id = ? ORDER BY version ASC`, fileID)
	if err != nil {
		return nil, orgerrors.Catalog(err).WithContext("getVersions", fileID)
	}
	return versions, nil
}

// DeleteFile removes a File and cascades to its versions (enforced by the
// schema's ON DELETE CASCADE).
func (r *Repository) DeleteFile(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "catalog.DeleteFile")
	defer span.End()

	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return orgerrors.Catalog(err).WithContext("deleteFile", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return orgerrors.Catalog(err).WithContext("deleteFile", id)
	}
	if n == 0 {
		return orgerrors.Catalog(fmt.Errorf("file not found")).WithContext("deleteFile", id)
	}
	return nil
}

// RecordDiscovered upserts a DiscoveredFile row, used both when the watcher
// first sees a path and when the pipeline organizes it.
func (r *Repository) RecordDiscovered(ctx context.Context, d *Discovered) error {
	ctx, span := r.tracer.Start(ctx, "catalog.RecordDiscovered")
	defer span.End()

	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = time.Now().UTC()
	}
	d.LastChecked = time.Now().UTC()

	const q = `
		INSERT INTO discovered_files (file_path, file_name, organization_status, file_size, file_modified, template_id, discovered_at, last_checked)
		VALUES (:file_path, :file_name, :organization_status, :file_size, :file_modified, :template_id, :discovered_at, :last_checked)
		ON CONFLICT(file_path) DO UPDATE SET
			file_name = excluded.file_name,
			organization_status = excluded.organization_status,
			file_size = excluded.file_size,
			file_modified = excluded.file_modified,
			template_id = excluded.template_id,
			last_checked = excluded.last_checked`
	if _, err := r.db.NamedExecContext(ctx, q, d); err != nil {
		return orgerrors.Catalog(err).WithContext("recordDiscovered", d.FilePath)
	}
	return nil
}

// UpdateDiscoveredStatus flips the organization status of an existing
// discovered-file row.
func (r *Repository) UpdateDiscoveredStatus(ctx context.Context, path string, status OrganizationStatus) error {
	ctx, span := r.tracer.Start(ctx, "catalog.UpdateDiscoveredStatus")
	defer span.End()

	const q = `UPDATE discovered_files SET organization_status = ?, last_checked = ? WHERE file_path = ?`
	result, err := r.db.ExecContext(ctx, q, status, time.Now().UTC(), path)
	if err != nil {
		return orgerrors.Catalog(err).WithContext("updateDiscoveredStatus", path)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return orgerrors.Catalog(err).WithContext("updateDiscoveredStatus", path)
	}
	if n == 0 {
		return orgerrors.Catalog(fmt.Errorf("discovered file not found")).WithContext("updateDiscoveredStatus", path)
	}
	return nil
}

// RemoveDiscovered deletes a discovered-file row, used when a file is
// deleted or its record is restored to an untracked state.
func (r *Repository) RemoveDiscovered(ctx context.Context, path string) error {
	ctx, span := r.tracer.Start(ctx, "catalog.RemoveDiscovered")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM discovered_files WHERE file_path = ?`, path); err != nil {
		return orgerrors.Catalog(err).WithContext("removeDiscovered", path)
	}
	return nil
}

// DiscoveredByStatus returns up to limit discovered-file rows with the
// given status, most recently discovered first.
func (r *Repository) DiscoveredByStatus(ctx context.Context, status OrganizationStatus, limit int) ([]*Discovered, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.DiscoveredByStatus")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	var rows []*Discovered
	const q = `SELECT * FROM discovered_files WHERE organization_status = ? ORDER BY discovered_at DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, q, status, limit); err != nil {
		return nil, orgerrors.Catalog(err).WithContext("discoveredByStatus", string(status))
	}
	return rows, nil
}

// GetDiscoveredStats summarizes the discovered_files table for the
// browser view's counters.
func (r *Repository) GetDiscoveredStats(ctx context.Context) (*DiscoveredStats, error) {
	ctx, span := r.tracer.Start(ctx, "catalog.GetDiscoveredStats")
	defer span.End()

	var stats DiscoveredStats
	const q = `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN organization_status = 'organized' THEN 1 END) AS organized,
			COUNT(CASE WHEN organization_status = 'unorganized' THEN 1 END) AS unorganized
		FROM discovered_files`
	if err := r.db.GetContext(ctx, &stats, q); err != nil {
		return nil, orgerrors.Catalog(err).WithContext("getDiscoveredStats", "")
	}
	return &stats, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return orgerrors.Catalog(err).WithContext("begin", "")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if r.logger != nil {
			r.logger.WithError(err).Error("catalog transaction failed")
		}
		return orgerrors.Catalog(err).WithContext("tx", "")
	}
	if err := tx.Commit(); err != nil {
		return orgerrors.Catalog(err).WithContext("commit", "")
	}
	return nil
}

// MarshalTags renders an ordered tag list to the tags_json column format.
func MarshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UnmarshalTags parses the tags_json column back into an ordered list.
func UnmarshalTags(tagsJSON string) []string {
	var tags []string
	if tagsJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}
