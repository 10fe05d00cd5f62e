// Package catalog implements the File Catalog: a persistent, versioned
// record of every organized file plus a discovered-files index, built the
// way internal/knowledge.Repository builds a relational index over
// sqlx struct-scans — here over organized files/versions instead of
// knowledge bases/documents, and over the embedded sqlite connection in
// pkg/database rather than a networked Postgres.
package catalog

import "time"

// File is a catalog row: the current state of one organized file.
type File struct {
	ID           string    `db:"id"`
	OriginalPath string    `db:"original_path"`
	CurrentPath  string    `db:"current_path"`
	BackupPath   string    `db:"backup_path"`
	OriginalName string    `db:"original_name"`
	CurrentName  string    `db:"current_name"`
	TemplateID   string    `db:"template_id"`
	TemplateName string    `db:"template_name"`
	Category     string    `db:"category"`
	Title        string    `db:"title"`
	TagsJSON     string    `db:"tags_json"`
	Summary      string    `db:"summary"`
	AIProvider   string    `db:"ai_provider"`
	AIModel      string    `db:"ai_model"`
	AIPrompt     string    `db:"ai_prompt"`
	AIResponse   string    `db:"ai_response"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Version      int       `db:"version"`
}

// Version is an append-only snapshot of a File at a point in its history.
// One row exists on initial insert and on every subsequent mutation.
type Version struct {
	ID         int64     `db:"id"`
	FileID     string    `db:"file_id"`
	Version    int       `db:"version"`
	Title      string    `db:"title"`
	Category   string    `db:"category"`
	TagsJSON   string    `db:"tags_json"`
	Summary    string    `db:"summary"`
	Path       string    `db:"path"`
	Name       string    `db:"name"`
	AIPrompt   string    `db:"ai_prompt"`
	AIResponse string    `db:"ai_response"`
	CreatedAt  time.Time `db:"created_at"`
}

// OrganizationStatus is the closed set of values a DiscoveredFile's status
// can take.
type OrganizationStatus string

const (
	StatusOrganized   OrganizationStatus = "organized"
	StatusUnorganized OrganizationStatus = "unorganized"
)

// Discovered is the browser-view index row: a file the system has seen,
// independent of whether it has been organized.
type Discovered struct {
	FilePath           string             `db:"file_path"`
	FileName           string             `db:"file_name"`
	OrganizationStatus OrganizationStatus `db:"organization_status"`
	FileSize           int64              `db:"file_size"`
	FileModified       time.Time          `db:"file_modified"`
	TemplateID         string             `db:"template_id"`
	DiscoveredAt       time.Time          `db:"discovered_at"`
	LastChecked        time.Time          `db:"last_checked"`
}

// DiscoveredStats summarizes the discovered_files table for the browser
// view's counters.
type DiscoveredStats struct {
	Total       int `db:"total"`
	Organized   int `db:"organized"`
	Unorganized int `db:"unorganized"`
}
