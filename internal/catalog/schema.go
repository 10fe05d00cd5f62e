package catalog

// schema is applied idempotently on every open (CREATE TABLE/INDEX IF NOT
// EXISTS), so the catalog never needs a separate migration runner for this
// core's single fixed shape.
const schema = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	original_path TEXT NOT NULL,
	current_path TEXT NOT NULL,
	backup_path TEXT NOT NULL DEFAULT '',
	original_name TEXT NOT NULL,
	current_name TEXT NOT NULL,
	template_id TEXT NOT NULL DEFAULT '',
	template_name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	ai_provider TEXT NOT NULL DEFAULT '',
	ai_model TEXT NOT NULL DEFAULT '',
	ai_prompt TEXT NOT NULL DEFAULT '',
	ai_response TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_files_current_path ON files(current_path);
CREATE INDEX IF NOT EXISTS idx_files_original_path ON files(original_path);

CREATE TABLE IF NOT EXISTS file_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	ai_prompt TEXT NOT NULL DEFAULT '',
	ai_response TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_versions_file_id ON file_versions(file_id);

CREATE TABLE IF NOT EXISTS discovered_files (
	file_path TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	organization_status TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	file_modified DATETIME,
	template_id TEXT NOT NULL DEFAULT '',
	discovered_at DATETIME NOT NULL,
	last_checked DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovered_files_status ON discovered_files(organization_status);
`
