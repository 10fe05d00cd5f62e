// Package config implements the organizer's process-wide, read-mostly
// configuration store: a flat set of recognized KEY=VALUE options loaded
// from <CONFIG_DIR>/config, refreshed only on an explicit reload.
//
// Modelled on pkg/config.Manager, but the backing format here is a
// line-oriented KEY=VALUE env file rather than YAML, and reload is
// explicit (Store.Reload) rather than fsnotify-live.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aios/organizer/internal/orgerrors"
)

// Recognized config keys.
const (
	KeyLLMProvider    = "LLM_PROVIDER"
	KeyLLMModel       = "LLM_MODEL"
	KeyLLMBaseURL     = "LLM_BASE_URL"
	KeyOpenAIAPIKey   = "OPENAI_API_KEY"
	KeyGrokAPIKey     = "GROK_API_KEY"
	KeyDeepseekAPIKey = "DEEPSEEK_API_KEY"

	KeyBaseDirectory      = "BASE_DIRECTORY"
	KeyDocumentDirectory  = "DOCUMENT_DIRECTORY"
	KeyPicturesDirectory  = "PICTURES_DIRECTORY"
	KeyMusicDirectory     = "MUSIC_DIRECTORY"
	KeyVideosDirectory    = "VIDEOS_DIRECTORY"
	KeyArchivesDirectory  = "ARCHIVES_DIRECTORY"
	KeyDownloadsDirectory = "DOWNLOADS_DIRECTORY"
	KeyDesktopDirectory   = "DESKTOP_DIRECTORY"
	KeyOthersDirectory    = "OTHERS_DIRECTORY"

	KeyMoveFileOperation = "MOVE_FILE_OPERATION"
	KeyAddFileTags       = "ADD_FILE_TAGS"
	KeyAddFileComments   = "ADD_FILE_COMMENTS"

	KeyPromptForRevisionNumber = "PROMPT_FOR_REVISION_NUMBER"
	KeyPromptForCustomContext = "PROMPT_FOR_CUSTOM_CONTEXT"

	KeyMaxContentWords      = "MAX_CONTENT_WORDS"
	KeyOrganizationTimeout  = "ORGANIZATION_TIMEOUT"
	KeyFileManagerIndexMode = "FILE_MANAGER_INDEX_MODE"

	KeyOrganizationPromptTemplate = "ORGANIZATION_PROMPT_TEMPLATE"
	KeyReanalyzePrompt            = "REANALYZE_PROMPT"
	KeyWatchModePrompt            = "WATCH_MODE_PROMPT"
	KeyImageCaptionPrompt         = "IMAGE_CAPTION_PROMPT"

	// Ambient-stack keys: daemon HTTP surface and pipeline behavior knobs.
	KeyDaemonHTTPAddr            = "DAEMON_HTTP_ADDR"
	KeyTemplateCollisionStrategy = "TEMPLATE_COLLISION_STRATEGY"
	KeyOrganizationMode          = "ORGANIZATION_MODE"
)

var recognizedKeys = map[string]bool{
	KeyLLMProvider: true, KeyLLMModel: true, KeyLLMBaseURL: true,
	KeyOpenAIAPIKey: true, KeyGrokAPIKey: true, KeyDeepseekAPIKey: true,
	KeyBaseDirectory: true, KeyDocumentDirectory: true, KeyPicturesDirectory: true,
	KeyMusicDirectory: true, KeyVideosDirectory: true, KeyArchivesDirectory: true,
	KeyDownloadsDirectory: true, KeyDesktopDirectory: true, KeyOthersDirectory: true,
	KeyMoveFileOperation: true, KeyAddFileTags: true, KeyAddFileComments: true,
	KeyPromptForRevisionNumber: true, KeyPromptForCustomContext: true,
	KeyMaxContentWords: true, KeyOrganizationTimeout: true, KeyFileManagerIndexMode: true,
	KeyOrganizationPromptTemplate: true, KeyReanalyzePrompt: true,
	KeyWatchModePrompt: true, KeyImageCaptionPrompt: true,
	KeyDaemonHTTPAddr: true, KeyTemplateCollisionStrategy: true, KeyOrganizationMode: true,
}

// Defaults for keys a caller may omit.
var defaults = map[string]string{
	KeyMaxContentWords:           "2000",
	KeyOrganizationTimeout:       "180",
	KeyMoveFileOperation:         "true",
	KeyFileManagerIndexMode:      "on-demand",
	KeyDaemonHTTPAddr:            ":8090",
	KeyTemplateCollisionStrategy: "counter",
	KeyOrganizationMode:          "multi",
}

// Store is the process-wide configuration. It is safe for concurrent reads;
// Reload replaces the underlying viper instance wholesale so in-flight
// readers never observe a half-updated document.
type Store struct {
	configDir string
	v         *viper.Viper
}

// Load reads <configDir>/config (KEY=VALUE, one per line) via viper's "env"
// config type, applies defaults, and validates that LLM_PROVIDER is present.
func Load(configDir string) (*Store, error) {
	s := &Store{configDir: configDir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the config file from disk. The new values apply to every
// later read through this Store, including reads made by a pipeline
// invocation that is already running: the pipeline holds the Store itself,
// not a snapshot of its values.
func (s *Store) Reload() error { return s.reload() }

func (s *Store) reload() error {
	v := viper.New()
	v.SetConfigFile(filepath.Join(s.configDir, "config"))
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvPrefix("ORGANIZER")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		return orgerrors.Config(fmt.Errorf("reading config file: %w", err))
	}

	for _, k := range v.AllKeys() {
		upper := strings.ToUpper(k)
		if !recognizedKeys[upper] {
			// Forward-compatible: unrecognized keys are tolerated, not fatal.
			continue
		}
	}

	if v.GetString(KeyLLMProvider) == "" {
		return orgerrors.Config(fmt.Errorf("required key %s is missing", KeyLLMProvider))
	}

	s.v = v
	return nil
}

// Get returns the raw string value for key, or "" if unset.
func (s *Store) Get(key string) string { return s.v.GetString(key) }

// GetBool parses key as a bool ("true"/"false"/"1"/"0"), defaulting to false.
func (s *Store) GetBool(key string) bool { return s.v.GetBool(key) }

// GetInt parses key as an int, returning 0 on a missing or malformed value.
func (s *Store) GetInt(key string) int { return s.v.GetInt(key) }

// MoveFile reports whether MOVE_FILE_OPERATION selects move (true) vs copy (false).
func (s *Store) MoveFile() bool { return s.GetBool(KeyMoveFileOperation) }

// MaxContentWords is the extractor excerpt cap.
func (s *Store) MaxContentWords() int {
	if n := s.GetInt(KeyMaxContentWords); n > 0 {
		return n
	}
	n, _ := strconv.Atoi(defaults[KeyMaxContentWords])
	return n
}

// ConfigDir returns the directory this store was loaded from.
func (s *Store) ConfigDir() string { return s.configDir }

// OrganizationTimeout is the per-file pipeline deadline.
func (s *Store) OrganizationTimeout() time.Duration {
	secs := s.GetInt(KeyOrganizationTimeout)
	if secs <= 0 {
		secs, _ = strconv.Atoi(defaults[KeyOrganizationTimeout])
	}
	return time.Duration(secs) * time.Second
}

// OrganizationMode reports ORGANIZATION_MODE ("single" or "multi"), the
// switch between the single-call and multi-call analysis pipeline.
func (s *Store) OrganizationMode() string {
	if v := s.Get(KeyOrganizationMode); v != "" {
		return v
	}
	return defaults[KeyOrganizationMode]
}

// CollisionStrategy reports TEMPLATE_COLLISION_STRATEGY ("counter" or "hash").
func (s *Store) CollisionStrategy() string {
	if v := s.Get(KeyTemplateCollisionStrategy); v != "" {
		return v
	}
	return defaults[KeyTemplateCollisionStrategy]
}

// DaemonHTTPAddr is the listen address for the daemon's health/metrics/events surface.
func (s *Store) DaemonHTTPAddr() string {
	if v := s.Get(KeyDaemonHTTPAddr); v != "" {
		return v
	}
	return defaults[KeyDaemonHTTPAddr]
}

// categoryDirectoryKeys maps an extractor MIME category to the config key
// holding its default destination directory.
var categoryDirectoryKeys = map[string]string{
	"Documents": KeyDocumentDirectory,
	"Pictures":  KeyPicturesDirectory,
	"Music":     KeyMusicDirectory,
	"Videos":    KeyVideosDirectory,
	"Archives":  KeyArchivesDirectory,
	"Others":    KeyOthersDirectory,
}

// CategoryDirectory resolves the configured default directory for a MIME
// category, falling back to BASE_DIRECTORY when the category has no
// dedicated key configured.
func (s *Store) CategoryDirectory(category string) string {
	if key, ok := categoryDirectoryKeys[category]; ok {
		if v := s.Get(key); v != "" {
			return v
		}
	}
	return s.Get(KeyBaseDirectory)
}

// Default prompt templates used when the corresponding config key is
// unset.
const (
	defaultOrganizationPrompt = "Analyze the file {fileName} ({mimeType}) and respond as JSON. Content:\n{fileContent}\n{additionalPrompts}"
	defaultWatchModePrompt    = "Classify the new file {fileName} ({mimeType}) as JSON. Content:\n{fileContent}"
	defaultReanalyzePrompt    = "Re-analyze the file {fileName} ({mimeType}) as JSON. Content:\n{fileContent}"
	defaultImageCaptionPrompt = "Describe the contents of this image in one sentence."
)

// PromptTemplate resolves one of the four configurable prompt strings,
// falling back to a built-in default when the key is unset.
func (s *Store) PromptTemplate(key string) string {
	if v := s.Get(key); v != "" {
		return v
	}
	switch key {
	case KeyOrganizationPromptTemplate:
		return defaultOrganizationPrompt
	case KeyWatchModePrompt:
		return defaultWatchModePrompt
	case KeyReanalyzePrompt:
		return defaultReanalyzePrompt
	case KeyImageCaptionPrompt:
		return defaultImageCaptionPrompt
	default:
		return ""
	}
}

// LLMProvider, LLMModel, LLMBaseURL and the per-provider API key getters
// expose the Chat Provider's construction inputs.
func (s *Store) LLMProvider() string { return s.Get(KeyLLMProvider) }
func (s *Store) LLMModel() string    { return s.Get(KeyLLMModel) }
func (s *Store) LLMBaseURL() string  { return s.Get(KeyLLMBaseURL) }

func (s *Store) APIKey(provider string) string {
	switch provider {
	case "openai":
		return s.Get(KeyOpenAIAPIKey)
	case "grok":
		return s.Get(KeyGrokAPIKey)
	case "deepseek":
		return s.Get(KeyDeepseekAPIKey)
	default:
		return ""
	}
}
