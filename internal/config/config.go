package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SaveDir string `toml:"save_dir"`
	LogDir  string `toml:"log_dir"`
}

// Portal contains the base URLs of the university services. They default to
// the production endpoints and are overridable so tests can point the client
// at local fakes.
type Portal struct {
	CASBaseURL       string `toml:"cas_base_url"`
	CoursesBaseURL   string `toml:"courses_base_url"`
	ClassroomBaseURL string `toml:"classroom_base_url"`
	MediaBaseURL     string `toml:"media_base_url"`
	SearchBaseURL    string `toml:"search_base_url"`
	RecordsBaseURL   string `toml:"records_base_url"`
	ProbeURL         string `toml:"probe_url"`
	TenantCode       string `toml:"tenant_code"`
	UserAgent        string `toml:"user_agent"`
}

// Download contains download engine policy.
type Download struct {
	MaxConcurrent int  `toml:"max_concurrent"`
	ComposePDF    bool `toml:"compose_pdf"`
	SkipSynced    bool `toml:"skip_synced"`
}

// Subtitles contains lecture subtitle retrieval settings.
type Subtitles struct {
	Enabled   bool     `toml:"enabled"`
	Languages []string `toml:"languages"`
	Format    string   `toml:"format"`
}

// LLM contains settings for the optional summarization pass.
type LLM struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	Prompt         string  `toml:"prompt"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Notifications contains webhook notification settings.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
	ScoreChanges   bool   `toml:"score_changes"`
	Errors         bool   `toml:"errors"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration for lectern.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Portal        Portal        `toml:"portal"`
	Download      Download      `toml:"download"`
	Subtitles     Subtitles     `toml:"subtitles"`
	LLM           LLM           `toml:"llm"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() string {
	return expandHome("~/.config/lectern/config.toml")
}

// Load reads the configuration at path, applies defaults for unset fields,
// normalizes paths, and validates the result. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the configured save and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SaveDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
