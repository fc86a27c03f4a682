// Package config loads the migration settings from a YAML file, the
// environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jmaddaus/jiramigrate/internal/lookup"
)

// Environment overrides.
const (
	EnvBatchSize                = "JIRA_MIGRATION_BATCH_SIZE"
	EnvIncludeComponentInLabels = "JIRA_MIGRATION_INCLUDE_COMPONENT_IN_LABELS"
	EnvMediaCache               = "JIRA_MIGRATION_MEDIA_CACHE"
)

// Config holds everything a migration run needs.
type Config struct {
	DataDir string `yaml:"data_dir"` // default "~/.jiramigrate"
	DBPath  string `yaml:"db_path"`  // default "{data_dir}/jiramigrate.db"

	Jira   JiraConfig   `yaml:"jira"`
	GitHub GitHubConfig `yaml:"github"`
	Import ImportConfig `yaml:"import"`
	Lookup lookup.Paths `yaml:"lookup"`
}

// JiraConfig describes the source export.
type JiraConfig struct {
	// Files is a ';'-separated list of XML exports or directories of them.
	Files                string `yaml:"files"`
	BaseURL              string `yaml:"base_url"`
	Project              string `yaml:"project"`
	DoneStatusCategoryID string `yaml:"done_status_category_id"`
	MilestonePrefix      string `yaml:"milestone_prefix"`
	MediaCache           string `yaml:"media_cache"`
}

// GitHubConfig describes the target repository.
type GitHubConfig struct {
	Owner   string        `yaml:"owner"`
	Repo    string        `yaml:"repo"`
	Token   string        `yaml:"token,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	BatchSize                int           `yaml:"batch_size"`
	IncludeComponentInLabels bool          `yaml:"include_component_in_labels"`
	LedgerPath               string        `yaml:"ledger_path"`
	PollInitialWait          time.Duration `yaml:"poll_initial_wait"`
	PollInterval             time.Duration `yaml:"poll_interval"`
	MaxPolls                 int           `yaml:"max_polls"` // 0 = unbounded
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".jiramigrate")
	return &Config{
		DataDir: dataDir,
		DBPath:  filepath.Join(dataDir, "jiramigrate.db"),
		Jira: JiraConfig{
			DoneStatusCategoryID: "3",
			MilestonePrefix:      "facetalk-",
		},
		GitHub: GitHubConfig{
			Timeout: 120 * time.Second,
		},
		Import: ImportConfig{
			BatchSize:                20,
			IncludeComponentInLabels: true,
			LedgerPath:               "jira-keys-to-github-id.txt",
			PollInterval:             time.Second,
		},
		Lookup: lookup.DefaultPaths(),
	}
}

// DefaultPath returns the config file consulted when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultConfig().DataDir, "config.yaml")
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Load reads configuration from path, or DefaultPath when path is empty.
// A missing file yields the defaults. ${VAR} references in the file are
// expanded, and a .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Expand home directory references.
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.Import.LedgerPath = expandHome(cfg.Import.LedgerPath)

	// If DBPath is empty after loading, set the default relative to DataDir.
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "jiramigrate.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBatchSize, v, err)
		}
		c.Import.BatchSize = n
	}
	if v, ok := os.LookupEnv(EnvIncludeComponentInLabels); ok {
		c.Import.IncludeComponentInLabels = v == "true"
	}
	if v := os.Getenv(EnvMediaCache); v != "" {
		c.Jira.MediaCache = v
	}
	return nil
}

// Validate checks that the Config contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be at least 1, got %d", c.Import.BatchSize)
	}
	if c.Import.MaxPolls < 0 {
		return fmt.Errorf("import.max_polls must not be negative")
	}
	if c.Import.PollInitialWait < 0 || c.Import.PollInterval < 0 {
		return fmt.Errorf("import poll durations must not be negative")
	}
	if c.Import.LedgerPath == "" {
		return fmt.Errorf("import.ledger_path must not be empty")
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be positive")
	}
	return nil
}

// ValidateTarget checks the settings only an import needs.
func (c *Config) ValidateTarget() error {
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo must be set")
	}
	if c.Jira.Files == "" {
		return fmt.Errorf("jira.files must be set")
	}
	return nil
}

// Save writes the configuration to path as YAML.
func Save(cfg *Config, path string) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	return nil
}
