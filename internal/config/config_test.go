package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBatchSize, EnvIncludeComponentInLabels, EnvMediaCache} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	home, _ := os.UserHomeDir()
	wantDataDir := filepath.Join(home, ".jiramigrate")
	if cfg.DataDir != wantDataDir {
		t.Errorf("DataDir: want %s, got %s", wantDataDir, cfg.DataDir)
	}
	wantDB := filepath.Join(wantDataDir, "jiramigrate.db")
	if cfg.DBPath != wantDB {
		t.Errorf("DBPath: want %s, got %s", wantDB, cfg.DBPath)
	}
	if cfg.Import.BatchSize != 20 {
		t.Errorf("BatchSize: want 20, got %d", cfg.Import.BatchSize)
	}
	if !cfg.Import.IncludeComponentInLabels {
		t.Error("expected component labels on by default")
	}
	if cfg.Import.MaxPolls != 0 {
		t.Errorf("MaxPolls: want 0, got %d", cfg.Import.MaxPolls)
	}
	if cfg.Lookup.Labels != "labels_mapping.txt" {
		t.Errorf("Lookup.Labels: got %s", cfg.Lookup.Labels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestExpandHomeWithTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	got := expandHome("~/foo")
	want := filepath.Join(home, "foo")
	if got != want {
		t.Errorf("expandHome(~/foo): want %s, got %s", want, got)
	}
}

func TestExpandHomeAbsolute(t *testing.T) {
	got := expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path): want /absolute/path, got %s", got)
	}
}

func TestExpandHomeTildeOnly(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	got := expandHome("~")
	if got != home {
		t.Errorf("expandHome(~): want %s, got %s", home, got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Import.BatchSize != 20 {
		t.Errorf("BatchSize: want 20, got %d", cfg.Import.BatchSize)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_GH_OWNER", "octocat")
	path := writeConfig(t, `
data_dir: /tmp/jm
jira:
  files: export.xml
  base_url: https://example.atlassian.net
  project: PROJ
github:
  owner: ${TEST_GH_OWNER}
  repo: hello-world
  timeout: 30s
import:
  batch_size: 5
  include_component_in_labels: false
  poll_interval: 250ms
  max_polls: 100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.Owner != "octocat" {
		t.Errorf("Owner: want octocat (expanded), got %q", cfg.GitHub.Owner)
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("Timeout: want 30s, got %v", cfg.GitHub.Timeout)
	}
	if cfg.Import.BatchSize != 5 || cfg.Import.MaxPolls != 100 {
		t.Errorf("unexpected import config: %+v", cfg.Import)
	}
	if cfg.Import.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval: want 250ms, got %v", cfg.Import.PollInterval)
	}
	if cfg.Import.IncludeComponentInLabels {
		t.Error("expected component labels off")
	}
	// Unset keys keep their defaults.
	if cfg.Jira.MilestonePrefix != "facetalk-" {
		t.Errorf("MilestonePrefix: want default, got %q", cfg.Jira.MilestonePrefix)
	}
	if cfg.DBPath == "" {
		t.Error("expected DBPath to be set")
	}
	if err := cfg.ValidateTarget(); err != nil {
		t.Errorf("ValidateTarget: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBatchSize, "7")
	t.Setenv(EnvIncludeComponentInLabels, "false")
	t.Setenv(EnvMediaCache, "https://cache.example.com/")
	path := writeConfig(t, "import:\n  batch_size: 5\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Import.BatchSize != 7 {
		t.Errorf("BatchSize: want 7, got %d", cfg.Import.BatchSize)
	}
	if cfg.Import.IncludeComponentInLabels {
		t.Error("expected component labels off from env")
	}
	if cfg.Jira.MediaCache != "https://cache.example.com/" {
		t.Errorf("MediaCache: got %q", cfg.Jira.MediaCache)
	}
}

func TestLoadInvalidBatchSizeEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBatchSize, "many")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for non-numeric batch size")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "import: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero batch", func(c *Config) { c.Import.BatchSize = 0 }},
		{"negative max polls", func(c *Config) { c.Import.MaxPolls = -1 }},
		{"negative interval", func(c *Config) { c.Import.PollInterval = -time.Second }},
		{"empty ledger", func(c *Config) { c.Import.LedgerPath = "" }},
		{"zero timeout", func(c *Config) { c.GitHub.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateTargetMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateTarget(); err == nil {
		t.Error("expected error without owner/repo")
	}
	cfg.GitHub.Owner, cfg.GitHub.Repo = "o", "r"
	if err := cfg.ValidateTarget(); err == nil {
		t.Error("expected error without jira files")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.DBPath = filepath.Join(tmpDir, "test.db")
	cfg.GitHub.Owner = "octocat"
	cfg.Import.MaxPolls = 50

	path := filepath.Join(tmpDir, "nested", "config.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Read back directly.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["import"]; !ok {
		t.Error("expected import section in saved file")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DBPath != cfg.DBPath {
		t.Errorf("DBPath: want %s, got %s", cfg.DBPath, loaded.DBPath)
	}
	if loaded.GitHub.Owner != "octocat" || loaded.Import.MaxPolls != 50 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.GitHub.Timeout != cfg.GitHub.Timeout {
		t.Errorf("Timeout: want %v, got %v", cfg.GitHub.Timeout, loaded.GitHub.Timeout)
	}
}

func TestEnsureDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "nested", "data")
	cfg := &Config{DataDir: subDir}

	if err := EnsureDataDir(cfg); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}

	info, err := os.Stat(subDir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
}
