package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const exportXML = `<rss><channel>
<item>
  <title>[PROJ-1] One</title><key>PROJ-1</key><type>Bug</type>
  <component>Backend</component>
  <labels><label>facetalk-1.0</label></labels>
  <created>Mon, 2 Jan 2023 15:04:05 +0000</created>
</item>
<item>
  <title>[PROJ-2] Two</title><key>PROJ-2</key><type>Task</type>
  <created>Tue, 3 Jan 2023 15:04:05 +0000</created>
</item>
</channel></rss>`

// testEnv is a temp workspace with an export and a config file.
type testEnv struct {
	dir        string
	configPath string
	ledgerPath string
	dbPath     string
}

func newTestEnv(t *testing.T, apiURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		ledgerPath: filepath.Join(dir, "ledger.txt"),
		dbPath:     filepath.Join(dir, "data", "jiramigrate.db"),
	}
	exportPath := filepath.Join(dir, "export.xml")
	if err := os.WriteFile(exportPath, []byte(exportXML), 0644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	cfg := fmt.Sprintf(`data_dir: %s
db_path: %s
jira:
  files: %s
  base_url: https://example.atlassian.net
github:
  owner: o
  repo: r
  base_url: %s
import:
  ledger_path: %s
  poll_interval: 1ms
lookup:
  labels: %s
  allowed_labels: ""
  people: ""
  jira_users: ""
`, filepath.Join(dir, "data"), env.dbPath, exportPath, apiURL, env.ledgerPath, filepath.Join(dir, "absent.txt"))
	if err := os.WriteFile(env.configPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GITHUB_TOKEN", "test-token")
	for _, k := range []string{"JIRA_MIGRATION_BATCH_SIZE", "JIRA_MIGRATION_INCLUDE_COMPONENT_IN_LABELS", "JIRA_MIGRATION_MEDIA_CACHE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return env
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

// fakeGitHub serves the milestone, label and import endpoints.
type fakeGitHub struct {
	mu         sync.Mutex
	milestones []string
	labels     []string
	imports    []string
}

func (f *fakeGitHub) handler(t *testing.T, srvURL *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token on %s %s", r.Method, r.URL.Path)
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/o/r/milestones":
			w.Write([]byte(`[]`))
		case r.Method == http.MethodPost && r.URL.Path == "/repos/o/r/milestones":
			var body struct{ Title string }
			json.NewDecoder(r.Body).Decode(&body)
			f.milestones = append(f.milestones, body.Title)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"number":%d,"title":%q}`, len(f.milestones), body.Title)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/o/r/labels":
			var body struct{ Name string }
			json.NewDecoder(r.Body).Decode(&body)
			f.labels = append(f.labels, body.Name)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && r.URL.Path == "/repos/o/r/import/issues":
			data, _ := io.ReadAll(r.Body)
			f.imports = append(f.imports, string(data))
			n := len(f.imports)
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprintf(w, `{"id":%d,"status":"pending","url":"%s/repos/o/r/import/issues/%d"}`, n, *srvURL, n)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repos/o/r/import/issues/"):
			n := strings.TrimPrefix(r.URL.Path, "/repos/o/r/import/issues/")
			fmt.Fprintf(w, `{"status":"imported","issue_url":"%s/repos/o/r/issues/10%s"}`, *srvURL, n)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{}
	var srvURL string
	srv := httptest.NewServer(f.handler(t, &srvURL))
	srvURL = srv.URL
	t.Cleanup(srv.Close)
	return f, srv
}

func readLedger(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// ---------------------------------------------------------------------------
// Root
// ---------------------------------------------------------------------------

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "jiramigrate version test\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := execute(t, "bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"short", "****"},
		{"exactly12chr", "****"},
		{"ghp_abcdefghijklmnop", "ghp_...mnop"},
	}
	for _, tt := range tests {
		if got := maskToken(tt.token); got != tt.want {
			t.Errorf("maskToken(%q): want %q, got %q", tt.token, tt.want, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Analyze / offset
// ---------------------------------------------------------------------------

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	out, err := execute(t, "--config", env.configPath, "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"PROJ:", "Milestones:", "facetalk-1.0", "Backend", "Total Issues to Import: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("analyze output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeMissingExport(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")
	os.Remove(filepath.Join(env.dir, "export.xml"))

	if _, err := execute(t, "--config", env.configPath, "analyze"); err == nil {
		t.Fatal("expected error for missing export")
	}
}

func TestOffset(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")
	if err := os.WriteFile(env.ledgerPath, []byte("### Tue Mar  5 14:07:09 2024\nPROJ-1:101\n"), 0644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	out, err := execute(t, "--config", env.configPath, "offset")
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("offset: want 1, got %q", out)
	}
}

// ---------------------------------------------------------------------------
// Migrate
// ---------------------------------------------------------------------------

func TestMigrateEndToEnd(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	env := newTestEnv(t, srv.URL)

	out, err := execute(t, "--config", env.configPath, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v\n%s", err, out)
	}

	lines := readLedger(t, env.ledgerPath)
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "### ") {
		t.Fatalf("unexpected ledger: %v", lines)
	}
	if lines[1] != "PROJ-1:101" || lines[2] != "PROJ-2:102" {
		t.Errorf("unexpected ledger entries: %v", lines[1:])
	}

	if len(gh.milestones) != 1 || gh.milestones[0] != "facetalk-1.0" {
		t.Errorf("milestones: %v", gh.milestones)
	}
	if len(gh.imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(gh.imports))
	}
	if !strings.Contains(gh.imports[0], `"milestone":1`) {
		t.Errorf("first import should carry milestone 1: %s", gh.imports[0])
	}
	if !strings.Contains(out, "imported: 2") {
		t.Errorf("summary missing from output:\n%s", out)
	}

	runsOut, err := execute(t, "--config", env.configPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(runsOut, "o/r") || strings.Contains(runsOut, "No runs recorded.") {
		t.Errorf("runs output missing run:\n%s", runsOut)
	}
}

func TestMigrateResume(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	env := newTestEnv(t, srv.URL)
	if err := os.WriteFile(env.ledgerPath, []byte("### Tue Mar  5 14:07:09 2024\nPROJ-1:101\n"), 0644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	if _, err := execute(t, "--config", env.configPath, "migrate", "--resume"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if len(gh.imports) != 1 || !strings.Contains(gh.imports[0], "Two") {
		t.Fatalf("expected only the second issue to be imported, got %v", gh.imports)
	}
	lines := readLedger(t, env.ledgerPath)
	if lines[len(lines)-1] != "PROJ-2:101" {
		t.Errorf("unexpected last ledger line: %v", lines)
	}
}

func TestMigrateResumeAndStartFromConflict(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")
	if _, err := execute(t, "--config", env.configPath, "migrate", "--resume", "--start-from", "1"); err == nil {
		t.Fatal("expected error for conflicting flags")
	}
}

func TestMigrateRequiresTarget(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")
	cfg := strings.Replace(mustRead(t, env.configPath), "  owner: o\n", "", 1)
	if err := os.WriteFile(env.configPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := execute(t, "--config", env.configPath, "migrate"); err == nil {
		t.Fatal("expected error without github.owner")
	}
}

func TestRunsEmpty(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")
	out, err := execute(t, "--config", env.configPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
