// Package lookup loads the mapping files that steer label, milestone and
// user translation during a migration.
package lookup

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Paths names the four mapping files. Empty paths are skipped.
type Paths struct {
	Labels        string `yaml:"labels"`
	AllowedLabels string `yaml:"allowed_labels"`
	People        string `yaml:"people"`
	JiraUsers     string `yaml:"jira_users"`
}

// DefaultPaths returns the file names used when nothing else is configured.
func DefaultPaths() Paths {
	return Paths{
		Labels:        "labels_mapping.txt",
		AllowedLabels: "allowed_labels.txt",
		People:        "people_mapping.txt",
		JiraUsers:     "jira_user_mapping.txt",
	}
}

// Tables holds the loaded lookup data.
type Tables struct {
	LabelRename map[string]string
	People      map[string]string // jira display name -> target login
	JiraUsers   map[string]string // jira account id -> display name

	// Allowed is nil when no allow-list was loaded, meaning every label passes.
	Allowed map[string]bool
}

// Empty returns tables that rename nothing and allow every label.
func Empty() *Tables {
	return &Tables{
		LabelRename: map[string]string{},
		People:      map[string]string{},
		JiraUsers:   map[string]string{},
	}
}

// Load reads every configured file. Missing files are logged and yield empty tables.
func Load(p Paths) (*Tables, error) {
	t := Empty()

	if err := withFile(p.Labels, func(r io.Reader) error {
		m, err := ParseKeyValue(r)
		t.LabelRename = m
		return err
	}); err != nil {
		return nil, err
	}

	if err := withFile(p.AllowedLabels, func(r io.Reader) error {
		list, err := ParseList(r)
		if err != nil {
			return err
		}
		t.Allowed = make(map[string]bool, len(list))
		for _, l := range list {
			t.Allowed[l] = true
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// people_mapping.txt is written github=jira; invert it.
	if err := withFile(p.People, func(r io.Reader) error {
		m, err := ParseKeyValue(r)
		if err != nil {
			return err
		}
		for target, source := range m {
			t.People[source] = target
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := withFile(p.JiraUsers, func(r io.Reader) error {
		m, err := ParseKeyValue(r)
		t.JiraUsers = m
		return err
	}); err != nil {
		return nil, err
	}

	return t, nil
}

func withFile(path string, fn func(io.Reader) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("lookup file not found", "path", path)
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ParseKeyValue reads key=value lines. Lines starting with '#' and blank lines are ignored.
func ParseKeyValue(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", lineNo)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseList reads one entry per line. Lines starting with '#' and blank lines are ignored.
func ParseList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ConvertLabel renames label through the rename table and then checks it
// against the allow-list. The second result is false when the label is filtered out.
func (t *Tables) ConvertLabel(label string) (string, bool) {
	mapped := label
	if renamed, ok := t.LabelRename[label]; ok {
		mapped = renamed
	}
	if t.Allowed != nil && !t.Allowed[mapped] {
		return "", false
	}
	return mapped, true
}

// TargetUser returns the target login for a jira display name.
func (t *Tables) TargetUser(jiraName string) (string, bool) {
	login, ok := t.People[jiraName]
	return login, ok && login != ""
}

// JiraUserName returns the display name for a jira account id, or the id itself.
func (t *Tables) JiraUserName(accountID string) string {
	if name, ok := t.JiraUsers[accountID]; ok {
		return name
	}
	return accountID
}
