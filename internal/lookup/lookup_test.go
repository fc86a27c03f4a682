package lookup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValue(t *testing.T) {
	in := "# comment\nBug = bug\n\nnew feature=enhancement\nweird=a=b\n"
	m, err := ParseKeyValue(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Bug":         "bug",
		"new feature": "enhancement",
		"weird":       "a=b",
	}, m)
}

func TestParseKeyValueMissingSeparator(t *testing.T) {
	_, err := ParseKeyValue(strings.NewReader("ok=1\nbroken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseList(t *testing.T) {
	list, err := ParseList(strings.NewReader("#header\nbug\r\n\nenhancement\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bug", "enhancement"}, list)
}

func TestConvertLabel(t *testing.T) {
	tables := Empty()
	tables.LabelRename["new feature"] = "enhancement"

	got, ok := tables.ConvertLabel("new feature")
	require.True(t, ok)
	assert.Equal(t, "enhancement", got)

	// No allow-list loaded: anything passes.
	got, ok = tables.ConvertLabel("whatever")
	require.True(t, ok)
	assert.Equal(t, "whatever", got)

	tables.Allowed = map[string]bool{"enhancement": true}
	_, ok = tables.ConvertLabel("whatever")
	assert.False(t, ok)
	got, ok = tables.ConvertLabel("new feature")
	require.True(t, ok)
	assert.Equal(t, "enhancement", got)
}

func TestConvertLabelEmptyAllowList(t *testing.T) {
	tables := Empty()
	tables.Allowed = map[string]bool{}
	_, ok := tables.ConvertLabel("bug")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	paths := Paths{
		Labels:        write("labels.txt", "Bug=bug\n"),
		AllowedLabels: write("allowed.txt", "bug\njira\n"),
		People:        write("people.txt", "# github=jira\noctocat=Jane Doe\n"),
		JiraUsers:     write("users.txt", "5b10a2844c20165700ede21g=Jane Doe\n"),
	}

	tables, err := Load(paths)
	require.NoError(t, err)

	assert.Equal(t, "bug", tables.LabelRename["Bug"])
	assert.True(t, tables.Allowed["jira"])

	login, ok := tables.TargetUser("Jane Doe")
	require.True(t, ok)
	assert.Equal(t, "octocat", login)

	assert.Equal(t, "Jane Doe", tables.JiraUserName("5b10a2844c20165700ede21g"))
	assert.Equal(t, "unknown-id", tables.JiraUserName("unknown-id"))
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	tables, err := Load(Paths{
		Labels:        filepath.Join(dir, "nope1"),
		AllowedLabels: filepath.Join(dir, "nope2"),
	})
	require.NoError(t, err)
	assert.Empty(t, tables.LabelRename)
	assert.Nil(t, tables.Allowed)

	_, ok := tables.TargetUser("anyone")
	assert.False(t, ok)
}
