package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command tree against a private HOME and memory root.
func run(t *testing.T, root string, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--root", root}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return filepath.Join(t.TempDir(), "bank")
}

func decode(t *testing.T, out string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestCLI_Root(t *testing.T) {
	want := []string{"put", "get", "list", "delete", "recent", "tags", "docs", "prune", "config", "tools"}
	names := map[string]bool{}
	for _, c := range NewRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCLI_Docs_Subcommands(t *testing.T) {
	for _, cmd := range NewRootCmd().Commands() {
		if cmd.Name() == "docs" {
			if len(cmd.Commands()) != 3 {
				t.Errorf("expected lookup, store and fetch subcommands for docs, got %d", len(cmd.Commands()))
			}
			return
		}
	}
	t.Error("docs command not found")
}

func TestCLI_PutGetDelete(t *testing.T) {
	root := setup(t)

	_, err := run(t, root, "", "put", "ideas", "k1", "--data", `{"title":"cache docs"}`, "--tag", "a", "--tag", "b", "--importance", "0.5")
	require.NoError(t, err)

	out, err := run(t, root, "", "--json", "get", "ideas", "k1")
	require.NoError(t, err)
	var obj struct {
		Data     map[string]interface{} `json:"data"`
		Metadata struct {
			Category   string   `json:"category"`
			Key        string   `json:"key"`
			Tags       []string `json:"tags"`
			Importance *float64 `json:"importance"`
			TTL        *float64 `json:"ttl"`
		} `json:"metadata"`
	}
	decode(t, out, &obj)
	assert.Equal(t, "cache docs", obj.Data["title"])
	assert.Equal(t, "ideas", obj.Metadata.Category)
	assert.Equal(t, []string{"a", "b"}, obj.Metadata.Tags)
	require.NotNil(t, obj.Metadata.Importance)
	assert.Equal(t, 0.5, *obj.Metadata.Importance)
	assert.Nil(t, obj.Metadata.TTL)

	out, err = run(t, root, "", "get", "ideas", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "ideas / k1")

	_, err = run(t, root, "", "delete", "ideas", "k1")
	require.NoError(t, err)
	_, err = run(t, root, "", "delete", "ideas", "k1")
	require.NoError(t, err, "delete is idempotent")

	_, err = run(t, root, "", "get", "ideas", "k1")
	assert.Error(t, err)
}

func TestCLI_PutInputs(t *testing.T) {
	root := setup(t)

	out, err := run(t, root, "", "--json", "put", "notes", "--text", "plain words")
	require.NoError(t, err)
	var obj struct {
		Data     interface{} `json:"data"`
		Metadata struct {
			Key string `json:"key"`
		} `json:"metadata"`
	}
	decode(t, out, &obj)
	assert.Equal(t, "plain words", obj.Data)
	assert.Len(t, obj.Metadata.Key, 36, "generated key is a uuid")

	_, err = run(t, root, `[1, 2, 3]`, "put", "notes", "seq", "--stdin")
	require.NoError(t, err)
	out, err = run(t, root, "", "--json", "get", "notes", "seq")
	require.NoError(t, err)
	decode(t, out, &obj)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, obj.Data)

	_, err = run(t, root, "", "put", "notes", "k")
	assert.Error(t, err, "a value is required")
	_, err = run(t, root, "", "put", "notes", "k", "--data", "{not json")
	assert.Error(t, err)
	_, err = run(t, root, "", "put", "notes", "k", "--text", "x", "--data", "1")
	assert.Error(t, err)
	_, err = run(t, root, "", "put", "", "k", "--text", "x")
	assert.Error(t, err, "empty category fails validation")
	_, err = run(t, root, "", "put", "notes", "k", "--text", "x", "--importance", "2")
	assert.Error(t, err)
}

func TestCLI_Queries(t *testing.T) {
	root := setup(t)

	for _, p := range []struct{ key, ts, tags string }{
		{"t1", "2024-01-01T00:00:00Z", "all,one"},
		{"t3", "2024-01-03T00:00:00Z", "all,three"},
		{"t2", "2024-01-02T00:00:00Z", "all,two"},
	} {
		_, err := run(t, root, "", "put", "log", p.key, "--text", p.key, "--timestamp", p.ts, "--tag", p.tags)
		require.NoError(t, err)
	}

	out, err := run(t, root, "", "--json", "recent", "log", "-n", "2")
	require.NoError(t, err)
	var results []struct {
		Key string `json:"key"`
	}
	decode(t, out, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "t3", results[0].Key)
	assert.Equal(t, "t2", results[1].Key)

	out, err = run(t, root, "", "--json", "tags", "log", "all", "two")
	require.NoError(t, err)
	var objs []map[string]interface{}
	decode(t, out, &objs)
	require.Len(t, objs, 1)
	assert.Equal(t, "t2", objs[0]["data"])

	out, err = run(t, root, "", "--json", "list")
	require.NoError(t, err)
	var cats []string
	decode(t, out, &cats)
	assert.Equal(t, []string{"log"}, cats)

	out, err = run(t, root, "", "--json", "list", "log")
	require.NoError(t, err)
	var keys []string
	decode(t, out, &keys)
	assert.Equal(t, []string{"t1", "t2", "t3"}, keys)

	out, err = run(t, root, "", "recent", "log")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "t3"), strings.Index(out, "t1"))
}

func TestCLI_SQLiteBackend(t *testing.T) {
	root := setup(t)

	_, err := run(t, root, "", "--backend", "sqlite", "put", "ideas", "k", "--text", "in sqlite")
	require.NoError(t, err)

	out, err := run(t, root, "", "--backend", "sqlite", "--json", "get", "ideas", "k")
	require.NoError(t, err)
	assert.Contains(t, out, "in sqlite")

	_, err = os.Stat(filepath.Join(root, "membank.db"))
	assert.NoError(t, err)

	_, err = run(t, root, "", "get", "ideas", "k")
	assert.Error(t, err, "the file backend does not see sqlite rows")

	_, err = run(t, root, "", "--backend", "tape", "list")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const fakeDocsClient = `case "$1" in
resolve) echo "/acme/$2" ;;
fetch) shift; echo "docs for $*" ;;
esac`

func TestCLI_Docs(t *testing.T) {
	root := setup(t)

	out, err := run(t, root, "", "--json", "docs", "lookup", "/facebook/react", "--topic", "hooks")
	require.NoError(t, err)
	var lookup map[string]interface{}
	decode(t, out, &lookup)
	assert.Equal(t, false, lookup["cached"])

	_, err = run(t, root, "useState returns a pair", "docs", "store", "/facebook/react", "--topic", "hooks")
	require.NoError(t, err)

	out, err = run(t, root, "", "--json", "docs", "lookup", "/facebook/react", "--topic", "hooks")
	require.NoError(t, err)
	decode(t, out, &lookup)
	assert.Equal(t, true, lookup["cached"])
	assert.Equal(t, "useState returns a pair", lookup["data"])

	out, err = run(t, root, "", "--json", "docs", "lookup", "/facebook/react", "--topic", "hooks", "--force")
	require.NoError(t, err)
	decode(t, out, &lookup)
	assert.Equal(t, false, lookup["cached"])

	out, err = run(t, root, "", "--json", "get", "documentation", "/facebook/react::hooks")
	require.NoError(t, err)
	assert.Contains(t, out, `"source": "context7"`)

	_, err = run(t, root, "", "docs", "fetch", "react")
	assert.Error(t, err, "fetch needs a configured resolver")
}

func TestCLI_DocsFetch(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	root := setup(t)

	cfgData, err := json.Marshal(map[string]interface{}{
		"resolver": map[string]interface{}{
			"command": sh,
			"args":    []string{"-c", fakeDocsClient, "docs-client"},
		},
	})
	require.NoError(t, err)
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, cfgData, 0600))

	out, err := run(t, root, "", "--config", cfgPath, "--json", "docs", "fetch", "react", "--topic", "hooks", "--tokens", "300")
	require.NoError(t, err)
	var res struct {
		LibraryID string `json:"libraryId"`
		Content   string `json:"content"`
		Cached    bool   `json:"cached"`
	}
	decode(t, out, &res)
	assert.Equal(t, "/acme/react", res.LibraryID)
	assert.Equal(t, "docs for /acme/react --topic hooks --tokens 300\n", res.Content)
	assert.False(t, res.Cached)

	out, err = run(t, root, "", "--config", cfgPath, "--json", "docs", "fetch", "/acme/react", "--topic", "hooks")
	require.NoError(t, err)
	decode(t, out, &res)
	assert.True(t, res.Cached)
}

func TestCLI_Prune(t *testing.T) {
	root := setup(t)

	_, err := run(t, root, "", "put", "scratch", "old", "--text", "x", "--timestamp", "2020-01-01T00:00:00Z", "--ttl", "1")
	require.NoError(t, err)
	_, err = run(t, root, "", "put", "scratch", "keep", "--text", "x", "--timestamp", "2020-01-01T00:00:00Z")
	require.NoError(t, err)
	_, err = run(t, root, "", "put", "archive", "old", "--text", "x", "--timestamp", "2020-01-01T00:00:00Z", "--ttl", "1")
	require.NoError(t, err)

	out, err := run(t, root, "", "prune", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would delete")

	out, err = run(t, root, "", "--json", "prune", "--category", "scratch")
	require.NoError(t, err)
	var report struct {
		Expired []struct {
			Category string `json:"category"`
			Key      string `json:"key"`
		} `json:"expired"`
	}
	decode(t, out, &report)
	require.Len(t, report.Expired, 1)
	assert.Equal(t, "scratch", report.Expired[0].Category)

	_, err = run(t, root, "", "get", "scratch", "old")
	assert.Error(t, err)
	_, err = run(t, root, "", "get", "scratch", "keep")
	assert.NoError(t, err)
	_, err = run(t, root, "", "get", "archive", "old")
	assert.NoError(t, err, "other categories are untouched")
}

func TestCLI_Config(t *testing.T) {
	root := setup(t)
	cfgPath := writeConfig(t, "defaultFreshnessHours: 6\ns3:\n  secretKey: hunter2\n")

	out, err := run(t, root, "", "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "defaultFreshnessHours: 6")
	assert.Contains(t, out, "memoryRoot: "+root)
	assert.NotContains(t, out, "hunter2")

	out, err = run(t, root, "", "--config", cfgPath, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	bad := writeConfig(t, "backend: tape\n")
	_, err = run(t, root, "", "--config", bad, "config", "validate")
	assert.Error(t, err)
	_, err = run(t, root, "", "--config", bad, "list")
	assert.Error(t, err)

	out, err = run(t, root, "", "config", "encrypt", "hunter2")
	require.NoError(t, err)
	sealed := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(sealed, "enc:v1:"))
	assert.NotContains(t, sealed, "hunter2")
}

func TestCLI_Tools(t *testing.T) {
	root := setup(t)

	out, err := run(t, root, "", "tools", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "memory_put")
	assert.NotContains(t, out, "docs_fetch", "docs_fetch needs a resolver")

	out, err = run(t, root, "", "tools", "call", "memory_put", `{"category":"agent","key":"k","data":{"n":1}}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"category":"agent"`)

	out, err = run(t, root, "", "tools", "call", "memory_list", `{"category":"agent"}`)
	require.NoError(t, err)
	assert.Equal(t, `["k"]`, strings.TrimSpace(out))

	_, err = run(t, root, "", "tools", "call", "no_such_tool")
	assert.Error(t, err)

	out, err = run(t, root, "", "--json", "tools", "list", "memory_recent")
	require.NoError(t, err)
	var def struct {
		Name       string                 `json:"name"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	decode(t, out, &def)
	assert.Equal(t, "memory_recent", def.Name)
	assert.NotEmpty(t, def.Parameters)

	_, err = run(t, root, "", "tools", "list", "no_such_tool")
	assert.Error(t, err)

	out, err = run(t, root, "", "tools", "list", "--disable", "memory_delete,memory_put")
	require.NoError(t, err)
	assert.NotContains(t, out, "memory_delete")
	assert.Contains(t, out, "6 tools")

	_, err = run(t, root, "", "tools", "call", "--disable", "memory_delete", "memory_delete", `{"category":"agent","key":"k"}`)
	assert.Error(t, err, "a disabled tool cannot be called")
	out, err = run(t, root, "", "tools", "call", "memory_get", `{"category":"agent","key":"k"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"key":"k"`)

	_, err = run(t, root, "", "tools", "list", "--disable", "bogus")
	assert.Error(t, err)
}
