package e2e

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	rootDir, _ := filepath.Abs("../../")
	binPath := filepath.Join(t.TempDir(), "membank_e2e")

	buildCmd := exec.Command("go", "build", "-o", binPath, "github.com/felixgeelhaar/membank/cmd/membank")
	buildCmd.Dir = rootDir
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build membank: %v\n%s", err, out)
	}
	return binPath
}

type runner struct {
	t    *testing.T
	bin  string
	home string
	root string
}

func (r runner) run(args ...string) (string, error) {
	r.t.Helper()
	cmd := exec.Command(r.bin, append([]string{"--root", r.root}, args...)...)
	cmd.Env = append(os.Environ(), "HOME="+r.home)
	out, err := cmd.Output()
	return string(out), err
}

func (r runner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	if err != nil {
		r.t.Fatalf("membank %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestE2E_MemoryRoundTrip(t *testing.T) {
	bin := buildBinary(t)
	tmpDir := t.TempDir()
	r := runner{t: t, bin: bin, home: tmpDir, root: filepath.Join(tmpDir, "bank")}

	r.mustRun("put", "ideas", "first", "--text", "one", "--timestamp", "2024-01-01T00:00:00Z", "--tag", "draft")
	r.mustRun("put", "ideas", "second", "--data", `{"n":2}`, "--timestamp", "2024-01-02T00:00:00Z", "--tag", "draft,keep")
	r.mustRun("put", "ideas", "third", "--data", `[3]`, "--timestamp", "2024-01-03T00:00:00Z")

	// One document per object under the category directory.
	if _, err := os.Stat(filepath.Join(r.root, "ideas", "second.json")); err != nil {
		t.Errorf("expected persisted document: %v", err)
	}

	var obj struct {
		Data     map[string]float64 `json:"data"`
		Metadata struct {
			Tags []string `json:"tags"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(r.mustRun("--json", "get", "ideas", "second")), &obj); err != nil {
		t.Fatalf("invalid get output: %v", err)
	}
	if obj.Data["n"] != 2 || len(obj.Metadata.Tags) != 2 {
		t.Errorf("unexpected object %+v", obj)
	}

	var recent []struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal([]byte(r.mustRun("--json", "recent", "ideas", "--limit", "2")), &recent); err != nil {
		t.Fatalf("invalid recent output: %v", err)
	}
	if len(recent) != 2 || recent[0].Key != "third" || recent[1].Key != "second" {
		t.Errorf("expected [third second], got %+v", recent)
	}

	var tagged []json.RawMessage
	if err := json.Unmarshal([]byte(r.mustRun("--json", "tags", "ideas", "draft", "keep")), &tagged); err != nil {
		t.Fatalf("invalid tags output: %v", err)
	}
	if len(tagged) != 1 {
		t.Errorf("expected 1 tagged object, got %d", len(tagged))
	}

	r.mustRun("delete", "ideas", "second")
	r.mustRun("delete", "ideas", "second")
	if _, err := r.run("get", "ideas", "second"); err == nil {
		t.Error("expected get of deleted object to fail")
	}
}

func TestE2E_DocumentationCache(t *testing.T) {
	bin := buildBinary(t)
	tmpDir := t.TempDir()
	r := runner{t: t, bin: bin, home: tmpDir, root: filepath.Join(tmpDir, "bank")}

	if out := r.mustRun("docs", "lookup", "/golang/go", "--topic", "context"); !strings.Contains(out, "miss") {
		t.Errorf("expected miss, got %q", out)
	}

	r.mustRun("docs", "store", "/golang/go", "--topic", "context", "--content", "Context carries deadlines.")

	out := r.mustRun("docs", "lookup", "/golang/go", "--topic", "context")
	if !strings.Contains(out, "hit") || !strings.Contains(out, "Context carries deadlines.") {
		t.Errorf("expected hit with content, got %q", out)
	}
}
