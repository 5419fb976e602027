package cli_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeheal/vibeheal/internal/adapters/inbound/cli"
	"github.com/vibeheal/vibeheal/internal/domain"
)

var configEnv = []string{
	"SONARQUBE_URL", "SONARQUBE_TOKEN", "SONARQUBE_USERNAME", "SONARQUBE_PASSWORD",
	"SONARQUBE_PROJECT_KEY", "AI_TOOL", "AIDER_MODEL", "AIDER_API_KEY", "AIDER_API_BASE",
	"CODE_CONTEXT_LINES", "INCLUDE_RULE_DESCRIPTION", "VIBEHEAL_FIX_TIMEOUT",
	"VIBEHEAL_SCANNER", "VIBEHEAL_LOG_LEVEL", "VIBEHEAL_LOG_FORMAT",
}

// isolate clears config env vars and moves into an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vibeheal dev")
}

func TestMCPCommandExists(t *testing.T) {
	_, _, err := run(t, "mcp", "--help")
	assert.NoError(t, err)
}

func TestMCPServeCommandExists(t *testing.T) {
	_, _, err := run(t, "mcp", "serve", "--help")
	assert.NoError(t, err)
}

func TestRootHasCommands(t *testing.T) {
	root := cli.NewRootCmdForTest()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fix", "cleanup", "dedupe", "dedupe-branch", "issues", "config", "history", "mcp", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
	for _, flag := range []string{"config", "verbose", "log-format", "metrics-file", "trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vibeheal.yaml"), []byte(`
sonarqube:
  url: https://sonar.example.com
  token: squ_secret
  project_key: proj
`), 0o644))

	out, errOut, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "url: https://sonar.example.com")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "squ_secret")
	assert.Contains(t, out, "timeout: 5m0s")
	assert.NotContains(t, errOut, "incomplete")
}

func TestConfigCommand_WarnsWhenIncomplete(t *testing.T) {
	isolate(t)
	t.Setenv("SONARQUBE_URL", "https://sonar.example.com")

	out, errOut, err := run(t, "config", "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "sonarqube.project_key")
	assert.Contains(t, errOut, "configuration is incomplete")
}

func TestFixCommand_RequiresFile(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "fix")
	assert.Error(t, err)
}

func TestFixCommand_RejectsUnknownSeverity(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "fix", "a.py", "--min-severity", "urgent")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestFixCommand_InvalidConfig(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "fix", "a.py")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestCleanupCommand_RejectsZeroIterations(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "cleanup", "-i", "0")
	assert.Error(t, err)
}

func TestCleanupCommand_RejectsMalformedPattern(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "cleanup", "-p", "*.py", "-p", "src/[a.py")
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "src/[a.py")
}

func TestDedupeCommand_RequiresFile(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "dedupe")
	assert.Error(t, err)
}

func TestDedupeCommand_RejectsNegativeMax(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "dedupe", "src/app.py", "-n", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--max-duplications")
}

func TestDedupeBranchCommand_ValidatesFlags(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "dedupe-branch", "-i", "0")
	assert.Error(t, err)

	_, _, err = run(t, "dedupe-branch", "-p", "src/[a.py")
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestHistoryCommand_Empty(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No run history")
}

// sonarServer serves one open issue on src/app.py line 1 and one
// duplication between src/app.py and src/other.py.
func sonarServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/issues/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":1,"p":1,"ps":100,"issues":[{"key":"AX1","rule":"python:S1481","severity":"MAJOR","message":"Remove this unused variable","component":"proj:src/app.py","line":1,"status":"OPEN"}]}`))
	})
	mux.HandleFunc("/api/rules/show", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rule":{"key":"python:S1481","name":"Unused local variables should be removed","mdDesc":"Remove it.","langName":"Python"}}`))
	})
	mux.HandleFunc("/api/duplications/show", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "proj:src/app.py" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"duplications":[{"blocks":[{"from":1,"size":2,"_ref":"1"},{"from":4,"size":2,"_ref":"2"}]}],"files":{"1":{"key":"proj:src/app.py","name":"app.py"},"2":{"key":"proj:src/other.py","name":"other.py"}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestIssuesCommand_JSON(t *testing.T) {
	isolate(t)
	srv := sonarServer(t)
	t.Setenv("SONARQUBE_URL", srv.URL)
	t.Setenv("SONARQUBE_TOKEN", "squ_x")
	t.Setenv("SONARQUBE_PROJECT_KEY", "proj")

	out, _, err := run(t, "issues", "--json")
	require.NoError(t, err)

	var issues []domain.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "src/app.py", issues[0].FilePath())

	out, _, err = run(t, "issues", "src/app.py")
	require.NoError(t, err)
	assert.Contains(t, out, "Remove this unused variable")
}

// fixRepo prepares a git repository with a committed src/app.py, a sonar
// server and a fake claude binary running script.
func fixRepo(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := isolate(t)
	srv := sonarServer(t)
	t.Setenv("SONARQUBE_URL", srv.URL)
	t.Setenv("SONARQUBE_TOKEN", "squ_x")
	t.Setenv("SONARQUBE_PROJECT_KEY", "proj")
	t.Setenv("HOME", t.TempDir())

	git(t, dir, "init", "-q", "-b", "main")
	git(t, dir, "config", "user.email", "dev@example.com")
	git(t, dir, "config", "user.name", "Dev")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "app.py"), []byte("unused = 1\nprint('hi')\n"), 0o644))
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "init")

	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "claude"), []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, string(out))
	return strings.TrimSpace(string(out))
}

func TestFixCommand_CommitsFix(t *testing.T) {
	dir := fixRepo(t, `printf "print('hi')\n" > src/app.py
echo '{"result":"done"}'`)

	out, _, err := run(t, "fix", "src/app.py", "-y", "--ai-tool", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "1 to fix")
	assert.Contains(t, out, "Summary")

	msg := git(t, dir, "log", "-1", "--format=%B")
	assert.Contains(t, msg, "fix: [SQ-S1481] Remove this unused variable")
	assert.Contains(t, msg, "Rule: python:S1481 - Unused local variables should be removed")
	assert.Contains(t, msg, "Fixed by: vibeheal using Claude Code")

	assert.FileExists(t, filepath.Join(dir, ".vibeheal", "history", "runs.json"))
	assert.FileExists(t, filepath.Join(dir, ".vibeheal", "cache", "rules.json"))

	out, _, err = run(t, "history", "--json")
	require.NoError(t, err)
	var records []domain.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Fixed)
	assert.Equal(t, "claude-code", records[0].Tool)
	assert.NotEmpty(t, records[0].ID)
}

func TestFixCommand_FailedFixExitsNonZero(t *testing.T) {
	dir := fixRepo(t, `echo "rate limited" >&2
exit 3`)
	head := git(t, dir, "rev-parse", "HEAD")

	out, _, err := run(t, "fix", "src/app.py", "--yes", "--ai-tool", "claude-code", "--metrics-file", filepath.Join(dir, "m.prom"))
	require.Error(t, err)
	assert.Contains(t, out, "Failed")
	assert.Equal(t, head, git(t, dir, "rev-parse", "HEAD"), "no commit on failure")

	metrics, err := os.ReadFile(filepath.Join(dir, "m.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `vibeheal_fix_attempts_total{outcome="failed",tool="claude-code"} 1`)
}

func TestFixCommand_DeclinedOnEmptyAnswer(t *testing.T) {
	dir := fixRepo(t, `printf "x\n" > src/app.py`)
	head := git(t, dir, "rev-parse", "HEAD")

	out, errOut, err := run(t, "fix", "src/app.py", "--ai-tool", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Continue? [y/N]")
	assert.Contains(t, out, "Aborted")
	assert.Equal(t, head, git(t, dir, "rev-parse", "HEAD"))
}


func TestDedupeCommand_CommitsRefactor(t *testing.T) {
	dir := fixRepo(t, `printf "from other import greet\ngreet()\n" > src/app.py
echo '{"result":"done"}'`)

	out, _, err := run(t, "dedupe", "src/app.py", "-y", "--ai-tool", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "1 to refactor")
	assert.Contains(t, out, "L1-2")

	msg := git(t, dir, "log", "-1", "--format=%B")
	assert.Contains(t, msg, "refactor: [duplication] remove duplicate code at line 1")
	assert.Contains(t, msg, "This code was duplicated in 2 location(s).")
	assert.Contains(t, msg, "Fixed by: vibeheal using Claude Code")

	out, _, err = run(t, "history", "--json")
	require.NoError(t, err)
	var records []domain.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, domain.RunKindDedupe, records[0].Kind)
	assert.Equal(t, 1, records[0].Commits)
}
