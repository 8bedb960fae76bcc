package test

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// cmvBinary is the path to the compiled cmv binary, set by TestMain.
var cmvBinary string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	tmpDir, err := os.MkdirTemp("", "cmv-integration-build-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	cmvBinary = filepath.Join(tmpDir, "cmv")
	cmd := exec.Command("go", "build", "-o", cmvBinary, "./cmd/cmv")
	// Test working dir is test/, so go up one level to project root.
	cmd.Dir = filepath.Join("..")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build cmv binary: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// --- Fixtures ---

const sessionAID = "aaaaaaaa-1111-2222-3333-444444444444"

// fixtureSessionA: 3 user + 3 assistant turns, a Write tool call, a large
// tool_result, and a thinking block — exercises trim and analyze together.
var fixtureSessionA = `{"type":"user","uuid":"u1","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:00:00Z","message":{"role":"user","content":"Implement the login page with OAuth support"}}
{"type":"assistant","uuid":"a1","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:01:00Z","message":{"role":"assistant","model":"opus-4-6","content":[{"type":"thinking","thinking":"plan the oauth flow","signature":"sig-deadbeef"},{"type":"text","text":"I'll implement the login page."},{"type":"tool_use","id":"tu1","name":"Write","input":{"file_path":"/home/dev/myproject/src/login.tsx","content":"// login page"}}],"usage":{"input_tokens":500,"output_tokens":200}}}
{"type":"user","uuid":"u1r","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:01:30Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":"` + strings.Repeat("x", 800) + `"}]}}
{"type":"user","uuid":"u2","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:02:00Z","message":{"role":"user","content":"Now add the OAuth callback handler"}}
{"type":"assistant","uuid":"a2","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:03:00Z","message":{"role":"assistant","model":"opus-4-6","content":[{"type":"text","text":"Adding OAuth callback."}],"usage":{"input_tokens":400,"output_tokens":150}}}
{"type":"user","uuid":"u3","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:04:00Z","message":{"role":"user","content":"Add error handling for the OAuth flow"}}
{"type":"assistant","uuid":"a3","sessionId":"` + sessionAID + `","timestamp":"2027-06-15T10:05:00Z","message":{"role":"assistant","model":"opus-4-6","content":[{"type":"text","text":"Done! The login page now has full OAuth support with error handling."}],"usage":{"input_tokens":300,"output_tokens":100}}}
`

// --- Helpers ---

func runCmv(t *testing.T, env []string, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(cmvBinary, args...)
	cmd.Env = env
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func mustRunCmv(t *testing.T, env []string, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCmv(t, env, "", args...)
	if err != nil {
		t.Fatalf("cmv %s failed: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}

func writeFixture(t *testing.T, dir, filename, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: expected %q to contain %q", msg, s, substr)
	}
}

// buildEnv sets up an isolated HOME/CMV_HOME/XDG_CONFIG_HOME per test so runs
// never touch the real user's engine or host state. HOME is overridden
// (rather than CLAUDE_CONFIG_DIR) since internal/hook's settings.json lookup
// always derives from $HOME/.claude, independent of CLAUDE_CONFIG_DIR.
func buildEnv(fakeHome, cmvHome, xdgConfigHome string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + fakeHome,
		"CMV_HOME=" + cmvHome,
		"XDG_CONFIG_HOME=" + xdgConfigHome,
	}
}

// --- Integration test ---

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	fakeHome := t.TempDir()
	cmvHome := t.TempDir()
	xdgConfigHome := t.TempDir()
	env := buildEnv(fakeHome, cmvHome, xdgConfigHome)

	claudeHome := filepath.Join(fakeHome, ".claude")
	projectDir := filepath.Join(claudeHome, "projects", "home--dev--myproject")
	sessionPath := writeFixture(t, projectDir, sessionAID+".jsonl", fixtureSessionA)

	t.Run("discover_sessions", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "discover-sessions")
		assertContains(t, stdout, sessionAID, "discover-sessions output")
	})

	t.Run("find_session", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "find-session", sessionAID[:8])
		var found map[string]any
		if err := json.Unmarshal([]byte(stdout), &found); err != nil {
			t.Fatalf("parse find-session output: %v\n%s", err, stdout)
		}
		if found["sessionId"] != sessionAID {
			t.Errorf("sessionId = %v, want %s", found["sessionId"], sessionAID)
		}
	})

	t.Run("analyze", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "analyze", sessionPath)
		var analysis map[string]any
		if err := json.Unmarshal([]byte(stdout), &analysis); err != nil {
			t.Fatalf("parse analyze output: %v\n%s", err, stdout)
		}
		if analysis["EstimatedTokens"].(float64) <= 0 {
			t.Error("expected non-zero EstimatedTokens")
		}
	})

	t.Run("cache_impact", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "cache-impact", sessionPath, "--model", "sonnet-4-6")
		var report map[string]any
		if err := json.Unmarshal([]byte(stdout), &report); err != nil {
			t.Fatalf("parse cache-impact output: %v\n%s", err, stdout)
		}
		if report["Model"] != "sonnet-4-6" {
			t.Errorf("Model = %v, want sonnet-4-6", report["Model"])
		}
	})

	t.Run("trim", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "trimmed.jsonl")
		stdout := mustRunCmv(t, env, "trim", sessionPath, dst, "--threshold", "100")
		assertContains(t, stdout, "SignaturesStripped", "trim metrics output")

		trimmed := readFile(t, dst)
		assertContains(t, trimmed, "Trimmed tool result", "stubbed tool result content")
		if strings.Contains(trimmed, "sig-deadbeef") {
			t.Error("thinking signature should have been stripped")
		}
	})

	var snapshotName = "checkpoint-1"

	t.Run("create_snapshot", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "create-snapshot", snapshotName, "--session", sessionAID, "--description", "first pass at OAuth")
		var snap map[string]any
		if err := json.Unmarshal([]byte(stdout), &snap); err != nil {
			t.Fatalf("parse create-snapshot output: %v\n%s", err, stdout)
		}
		if snap["name"] != snapshotName {
			t.Errorf("name = %v, want %s", snap["name"], snapshotName)
		}

		snapshotFile := filepath.Join(cmvHome, "snapshots", snap["id"].(string), "session", sessionAID+".jsonl")
		if !fileExists(snapshotFile) {
			t.Fatalf("snapshot session file not created at %s", snapshotFile)
		}
		original := readFile(t, sessionPath)
		copied := readFile(t, snapshotFile)
		if original != copied {
			t.Error("snapshot session file is not byte-identical to the source")
		}
	})

	t.Run("list_and_get_snapshot", func(t *testing.T) {
		listOut := mustRunCmv(t, env, "list-snapshots")
		assertContains(t, listOut, snapshotName, "list-snapshots output")

		getOut := mustRunCmv(t, env, "get-snapshot", snapshotName)
		assertContains(t, getOut, "first pass at OAuth", "get-snapshot description")
	})

	var branchName = "retry-oauth"

	t.Run("create_branch", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "create-branch", snapshotName, "--name", branchName)
		var result map[string]any
		if err := json.Unmarshal([]byte(stdout), &result); err != nil {
			t.Fatalf("parse create-branch output: %v\n%s", err, stdout)
		}
		materialized := result["MaterializedPath"].(string)
		if !fileExists(materialized) {
			t.Fatalf("materialized branch file not created at %s", materialized)
		}

		sessIdxPath := filepath.Join(filepath.Dir(materialized), "sessions-index.json")
		if !fileExists(sessIdxPath) {
			t.Error("host sessions-index.json not updated for branch")
		}
	})

	t.Run("tree", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "tree")
		assertContains(t, stdout, snapshotName, "tree output")
	})

	t.Run("export_and_import_snapshot", func(t *testing.T) {
		archivePath := filepath.Join(t.TempDir(), "checkpoint-1.cmv")
		mustRunCmv(t, env, "export-snapshot", snapshotName, archivePath)
		if !fileExists(archivePath) {
			t.Fatalf(".cmv archive not created at %s", archivePath)
		}

		stdout := mustRunCmv(t, env, "import-snapshot", archivePath, "--name", "checkpoint-1-restored")
		var snap map[string]any
		if err := json.Unmarshal([]byte(stdout), &snap); err != nil {
			t.Fatalf("parse import-snapshot output: %v\n%s", err, stdout)
		}
		if snap["source_session_id"] != sessionAID {
			t.Errorf("source_session_id = %v, want %s", snap["source_session_id"], sessionAID)
		}
	})

	t.Run("delete_branch_then_snapshot", func(t *testing.T) {
		mustRunCmv(t, env, "delete-branch", snapshotName, branchName)
		mustRunCmv(t, env, "delete-snapshot", snapshotName)

		stdout, _, err := runCmv(t, env, "", "get-snapshot", snapshotName)
		if err == nil {
			t.Fatalf("expected get-snapshot to fail after deletion, got %s", stdout)
		}
	})

	t.Run("hook_pre_compact_trims_in_place", func(t *testing.T) {
		hookTranscript := writeFixture(t, t.TempDir(), "hook-session.jsonl", fixtureSessionA)
		before := readFile(t, hookTranscript)

		hookInput, _ := json.Marshal(map[string]string{
			"session_id":      "hook-session",
			"transcript_path": hookTranscript,
			"trigger":         "PreCompact",
		})
		_, stderr, err := runCmv(t, env, string(hookInput), "hook", "--event", "PreCompact")
		if err != nil {
			t.Fatalf("hook PreCompact failed: %v\nstderr: %s", err, stderr)
		}

		after := readFile(t, hookTranscript)
		if before == after {
			t.Error("PreCompact hook should have trimmed the transcript in place")
		}

		logPath := filepath.Join(cmvHome, "auto-trim-log.json")
		if !fileExists(logPath) {
			t.Error("auto-trim-log.json not written by hook")
		}
	})

	t.Run("install_and_uninstall_hook", func(t *testing.T) {
		mustRunCmv(t, env, "install-hook")
		settings := readFile(t, filepath.Join(claudeHome, "settings.json"))
		assertContains(t, settings, "cmv hook", "settings.json after install-hook")

		mustRunCmv(t, env, "uninstall-hook")
		settings = readFile(t, filepath.Join(claudeHome, "settings.json"))
		if strings.Contains(settings, "cmv hook") {
			t.Error("settings.json should not contain cmv hook after uninstall-hook")
		}
	})

	t.Run("check", func(t *testing.T) {
		// install_and_uninstall_hook left settings.json without the hook, so
		// the hook check reports FAIL and check exits non-zero.
		stdout, _, err := runCmv(t, env, "", "check")
		if err == nil {
			t.Error("expected check to exit non-zero with the hook uninstalled")
		}
		assertContains(t, stdout, "cmv check", "check output header")
		assertContains(t, stdout, "cmv hook not found", "check hook result")
	})

	t.Run("config_init", func(t *testing.T) {
		stdout := mustRunCmv(t, env, "config", "init", "/home/dev/myproject")
		assertContains(t, stdout, "created", "config init stdout")

		cfgPath := filepath.Join(xdgConfigHome, "cmv", "config.json")
		if !fileExists(cfgPath) {
			t.Fatalf("config.json not created at %s", cfgPath)
		}
		assertContains(t, readFile(t, cfgPath), "default_project", "config.json content")
	})
}
