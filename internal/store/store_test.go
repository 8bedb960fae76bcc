package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/suykerbuyk/cmv/internal/reader"
)

func writeProjectSession(t *testing.T, hostHome, projectDir, sessionID, content string) string {
	t.Helper()
	dir := filepath.Join(hostHome, "projects", projectDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoTurnTranscript = `{"type":"user","message":{"role":"user","content":"hi"}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}
`

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"checkpoint-1", false},
		{"feature_branch_v2", false},
		{"", true},
		{"has spaces", true},
		{"has/slash", true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestCreateSnapshot_IntegrityAndIndex(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "aaaaaaaa-1111-2222-3333-444444444444"
	srcPath := writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	result, err := s.CreateSnapshot(r, CreateSnapshotParams{
		Name:            "checkpoint-1",
		SourceSessionID: sessionID,
		Description:     "first pass",
		Tags:            []string{"oauth"},
	})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if result.Snapshot.Name != "checkpoint-1" {
		t.Errorf("Name = %q", result.Snapshot.Name)
	}
	if *result.Snapshot.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", *result.Snapshot.MessageCount)
	}

	// Snapshot integrity invariant: the copied session file is byte-identical
	// to the source transcript.
	snapshotFile := filepath.Join(homeDir, "snapshots", result.Snapshot.ID, "session", sessionID+".jsonl")
	original, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	copied, err := os.ReadFile(snapshotFile)
	if err != nil {
		t.Fatalf("snapshot session file missing: %v", err)
	}
	if string(original) != string(copied) {
		t.Error("snapshot session file is not byte-identical to the source")
	}

	// Atomic-index invariant: index.json is fully written and readable
	// immediately after CreateSnapshot returns.
	got, err := s.GetSnapshot("checkpoint-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.ID != result.Snapshot.ID {
		t.Errorf("index entry ID = %q, want %q", got.ID, result.Snapshot.ID)
	}
}

func TestCreateSnapshot_DuplicateName(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "bbbbbbbb-1111-2222-3333-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "dup", SourceSessionID: sessionID}); err != nil {
		t.Fatalf("first CreateSnapshot: %v", err)
	}
	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "dup", SourceSessionID: sessionID}); err == nil {
		t.Error("expected SnapshotExistsError on duplicate name")
	}
}

func TestCreateSnapshot_EmptySessionWarns(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "cccccccc-1111-2222-3333-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, "")

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	result, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "empty-session", SourceSessionID: sessionID})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for a session with zero messages")
	}
}

func TestListAndDeleteSnapshot(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "dddddddd-1111-2222-3333-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	created, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "to-delete", SourceSessionID: sessionID})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	list, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListSnapshots() returned %d entries, want 1", len(list))
	}

	if err := s.DeleteSnapshot("to-delete"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := s.GetSnapshot("to-delete"); err == nil {
		t.Error("expected SnapshotNotFoundError after deletion")
	}
	if _, err := os.Stat(filepath.Join(homeDir, "snapshots", created.Snapshot.ID)); !os.IsNotExist(err) {
		t.Error("expected snapshot directory to be removed")
	}
}

func TestDeleteSnapshot_NotFound(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.DeleteSnapshot("nope"); err == nil {
		t.Error("expected SnapshotNotFoundError")
	}
}

func TestBuildTree_ParentChildLinks(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "eeeeeeee-1111-2222-3333-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "root", SourceSessionID: sessionID}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	branchResult, err := s.CreateBranch(hostHome, CreateBranchParams{SnapshotName: "root", BranchName: "continued"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "child", SourceSessionID: branchResult.Branch.ForkedSessionID}); err != nil {
		t.Fatalf("CreateSnapshot (child): %v", err)
	}

	tree, err := s.BuildTree()
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	var root *TreeNode
	for _, n := range tree {
		if n.Snapshot.Name == "root" {
			root = n
		}
	}
	if root == nil {
		t.Fatal("root snapshot missing from tree")
	}
	if len(root.Children) != 1 || root.Children[0].Snapshot.Name != "child" {
		t.Errorf("expected root to have one child named 'child', got %+v", root.Children)
	}
}

func TestCreateBranch_FromEmptySnapshotFails(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "ffffffff-1111-2222-3333-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, "")

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "empty", SourceSessionID: sessionID}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, err := s.CreateBranch(hostHome, CreateBranchParams{SnapshotName: "empty"}); err == nil {
		t.Error("expected branching from a snapshot with no conversation content to fail")
	}
}

func TestCreateBranch_MaterializesAndUpdatesSessionsIndex(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "11111111-aaaa-bbbb-cccc-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "base", SourceSessionID: sessionID}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	result, err := s.CreateBranch(hostHome, CreateBranchParams{SnapshotName: "base", BranchName: "retry"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if _, err := os.Stat(result.MaterializedPath); err != nil {
		t.Fatalf("materialized branch file missing: %v", err)
	}

	// Branch fidelity: the materialized file's content matches the snapshot's
	// captured session content (no trim requested).
	snap, err := s.GetSnapshot("base")
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(s.snapshotSessionPath(snap.SnapshotDir, sessionID))
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(result.MaterializedPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(want) != string(got) {
		t.Error("materialized branch content does not match the snapshot's captured session content")
	}

	sessIdxPath := filepath.Join(filepath.Dir(result.MaterializedPath), "sessions-index.json")
	if _, err := os.Stat(sessIdxPath); err != nil {
		t.Error("expected sessions-index.json to be updated with the new branch entry")
	}
}

func TestDeleteBranch(t *testing.T) {
	hostHome := t.TempDir()
	homeDir := t.TempDir()
	sessionID := "22222222-aaaa-bbbb-cccc-444444444444"
	writeProjectSession(t, hostHome, "home--dev--proj", sessionID, twoTurnTranscript)

	s := New(homeDir, nil)
	r := reader.New(hostHome, nil)

	if _, err := s.CreateSnapshot(r, CreateSnapshotParams{Name: "base2", SourceSessionID: sessionID}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	result, err := s.CreateBranch(hostHome, CreateBranchParams{SnapshotName: "base2", BranchName: "retry2"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if result.MaterializedPath == "" {
		t.Fatal("expected a materialized path")
	}

	if err := s.DeleteBranch(hostHome, "base2", "retry2"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}

	snap, err := s.GetSnapshot("base2")
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range snap.Branches {
		if b.Name == "retry2" {
			t.Error("expected branch to be removed from the snapshot's branch list")
		}
	}
}
