package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
	"github.com/suykerbuyk/cmv/internal/layout"
	"github.com/suykerbuyk/cmv/internal/trim"
)

// CreateBranchParams are the inputs to CreateBranch, per §4.5.
type CreateBranchParams struct {
	SnapshotName       string
	BranchName         string
	Trim               bool
	TrimThreshold       int
	OrientationMessage string
}

// BranchResult is CreateBranch's output.
type BranchResult struct {
	Branch          Branch
	MaterializedPath string
}

// CreateBranch implements §4.5's "Branch from snapshot" steps 1-7.
func (s *Store) CreateBranch(hostHome string, params CreateBranchParams) (*BranchResult, error) {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}
	snap, ok := idx.Snapshots[params.SnapshotName]
	if !ok {
		return nil, &cmverrors.SnapshotNotFoundError{Name: params.SnapshotName}
	}

	srcPath := s.snapshotSessionPath(snap.SnapshotDir, snap.SourceSessionID)
	if err := ValidateConversationContent(srcPath); err != nil {
		if _, ok := err.(*cmverrors.NoConversationContentError); ok {
			return nil, &cmverrors.NoConversationContentError{SessionID: snap.SourceSessionID}
		}
		return nil, err
	}

	projectDir, err := layout.FindProjectDirForSession(hostHome, snap.SourceSessionID)
	if err != nil {
		// Fall back to the recorded source project path when the original
		// session's directory can no longer be located by id.
		if snap.SourceProjectPath == "" {
			return nil, &cmverrors.ProjectDirNotFoundError{SessionID: snap.SourceSessionID}
		}
		projectDir = layout.ProjectDir(hostHome, snap.SourceProjectPath)
		if _, statErr := os.Stat(projectDir); statErr != nil {
			return nil, &cmverrors.ProjectDirNotFoundError{SessionID: snap.SourceSessionID}
		}
	}

	newID := newSessionID()
	dstPath := filepath.Join(projectDir, newID+".jsonl")

	if err := materialize(srcPath, dstPath, params); err != nil {
		os.Remove(dstPath)
		return nil, err
	}

	if params.OrientationMessage != "" {
		if err := appendOrientationMessage(dstPath, params.OrientationMessage); err != nil {
			os.Remove(dstPath)
			return nil, err
		}
	}

	sessIdx, err := layout.LoadSessionsIndex(projectDir)
	if err != nil {
		os.Remove(dstPath)
		return nil, err
	}
	now := time.Now().UTC()
	branchName := params.BranchName
	if branchName == "" {
		branchName = newID
	}
	sessIdx.AddEntry(layout.SessionEntry{
		SessionID:    newID,
		FullPath:     dstPath,
		FileMtime:    now.Unix(),
		FirstPrompt:  branchName,
		MessageCount: 0,
		Created:      now.Format(time.RFC3339),
		Modified:     now.Format(time.RFC3339),
		ProjectPath:  snap.SourceProjectPath,
		IsSidechain:  false,
	})
	if err := layout.SaveSessionsIndex(projectDir, sessIdx); err != nil {
		os.Remove(dstPath)
		return nil, err
	}

	branch := Branch{Name: branchName, ForkedSessionID: newID, CreatedAt: now}
	snap.Branches = append(snap.Branches, branch)
	if err := idx.save(s.HomeDir); err != nil {
		return nil, err
	}

	return &BranchResult{Branch: branch, MaterializedPath: dstPath}, nil
}

func materialize(srcPath, dstPath string, params CreateBranchParams) error {
	if !params.Trim {
		_, err := atomicfile.Copy(dstPath, srcPath)
		if err != nil {
			return &cmverrors.IoError{Op: "materialize branch transcript", Err: err}
		}
		return nil
	}

	_, err := trim.Trim(srcPath, dstPath, trim.Options{Threshold: params.TrimThreshold})
	if err != nil {
		return fmt.Errorf("trim branch transcript: %w", err)
	}
	return nil
}

func appendOrientationMessage(path, text string) error {
	line := fmt.Sprintf(`{"type":"user","message":{"role":"user","content":%q}}`, text)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &cmverrors.IoError{Op: "append orientation message", Err: err}
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return &cmverrors.IoError{Op: "append orientation message", Err: err}
	}
	return nil
}

// DeleteBranch removes the materialized file, the host-index entry, and
// the branch record from the master index. Tolerates a missing file or
// host-index entry.
func (s *Store) DeleteBranch(hostHome, snapshotName, branchName string) error {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return err
	}
	snap, ok := idx.Snapshots[snapshotName]
	if !ok {
		return &cmverrors.SnapshotNotFoundError{Name: snapshotName}
	}

	var forkedID string
	var kept []Branch
	for _, b := range snap.Branches {
		if b.Name == branchName {
			forkedID = b.ForkedSessionID
			continue
		}
		kept = append(kept, b)
	}
	snap.Branches = kept

	if forkedID != "" {
		if projectDir, err := layout.FindProjectDirForSession(hostHome, forkedID); err == nil {
			os.Remove(filepath.Join(projectDir, forkedID+".jsonl"))
			if sessIdx, err := layout.LoadSessionsIndex(projectDir); err == nil {
				sessIdx.RemoveEntry(forkedID)
				_ = layout.SaveSessionsIndex(projectDir, sessIdx)
			}
		}
	}

	return idx.save(s.HomeDir)
}
