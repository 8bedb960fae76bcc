package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
	"github.com/suykerbuyk/cmv/internal/reader"
	"github.com/suykerbuyk/cmv/internal/transcript"
)

// CreateSnapshotParams are the inputs to CreateSnapshot, per §4.5.
type CreateSnapshotParams struct {
	Name            string
	SourceSessionID string // "" selects the most recently modified session
	Description     string
	Tags            []string
}

// CreateSnapshotResult pairs the new Snapshot with any non-fatal warnings
// collected along the way.
type CreateSnapshotResult struct {
	Snapshot *Snapshot
	Warnings []string
}

// CreateSnapshot implements §4.5's "Create snapshot" steps 1-8.
func (s *Store) CreateSnapshot(r *reader.Reader, params CreateSnapshotParams) (*CreateSnapshotResult, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	if err := ValidateName(params.Name); err != nil {
		return nil, err
	}

	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}
	if _, exists := idx.Snapshots[params.Name]; exists {
		return nil, &cmverrors.SnapshotExistsError{Name: params.Name}
	}

	var found *reader.Found
	if params.SourceSessionID == "" {
		found, err = r.Latest()
	} else {
		found, err = r.FindSession(params.SourceSessionID)
	}
	if err != nil {
		return nil, err
	}

	var warnings []string

	active := r.DetectActive(found.Path)
	if active {
		warnings = append(warnings, fmt.Sprintf("session %s appears to be actively in use", found.SessionID))
	}

	messageCount, err := r.CountMessages(found.Path)
	if err != nil {
		return nil, err
	}
	if messageCount == 0 {
		warnings = append(warnings, fmt.Sprintf("session %s has zero user/assistant messages; branching from it will fail", found.SessionID))
	}

	id := newSnapshotID()
	if err := os.MkdirAll(s.snapshotDir(id), 0o755); err != nil {
		return nil, &cmverrors.IoError{Op: "create snapshot directory", Err: err}
	}

	dstSessionPath := s.snapshotSessionPath(id, found.SessionID)
	if err := os.MkdirAll(filepath.Dir(dstSessionPath), 0o755); err != nil {
		return nil, &cmverrors.IoError{Op: "create snapshot session directory", Err: err}
	}
	if _, err := atomicfile.Copy(dstSessionPath, found.Path); err != nil {
		return nil, &cmverrors.IoError{Op: "copy source transcript", Err: err}
	}

	var parent *string
	if pname, ok := idx.findByBranchSource(found.SessionID); ok {
		parent = &pname
	}

	count := messageCount
	snap := &Snapshot{
		ID:                     id,
		Name:                   params.Name,
		Description:            params.Description,
		CreatedAt:              time.Now().UTC(),
		SourceSessionID:        found.SessionID,
		SourceProjectPath:      found.ProjectPath,
		SnapshotDir:            id,
		MessageCount:           &count,
		Tags:                   params.Tags,
		ParentSnapshot:         parent,
		SessionActiveAtCapture: active,
	}

	if err := writeMeta(s.metaPath(id), snap.ToMeta()); err != nil {
		return nil, err
	}

	idx.Snapshots[params.Name] = snap
	if err := idx.save(s.HomeDir); err != nil {
		return nil, err
	}

	return &CreateSnapshotResult{Snapshot: snap, Warnings: warnings}, nil
}

// GetSnapshot looks up a snapshot by name.
func (s *Store) GetSnapshot(name string) (*Snapshot, error) {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}
	snap, ok := idx.Snapshots[name]
	if !ok {
		return nil, &cmverrors.SnapshotNotFoundError{Name: name}
	}
	return snap, nil
}

// ListSnapshots returns every snapshot in the index.
func (s *Store) ListSnapshots() ([]*Snapshot, error) {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, snap := range idx.Snapshots {
		out = append(out, snap)
	}
	return out, nil
}

// TreeNode is one level of the lineage tree BuildTree computes on demand
// from the index, per §9's "no owning back-pointers" design note.
type TreeNode struct {
	Snapshot *Snapshot
	Children []*TreeNode
}

// BuildTree resolves parent_snapshot links into a forest of TreeNodes.
func (s *Store) BuildTree() ([]*TreeNode, error) {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*TreeNode, len(idx.Snapshots))
	for name, snap := range idx.Snapshots {
		nodes[name] = &TreeNode{Snapshot: snap}
	}

	var roots []*TreeNode
	for name, snap := range idx.Snapshots {
		node := nodes[name]
		if snap.ParentSnapshot == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*snap.ParentSnapshot]
		if !ok {
			roots = append(roots, node) // parent absent locally; treat as root
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots, nil
}

// DeleteSnapshot removes the snapshot directory and index entry. Branches
// are not cascade-deleted: they are user-owned session files under the
// host layout, per §4.5.
func (s *Store) DeleteSnapshot(name string) error {
	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return err
	}
	snap, ok := idx.Snapshots[name]
	if !ok {
		return &cmverrors.SnapshotNotFoundError{Name: name}
	}

	if err := os.RemoveAll(s.snapshotDir(snap.SnapshotDir)); err != nil && !os.IsNotExist(err) {
		return &cmverrors.IoError{Op: "remove snapshot directory", Err: err}
	}

	delete(idx.Snapshots, name)
	return idx.save(s.HomeDir)
}

func writeMeta(path string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta.json: %w", err)
	}
	return atomicfile.WriteFile(path, append(data, '\n'), 0o644)
}

// ValidateConversationContent enforces the branch-target precondition from
// §4.5 step 1: the snapshot's JSONL must contain at least one user or
// assistant message.
func ValidateConversationContent(jsonlPath string) error {
	tr, err := transcript.ParseFile(jsonlPath)
	if err != nil {
		return &cmverrors.IoError{Op: "parse snapshot transcript", Err: err}
	}
	if tr.Stats.UserMessages == 0 && tr.Stats.AssistantMessages == 0 {
		return &cmverrors.NoConversationContentError{}
	}
	return nil
}
