package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
)

// ExportInfo resolves a snapshot name to the portable Meta document and the
// absolute path of its source transcript, for internal/archive's Export to
// read — kept in store rather than archive since archive already imports
// store and a reverse import would cycle.
func (s *Store) ExportInfo(name string) (Meta, string, error) {
	snap, err := s.GetSnapshot(name)
	if err != nil {
		return Meta{}, "", err
	}
	path := s.snapshotSessionPath(snap.SnapshotDir, snap.SourceSessionID)
	return snap.ToMeta(), path, nil
}

// ImportSnapshot materializes an imported .cmv archive's meta and session
// bytes as a new snapshot, per §4.5's "Import snapshot" step. overrideName
// lets the caller rename on collision; "" keeps meta.Name.
func (s *Store) ImportSnapshot(meta Meta, sessionData []byte, overrideName string) (*Snapshot, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	name := meta.Name
	if overrideName != "" {
		name = overrideName
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	idx, err := loadIndex(s.HomeDir)
	if err != nil {
		return nil, err
	}
	if _, exists := idx.Snapshots[name]; exists {
		return nil, &cmverrors.SnapshotExistsError{Name: name}
	}

	id := newSnapshotID()
	if err := os.MkdirAll(s.snapshotDir(id), 0o755); err != nil {
		return nil, &cmverrors.IoError{Op: "create imported snapshot directory", Err: err}
	}

	dstSessionPath := s.snapshotSessionPath(id, meta.SourceSessionID)
	if err := os.MkdirAll(filepath.Dir(dstSessionPath), 0o755); err != nil {
		return nil, &cmverrors.IoError{Op: "create imported snapshot session directory", Err: err}
	}
	if err := atomicfile.WriteFile(dstSessionPath, sessionData, 0o644); err != nil {
		return nil, &cmverrors.IoError{Op: "write imported session transcript", Err: err}
	}

	count := 0
	snap := &Snapshot{
		ID:                id,
		Name:              name,
		Description:       meta.Description,
		CreatedAt:         meta.CreatedAt,
		SourceSessionID:   meta.SourceSessionID,
		SourceProjectPath: meta.SourceProjectPath,
		SnapshotDir:       id,
		MessageCount:      &count,
		Tags:              meta.Tags,
		ParentSnapshot:    meta.ParentSnapshot,
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	if err := writeMeta(s.metaPath(id), snap.ToMeta()); err != nil {
		return nil, err
	}

	idx.Snapshots[name] = snap
	if err := idx.save(s.HomeDir); err != nil {
		return nil, err
	}

	return snap, nil
}
