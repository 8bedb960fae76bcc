package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suykerbuyk/cmv/internal/atomicfile"
	"github.com/suykerbuyk/cmv/internal/cmverrors"
)

const indexSchemaVersion = 1

// Index is the master document mapping snapshot name to Snapshot record,
// per §3.4. Stored at <home>/index.json.
type Index struct {
	SchemaVersion int                  `json:"schema_version"`
	Snapshots     map[string]*Snapshot `json:"snapshots"`
}

func newIndex() *Index {
	return &Index{SchemaVersion: indexSchemaVersion, Snapshots: map[string]*Snapshot{}}
}

func indexPath(homeDir string) string {
	return filepath.Join(homeDir, "index.json")
}

// loadIndex reads the master index, returning a fresh empty one if absent.
func loadIndex(homeDir string) (*Index, error) {
	data, err := os.ReadFile(indexPath(homeDir))
	if os.IsNotExist(err) {
		return newIndex(), nil
	}
	if err != nil {
		return nil, &cmverrors.IoError{Op: "read master index", Err: err}
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &cmverrors.IoError{Op: "parse master index", Err: err}
	}
	if idx.Snapshots == nil {
		idx.Snapshots = map[string]*Snapshot{}
	}
	return &idx, nil
}

// save publishes the index atomically: write-to-temp, then rename. No
// reader ever observes a partial document.
func (idx *Index) save(homeDir string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal master index: %w", err)
	}
	return atomicfile.WriteFile(indexPath(homeDir), append(data, '\n'), 0o644)
}

// findByBranchSource walks every snapshot's branches looking for one whose
// ForkedSessionID equals sourceID — used by CreateSnapshot step 7 to infer
// parent_snapshot when snapshotting a session that is itself a branch.
func (idx *Index) findByBranchSource(sourceID string) (name string, ok bool) {
	for name, snap := range idx.Snapshots {
		for _, b := range snap.Branches {
			if b.ForkedSessionID == sourceID {
				return name, true
			}
		}
	}
	return "", false
}
