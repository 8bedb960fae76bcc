package archive

import "github.com/suykerbuyk/cmv/internal/store"

// ExportSnapshot writes the named snapshot to a .cmv archive at dstPath,
// per §4.5's "Export snapshot" step.
func ExportSnapshot(s *store.Store, name, dstPath string) error {
	meta, sessionPath, err := s.ExportInfo(name)
	if err != nil {
		return err
	}
	return Export(dstPath, meta, sessionPath)
}

// ImportSnapshot reads a .cmv archive at srcPath and materializes it as a
// new snapshot in s, per §4.5's "Import snapshot" step. overrideName lets
// the caller rename on a name collision; "" keeps the archive's own name.
func ImportSnapshot(s *store.Store, srcPath, overrideName string) (*store.Snapshot, error) {
	imported, err := Import(srcPath)
	if err != nil {
		return nil, err
	}
	return s.ImportSnapshot(imported.Meta, imported.SessionData, overrideName)
}
