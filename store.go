package icetype

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/icetype/icetype/compiler/parser"
	"github.com/icetype/icetype/schema"
)

// snapshotExt is the file extension of stored schema snapshots.
const snapshotExt = ".snap"

// SnapshotStore persists compiled schemas between runs, so the next
// run can diff the current definitions against the last applied state.
type SnapshotStore interface {
	// Load returns the stored snapshot of the named schema, or a
	// missing-snapshot error satisfying IsSnapshotNotFound.
	Load(name string) (*schema.Schema, error)

	// Save stores the schema, replacing any previous snapshot.
	Save(s *schema.Schema) error

	// Names lists the stored schema names.
	Names() ([]string, error)
}

// DirStore is a SnapshotStore keeping one binary snapshot file per
// schema in a directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("icetype: create snapshot directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Load implements SnapshotStore.
func (st *DirStore) Load(name string) (*schema.Schema, error) {
	data, err := os.ReadFile(st.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewSnapshotNotFoundError(name)
	}
	if err != nil {
		return nil, fmt.Errorf("icetype: read snapshot %q: %w", name, err)
	}
	s, err := schema.UnmarshalSnapshot(data, parser.ParseField)
	if err != nil {
		return nil, fmt.Errorf("icetype: decode snapshot %q: %w", name, err)
	}
	return s, nil
}

// Save implements SnapshotStore.
func (st *DirStore) Save(s *schema.Schema) error {
	data, err := schema.MarshalSnapshot(s)
	if err != nil {
		return fmt.Errorf("icetype: encode snapshot %q: %w", s.Name, err)
	}
	if err := os.WriteFile(st.path(s.Name), data, 0o644); err != nil {
		return fmt.Errorf("icetype: write snapshot %q: %w", s.Name, err)
	}
	return nil
}

// Names implements SnapshotStore.
func (st *DirStore) Names() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("icetype: list snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), snapshotExt))
	}
	return names, nil
}

func (st *DirStore) path(name string) string {
	return filepath.Join(st.dir, name+snapshotExt)
}
