package migrate

import (
	"fmt"
	"strings"
	"time"

	atlasmigrate "ariga.io/atlas/sql/migrate"
)

// Dir persists migrations as versioned SQL file pairs inside an
// integrity-checked directory. Every write updates the directory's
// checksum file, so external edits are detected by Validate.
type Dir struct {
	dir *atlasmigrate.LocalDir
}

// OpenDir opens (or initializes) a migration directory at the given
// path.
func OpenDir(path string) (*Dir, error) {
	d, err := atlasmigrate.NewLocalDir(path)
	if err != nil {
		return nil, fmt.Errorf("icetype/migrate: open directory: %w", err)
	}
	return &Dir{dir: d}, nil
}

// WriteMigration writes the migration as "<version>_<name>.up.sql" and
// "<version>_<name>.down.sql" and refreshes the checksum file. The
// returned version is the timestamp prefix shared by both files.
func (d *Dir) WriteMigration(m *Migration) (string, error) {
	version := time.Now().UTC().Format("20060102150405")
	base := version + "_" + m.Name
	if err := d.dir.WriteFile(base+".up.sql", renderFile(m, m.Up, m.Warnings)); err != nil {
		return "", fmt.Errorf("icetype/migrate: write %s.up.sql: %w", base, err)
	}
	if err := d.dir.WriteFile(base+".down.sql", renderFile(m, m.Down, nil)); err != nil {
		return "", fmt.Errorf("icetype/migrate: write %s.down.sql: %w", base, err)
	}
	sum, err := d.dir.Checksum()
	if err != nil {
		return "", fmt.Errorf("icetype/migrate: checksum: %w", err)
	}
	if err := atlasmigrate.WriteSumFile(d.dir, sum); err != nil {
		return "", fmt.Errorf("icetype/migrate: write sum file: %w", err)
	}
	return version, nil
}

// Validate checks the directory's integrity against its checksum file.
func (d *Dir) Validate() error {
	if err := atlasmigrate.Validate(d.dir); err != nil {
		return fmt.Errorf("icetype/migrate: directory integrity: %w", err)
	}
	return nil
}

// Local exposes the underlying directory for tooling that consumes the
// standard migration-directory format.
func (d *Dir) Local() *atlasmigrate.LocalDir {
	return d.dir
}

// renderFile renders one direction of a migration as file content: a
// metadata header, warning comments, then one terminated statement per
// line. Comment lines pass through unterminated.
func renderFile(m *Migration, stmts, warnings []string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- migration: %s (%s)\n", m.ID, m.Name)
	if !m.FromVersion.IsZero() || !m.ToVersion.IsZero() {
		fmt.Fprintf(&sb, "-- schema: %s -> %s\n", m.FromVersion, m.ToVersion)
	}
	fmt.Fprintf(&sb, "-- reversible: %t\n", m.Reversible)
	for _, w := range warnings {
		fmt.Fprintf(&sb, "-- warning: %s\n", w)
	}
	for _, s := range stmts {
		if IsComment(s) {
			sb.WriteString(s)
		} else {
			sb.WriteString(s)
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}
