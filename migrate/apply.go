package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/icetype/icetype/dialect"
)

// revisionsTable records applied migrations. The DDL sticks to types
// every supported dialect accepts.
const (
	revisionsTable  = "icetype_revisions"
	revisionsCreate = "CREATE TABLE IF NOT EXISTS " + revisionsTable +
		" (id varchar(36) PRIMARY KEY, name varchar(255) NOT NULL, applied_at timestamp NOT NULL)"
)

// Revision is one row of the bookkeeping table.
type Revision struct {
	ID        string
	Name      string
	AppliedAt time.Time
}

// Applier executes migrations against a database inside a single
// transaction per migration and keeps the revision bookkeeping in the
// same transaction, so a failed statement leaves no partial trace.
type Applier struct {
	db   *sql.DB
	bind func(string) string
}

// NewApplier returns an applier on the given database handle. The
// dialect selects the bookkeeping placeholder style: postgres drivers
// take $1-style ordinals, the others take "?".
func NewApplier(db *sql.DB, dl *dialect.Dialect) *Applier {
	a := &Applier{db: db, bind: func(q string) string { return q }}
	if dl != nil && dl.Name == dialect.Postgres {
		a.bind = ordinalBind
	}
	return a
}

// ordinalBind rewrites "?" placeholders as "$1".."$n".
func ordinalBind(q string) string {
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Apply runs the migration's forward statements. Applying an
// already-recorded migration is a no-op. Comment lines are skipped.
func (a *Applier) Apply(ctx context.Context, m *Migration) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("icetype/migrate: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, revisionsCreate); err != nil {
		return fmt.Errorf("icetype/migrate: ensure revisions table: %w", err)
	}
	var n int
	row := tx.QueryRowContext(ctx, a.bind("SELECT COUNT(*) FROM "+revisionsTable+" WHERE id = ?"), m.ID)
	if err := row.Scan(&n); err != nil {
		return fmt.Errorf("icetype/migrate: query revisions: %w", err)
	}
	if n > 0 {
		return tx.Commit()
	}
	if err := execAll(ctx, tx, m.Up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		a.bind("INSERT INTO "+revisionsTable+" (id, name, applied_at) VALUES (?, ?, ?)"),
		m.ID, m.Name, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("icetype/migrate: record revision: %w", err)
	}
	return tx.Commit()
}

// Rollback runs the migration's backward statements and removes its
// revision row. Irreversible migrations are refused up front rather
// than partially undone.
func (a *Applier) Rollback(ctx context.Context, m *Migration) error {
	if !m.Reversible {
		return fmt.Errorf("icetype/migrate: migration %s (%s) is not reversible", m.ID, m.Name)
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("icetype/migrate: begin: %w", err)
	}
	defer tx.Rollback()

	if err := execAll(ctx, tx, m.Down); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, a.bind("DELETE FROM "+revisionsTable+" WHERE id = ?"), m.ID); err != nil {
		return fmt.Errorf("icetype/migrate: delete revision: %w", err)
	}
	return tx.Commit()
}

// Applied lists the recorded revisions in application order.
func (a *Applier) Applied(ctx context.Context) ([]Revision, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, name, applied_at FROM "+revisionsTable+" ORDER BY applied_at")
	if err != nil {
		return nil, fmt.Errorf("icetype/migrate: query revisions: %w", err)
	}
	defer rows.Close()
	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Name, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("icetype/migrate: scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("icetype/migrate: iterate revisions: %w", err)
	}
	return revs, nil
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, s := range stmts {
		if IsComment(s) {
			continue
		}
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("icetype/migrate: exec %q: %w", s, err)
		}
	}
	return nil
}
