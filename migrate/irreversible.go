package migrate

import (
	"fmt"
	"strings"

	"github.com/icetype/icetype/diff"
)

// Irreversible operation types.
const (
	OpRemoveField = "remove_field"
	OpLossyCast   = "lossy_cast"
	OpDropTable   = "drop_table"
	OpTruncate    = "truncate"
)

// IrreversibleOperation describes one forward operation whose effect
// cannot be undone by any down statement.
type IrreversibleOperation struct {
	// Type is the operation class: "remove_field", "lossy_cast",
	// "drop_table" or "truncate".
	Type string
	// Reason explains why the operation cannot be rolled back.
	Reason string
	// Statement is the forward statement carrying the operation, when
	// one could be identified.
	Statement string
	// SuggestedFix is an advisory remedy: a statement restoring the
	// structure, or a manual step to run before applying.
	SuggestedFix string
}

// DetectIrreversible reports the forward operations of a migration
// that destroy data. Migrations built by Generate are inspected at the
// change level, which recovers the dropped column's full definition
// for the suggested fix; hand-built migrations fall back to scanning
// the statements themselves.
func DetectIrreversible(m *Migration) []IrreversibleOperation {
	if m.source != nil && m.dl != nil {
		return detectFromChanges(m)
	}
	return detectFromStatements(m.Up)
}

// detectFromChanges inspects the diff the migration was generated
// from.
func detectFromChanges(m *Migration) []IrreversibleOperation {
	table := m.source.New().Table()
	tmpl := m.dl.Templates
	var ops []IrreversibleOperation
	for _, c := range m.source.Changes {
		switch c := c.(type) {
		case diff.RemoveField:
			ops = append(ops, IrreversibleOperation{
				Type:      OpRemoveField,
				Reason:    fmt.Sprintf("column %q is dropped; its data cannot be restored", c.Field),
				Statement: findStatement(m.Up, m.dl.Quote(c.Field)),
				// Restores the structure only. The data is gone.
				SuggestedFix: tmpl.AddColumn(table, m.dl.ColumnOf(c.Field, c.Def)),
			})
		case diff.ChangeType:
			risky, reason := castRisk(c.From, c.To)
			if !risky {
				continue
			}
			ops = append(ops, IrreversibleOperation{
				Type:         OpLossyCast,
				Reason:       fmt.Sprintf("column %q: %s", c.Field, reason),
				Statement:    findStatement(m.Up, m.dl.Quote(c.Field)),
				SuggestedFix: fmt.Sprintf("back up column %q before applying", c.Field),
			})
		}
	}
	return ops
}

// findStatement locates the forward statement naming the quoted
// column, or the start of the recreation block that absorbed it. The
// caller passes the dialect-quoted identifier so that a column whose
// name is a substring of another ("id" inside "user_id") never matches
// the wrong statement.
func findStatement(stmts []string, quoted string) string {
	for _, s := range stmts {
		if IsComment(s) {
			continue
		}
		if strings.Contains(s, quoted) {
			return s
		}
	}
	for _, s := range stmts {
		if parseStatement(s).kind == opCreateTable && strings.Contains(s, scratchSuffix) {
			return s
		}
	}
	return ""
}

// detectFromStatements scans raw statements for destructive forms. A
// recreation block's internal drops are part of a data-preserving
// rewrite and are not reported.
func detectFromStatements(stmts []string) []IrreversibleOperation {
	var ops []IrreversibleOperation
	for _, op := range parseOps(stmts) {
		switch op.kind {
		case opDropColumn:
			ops = append(ops, IrreversibleOperation{
				Type:         OpRemoveField,
				Reason:       fmt.Sprintf("column %q is dropped; its data cannot be restored", op.columns[0]),
				Statement:    op.stmt,
				SuggestedFix: fmt.Sprintf("back up column %q before applying", op.columns[0]),
			})
		case opDropTable:
			ops = append(ops, IrreversibleOperation{
				Type:         OpDropTable,
				Reason:       fmt.Sprintf("table %q is dropped with all its data", op.table),
				Statement:    op.stmt,
				SuggestedFix: fmt.Sprintf("back up table %q before applying", op.table),
			})
		case opTruncate:
			ops = append(ops, IrreversibleOperation{
				Type:         OpTruncate,
				Reason:       fmt.Sprintf("all rows of %q are deleted", op.table),
				Statement:    op.stmt,
				SuggestedFix: fmt.Sprintf("back up table %q before applying", op.table),
			})
		}
	}
	return ops
}
