package migrate

import (
	"fmt"
	"regexp"
	"strings"
)

// ReversibilityError reports a down statement that does not
// structurally invert its forward counterpart.
type ReversibilityError struct {
	// Index is the position of the forward operation.
	Index int
	// Up and Down are the statements that failed to match.
	Up   string
	Down string
	// Reason describes the mismatch.
	Reason string
}

// Error returns the error string.
func (e *ReversibilityError) Error() string {
	return fmt.Sprintf("icetype/migrate: down does not invert up[%d]: %s (up: %s; down: %s)",
		e.Index, e.Reason, e.Up, e.Down)
}

// ValidationResult is the outcome of ValidateReversibility.
type ValidationResult struct {
	// Valid is true when every paired up/down operation touches the
	// same table and column.
	Valid bool
	// Reversible is true when the migration is both valid and free of
	// irreversible placeholders.
	Reversible bool
	// Errors lists the structural mismatches.
	Errors []*ReversibilityError
}

// ValidateReversibility re-parses the generated statements and
// confirms that each down operation names the table and column its
// corresponding up operation touched. The pairing walks up in order
// and down in reverse; a recreation block counts as one operation on
// its definitive table. A mismatch is a validation error, not silently
// ignored.
//
// A recreation block subsumes any number of changes to its table, so
// one direction may carry a block where the other carries a block plus
// direct statements (an added column is a direct ALTER, its inverse
// drop is recreation-required under sqlite). When the raw counts
// disagree, operations adjacent to a block on the same table fold into
// it before the counts are compared.
func ValidateReversibility(m *Migration) *ValidationResult {
	r := &ValidationResult{}
	ups := parseOps(m.Up)
	downs := parseOps(m.Down)

	placeholders := false
	for _, op := range downs {
		if op.kind == opPlaceholder {
			placeholders = true
		}
	}

	if len(ups) != len(downs) {
		ups, downs = foldRecreates(ups), foldRecreates(downs)
	}
	if len(ups) != len(downs) {
		r.Errors = append(r.Errors, &ReversibilityError{
			Index:  0,
			Reason: fmt.Sprintf("operation count mismatch: %d up, %d down", len(ups), len(downs)),
		})
	} else {
		for i, up := range ups {
			down := downs[len(downs)-1-i]
			if up.kind == opPlaceholder || down.kind == opPlaceholder {
				continue
			}
			if err := matchOps(i, up, down); err != nil {
				r.Errors = append(r.Errors, err)
			}
		}
	}

	r.Valid = len(r.Errors) == 0
	r.Reversible = r.Valid && m.Reversible && !placeholders
	return r
}

// matchOps checks one up/down operation pair.
func matchOps(index int, up, down stmtOp) *ReversibilityError {
	if up.table != "" && down.table != "" && up.table != down.table {
		return &ReversibilityError{
			Index: index, Up: up.stmt, Down: down.stmt,
			Reason: fmt.Sprintf("table mismatch: up touches %q, down touches %q", up.table, down.table),
		}
	}
	if len(up.columns) > 0 && len(down.columns) > 0 && !sameColumnSet(up.columns, down.columns) {
		return &ReversibilityError{
			Index: index, Up: up.stmt, Down: down.stmt,
			Reason: fmt.Sprintf("column mismatch: up touches %v, down touches %v", up.columns, down.columns),
		}
	}
	return nil
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, c := range a {
		set[c]++
	}
	for _, c := range b {
		if set[c] == 0 {
			return false
		}
		set[c]--
	}
	return true
}

// Operation kinds recognized by the statement re-parser.
const (
	opAddColumn    = "add_column"
	opDropColumn   = "drop_column"
	opRenameColumn = "rename_column"
	opModifyColumn = "modify_column"
	opCreateTable  = "create_table"
	opDropTable    = "drop_table"
	opCreateIndex  = "create_index"
	opDropIndex    = "drop_index"
	opTruncate     = "truncate"
	opRecreate     = "recreate"
	opPlaceholder  = "placeholder"
	opComment      = "comment"
	opOther        = "other"
)

// stmtOp is the parsed structural signature of one statement, or of a
// whole recreation block collapsed to its definitive table.
type stmtOp struct {
	kind    string
	table   string
	columns []string
	stmt    string
}

// ident matches a quoted or bare SQL identifier.
const ident = "[`\"]?([A-Za-z0-9_]+)[`\"]?"

var (
	reAddColumn    = regexp.MustCompile(`(?i)^ALTER TABLE ` + ident + ` ADD COLUMN ` + ident)
	reDropColumn   = regexp.MustCompile(`(?i)^ALTER TABLE ` + ident + ` DROP COLUMN ` + ident)
	reRenameColumn = regexp.MustCompile(`(?i)^ALTER TABLE ` + ident + ` RENAME COLUMN ` + ident + ` TO ` + ident)
	reModifyColumn = regexp.MustCompile(`(?i)^ALTER TABLE ` + ident + ` (?:MODIFY|ALTER) COLUMN ` + ident)
	reCreateAs     = regexp.MustCompile(`(?i)^CREATE TABLE ` + ident + ` AS SELECT`)
	reCreateTable  = regexp.MustCompile(`(?i)^CREATE TABLE ` + ident)
	reDropTable    = regexp.MustCompile(`(?i)^DROP TABLE ` + ident)
	reCreateIndex  = regexp.MustCompile(`(?i)^CREATE (?:UNIQUE )?INDEX ` + ident + ` ON ` + ident + ` \(` + ident + `\)`)
	reDropIndexOn  = regexp.MustCompile(`(?i)^DROP INDEX ` + ident + ` ON ` + ident)
	reDropIndex    = regexp.MustCompile(`(?i)^DROP INDEX ` + ident)
	reTruncate     = regexp.MustCompile(`(?i)^TRUNCATE (?:TABLE )?` + ident)
	reDeleteAll    = regexp.MustCompile(`(?i)^DELETE FROM ` + ident + `\s*$`)
	reInsert       = regexp.MustCompile(`(?i)^INSERT INTO ` + ident)
)

// parseStatement classifies a single statement.
func parseStatement(stmt string) stmtOp {
	s := strings.TrimSpace(stmt)
	if strings.HasPrefix(s, "--") {
		if strings.HasPrefix(s, commentPrefix+"irreversible:") {
			return stmtOp{kind: opPlaceholder, stmt: stmt}
		}
		return stmtOp{kind: opComment, stmt: stmt}
	}
	switch {
	case reRenameColumn.MatchString(s):
		m := reRenameColumn.FindStringSubmatch(s)
		return stmtOp{kind: opRenameColumn, table: m[1], columns: []string{m[2], m[3]}, stmt: stmt}
	case reAddColumn.MatchString(s):
		m := reAddColumn.FindStringSubmatch(s)
		return stmtOp{kind: opAddColumn, table: m[1], columns: []string{m[2]}, stmt: stmt}
	case reDropColumn.MatchString(s):
		m := reDropColumn.FindStringSubmatch(s)
		return stmtOp{kind: opDropColumn, table: m[1], columns: []string{m[2]}, stmt: stmt}
	case reModifyColumn.MatchString(s):
		m := reModifyColumn.FindStringSubmatch(s)
		return stmtOp{kind: opModifyColumn, table: m[1], columns: []string{m[2]}, stmt: stmt}
	case reCreateAs.MatchString(s):
		m := reCreateAs.FindStringSubmatch(s)
		return stmtOp{kind: opCreateTable, table: m[1], stmt: stmt}
	case reCreateIndex.MatchString(s):
		m := reCreateIndex.FindStringSubmatch(s)
		return stmtOp{kind: opCreateIndex, table: m[2], columns: []string{m[3]}, stmt: stmt}
	case reDropIndexOn.MatchString(s):
		m := reDropIndexOn.FindStringSubmatch(s)
		return stmtOp{kind: opDropIndex, table: m[2], columns: indexColumnOf(m[1], m[2]), stmt: stmt}
	case reDropIndex.MatchString(s):
		m := reDropIndex.FindStringSubmatch(s)
		return stmtOp{kind: opDropIndex, columns: indexColumnGuess(m[1]), stmt: stmt}
	case reCreateTable.MatchString(s):
		m := reCreateTable.FindStringSubmatch(s)
		return stmtOp{kind: opCreateTable, table: m[1], stmt: stmt}
	case reDropTable.MatchString(s):
		m := reDropTable.FindStringSubmatch(s)
		return stmtOp{kind: opDropTable, table: m[1], stmt: stmt}
	case reTruncate.MatchString(s):
		m := reTruncate.FindStringSubmatch(s)
		return stmtOp{kind: opTruncate, table: m[1], stmt: stmt}
	case reDeleteAll.MatchString(s):
		m := reDeleteAll.FindStringSubmatch(s)
		return stmtOp{kind: opTruncate, table: m[1], stmt: stmt}
	case reInsert.MatchString(s):
		m := reInsert.FindStringSubmatch(s)
		return stmtOp{kind: opOther, table: m[1], stmt: stmt}
	default:
		return stmtOp{kind: opOther, stmt: stmt}
	}
}

// indexColumnOf recovers the column from the conventional index name
// "<table>_<column>_idx".
func indexColumnOf(index, table string) []string {
	name := strings.TrimPrefix(index, table+"_")
	name = strings.TrimSuffix(name, "_idx")
	if name == "" || name == index {
		return nil
	}
	return []string{name}
}

// indexColumnGuess recovers the column from "<table>_<column>_idx"
// without knowing the table.
func indexColumnGuess(index string) []string {
	trimmed := strings.TrimSuffix(index, "_idx")
	if trimmed == index {
		return nil
	}
	if i := strings.LastIndex(trimmed, "_"); i >= 0 {
		return []string{trimmed[i+1:]}
	}
	return nil
}

// foldRecreates merges operations adjacent to a recreation block on
// the same table into that block. Runs without a block are left alone,
// so a genuine count mismatch between direct statements still fails.
func foldRecreates(ops []stmtOp) []stmtOp {
	var out []stmtOp
	for _, op := range ops {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.table != "" && last.table == op.table &&
				(last.kind == opRecreate || op.kind == opRecreate) {
				last.kind = opRecreate
				last.columns = nil
				continue
			}
		}
		out = append(out, op)
	}
	return out
}

// parseOps classifies a statement list and collapses each recreation
// block (scratch copy .. scratch drop) into one operation on the
// definitive table.
func parseOps(stmts []string) []stmtOp {
	var ops []stmtOp
	for i := 0; i < len(stmts); i++ {
		op := parseStatement(stmts[i])
		if op.kind == opComment {
			// Advisory comments are not operations; placeholders are.
			continue
		}
		if op.kind == opCreateTable && strings.HasSuffix(op.table, scratchSuffix) {
			base := strings.TrimSuffix(op.table, scratchSuffix)
			end := i
			for j := i + 1; j < len(stmts); j++ {
				next := parseStatement(stmts[j])
				if next.kind == opDropTable && next.table == op.table {
					end = j
					break
				}
			}
			if end > i {
				ops = append(ops, stmtOp{kind: opRecreate, table: base, stmt: stmts[i]})
				i = end
				continue
			}
		}
		ops = append(ops, op)
	}
	return ops
}
