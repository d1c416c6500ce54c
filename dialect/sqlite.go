package dialect

import (
	"fmt"

	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema/field"
)

// sqliteTypes maps canonical base types to SQLite storage classes.
var sqliteTypes = map[string]string{
	"string":    "text",
	"text":      "text",
	"int":       "integer",
	"bigint":    "integer",
	"float":     "real",
	"bool":      "integer",
	"timestamp": "text",
	"date":      "text",
	"uuid":      "text",
	"json":      "text",
	"bytes":     "blob",
}

// SQLiteDialect returns the capability descriptor for SQLite. SQLite's
// restricted ALTER TABLE supports adding and renaming columns, but
// dropping a column, changing its type or changing its constraints
// requires recreating the table.
func SQLiteDialect() *Dialect {
	quote := doubleQuote
	tmpl := stdTemplates(quote)
	return &Dialect{
		Name:    SQLite,
		Quote:   quote,
		TypeMap: sqliteTypeMap,
		IsSimple: func(c diff.Change) bool {
			switch c.(type) {
			case diff.AddField, diff.RenameField, diff.ChangeDirective:
				return true
			default:
				// RemoveField, ChangeType and ChangeModifier all need
				// a table rebuild.
				return false
			}
		},
		DirectiveSQL: indexDirectiveSQL(tmpl),
		Templates:    tmpl,
	}
}

// sqliteTypeMap renders a definition as a SQLite column type. SQLite
// ignores length and precision, and arrays are stored as json text.
func sqliteTypeMap(def *field.Definition) string {
	if def.IsArray {
		return "text"
	}
	if def.IsRelation() {
		return "text"
	}
	if def.Type == "decimal" && def.Precision > 0 {
		if def.Scale > 0 {
			return fmt.Sprintf("numeric(%d,%d)", def.Precision, def.Scale)
		}
		return fmt.Sprintf("numeric(%d)", def.Precision)
	}
	if t, ok := sqliteTypes[def.Type]; ok {
		return t
	}
	if def.Type == "varchar" || def.Length > 0 {
		return "text"
	}
	return def.Type
}
