package dialect

import (
	"fmt"

	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema/field"
)

// postgresTypes maps canonical base types to PostgreSQL column types.
var postgresTypes = map[string]string{
	"string":    "text",
	"text":      "text",
	"int":       "integer",
	"bigint":    "bigint",
	"float":     "double precision",
	"bool":      "boolean",
	"timestamp": "timestamptz",
	"date":      "date",
	"uuid":      "uuid",
	"json":      "jsonb",
	"bytes":     "bytea",
}

// PostgresDialect returns the capability descriptor for PostgreSQL.
// Every change kind is expressible as a direct ALTER statement, so
// nothing requires table recreation.
func PostgresDialect() *Dialect {
	quote := doubleQuote
	tmpl := stdTemplates(quote)
	tmpl.ModifyColumn = func(table string, col Column) string {
		stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			quote(table), quote(col.Name), col.Type, quote(col.Name), col.Type)
		if col.Nullable {
			return stmt + fmt.Sprintf(", ALTER COLUMN %s DROP NOT NULL", quote(col.Name))
		}
		return stmt + fmt.Sprintf(", ALTER COLUMN %s SET NOT NULL", quote(col.Name))
	}
	tmpl.Cast = func(expr, typ string) string {
		return fmt.Sprintf("%s::%s", expr, typ)
	}
	return &Dialect{
		Name:         Postgres,
		Quote:        quote,
		TypeMap:      postgresTypeMap,
		IsSimple:     func(diff.Change) bool { return true },
		DirectiveSQL: indexDirectiveSQL(tmpl),
		Templates:    tmpl,
	}
}

// postgresTypeMap renders a definition as a PostgreSQL column type.
// Arrays use native array types.
func postgresTypeMap(def *field.Definition) string {
	base := postgresBase(def)
	if def.IsArray {
		return base + "[]"
	}
	return base
}

func postgresBase(def *field.Definition) string {
	switch {
	case def.IsRelation():
		// Relation columns hold the target's key; uuid by convention.
		return "uuid"
	case def.Length > 0:
		return fmt.Sprintf("varchar(%d)", def.Length)
	case def.Type == "decimal" && def.Precision > 0 && def.Scale > 0:
		return fmt.Sprintf("numeric(%d,%d)", def.Precision, def.Scale)
	case def.Type == "decimal" && def.Precision > 0:
		return fmt.Sprintf("numeric(%d)", def.Precision)
	case def.Type == "decimal":
		return "numeric"
	case def.Type == "varchar":
		return "varchar"
	}
	if t, ok := postgresTypes[def.Type]; ok {
		return t
	}
	// Unknown canonical types pass through untouched so schema authors
	// can use dialect-native names directly.
	return def.Type
}
