package dialect

import (
	"fmt"
	"strings"

	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema/field"
)

// mysqlTypes maps canonical base types to MySQL column types.
var mysqlTypes = map[string]string{
	"string":    "varchar(255)",
	"text":      "text",
	"int":       "int",
	"bigint":    "bigint",
	"float":     "double",
	"bool":      "tinyint(1)",
	"timestamp": "datetime(6)",
	"date":      "date",
	"uuid":      "char(36)",
	"json":      "json",
	"bytes":     "blob",
}

// MySQLDialect returns the capability descriptor for MySQL/MariaDB.
// All change kinds map to direct ALTER statements (MODIFY COLUMN
// covers type and nullability changes).
func MySQLDialect() *Dialect {
	quote := backQuote
	tmpl := stdTemplates(quote)
	tmpl.ModifyColumn = func(table string, col Column) string {
		return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quote(table), columnDDL(quote, col))
	}
	tmpl.DropIndex = func(table, column string) string {
		return fmt.Sprintf("DROP INDEX %s ON %s", quote(indexName(table, column)), quote(table))
	}
	return &Dialect{
		Name:         MySQL,
		Quote:        quote,
		TypeMap:      mysqlTypeMap,
		IsSimple:     func(diff.Change) bool { return true },
		DirectiveSQL: indexDirectiveSQL(tmpl),
		Templates:    tmpl,
	}
}

// mysqlTypeMap renders a definition as a MySQL column type. MySQL has
// no array types; arrays are stored as json.
func mysqlTypeMap(def *field.Definition) string {
	if def.IsArray {
		return "json"
	}
	switch {
	case def.IsRelation():
		return "char(36)"
	case def.Length > 0:
		return fmt.Sprintf("varchar(%d)", def.Length)
	case def.Type == "decimal" && def.Precision > 0 && def.Scale > 0:
		return fmt.Sprintf("decimal(%d,%d)", def.Precision, def.Scale)
	case def.Type == "decimal" && def.Precision > 0:
		return fmt.Sprintf("decimal(%d)", def.Precision)
	case def.Type == "decimal":
		return "decimal"
	case def.Type == "varchar":
		return "varchar(255)"
	}
	if t, ok := mysqlTypes[def.Type]; ok {
		return t
	}
	return def.Type
}

// backQuote quotes with backticks, escaping embedded ones.
func backQuote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
