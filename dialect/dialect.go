// Package dialect describes database dialects to the migration
// framework as capability-descriptor values.
//
// A Dialect bundles the hooks the framework needs — canonical-to-
// dialect type mapping, identifier quoting, the simple-vs-recreation
// classification, and statement templates — so the recreation and
// batching logic lives in exactly one place and never hard-codes a
// dialect's syntax. Built-in descriptors cover PostgreSQL, MySQL and
// SQLite.
package dialect

import (
	"fmt"
	"slices"
	"strings"

	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema/field"
)

// Dialect name constants.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Column is a rendering-ready column description handed to statement
// templates: the name is unquoted, the type is already mapped to the
// dialect.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Unique   bool
	// Default is the opaque default expression from the definition,
	// passed through to the DDL untouched.
	Default string
}

// Templates holds the per-operation statement builders of a dialect.
// Every hook returns one complete statement without a terminator.
type Templates struct {
	// CreateTable builds the definitive CREATE TABLE statement.
	CreateTable func(table string, cols []Column) string
	// CreateTableAs builds a scratch copy of the listed columns,
	// creating and filling it in one statement.
	CreateTableAs func(table, from string, cols []string) string
	// DropTable drops a table.
	DropTable func(table string) string
	// AddColumn, DropColumn and RenameColumn are the direct ALTER forms.
	AddColumn    func(table string, col Column) string
	DropColumn   func(table, column string) string
	RenameColumn func(table, from, to string) string
	// ModifyColumn changes an existing column's type or nullability.
	ModifyColumn func(table string, col Column) string
	// InsertSelect copies data between tables; exprs align with cols
	// and may contain casts.
	InsertSelect func(table string, cols []string, from string, exprs []string) string
	// CreateIndex and DropIndex manage single-column indexes.
	CreateIndex func(table, column string, unique bool) string
	DropIndex   func(table, column string) string
	// Cast wraps an expression in the dialect's cast syntax.
	Cast func(expr, typ string) string
}

// Dialect is the capability descriptor consumed by the migration
// framework. It is a plain value: two generators running against the
// same descriptor share it read-only.
type Dialect struct {
	// Name identifies the dialect ("postgres", "mysql", "sqlite").
	Name string
	// TypeMap converts a canonical field definition to the dialect's
	// column type string.
	TypeMap func(*field.Definition) string
	// Quote quotes an identifier.
	Quote func(name string) string
	// IsSimple reports whether the change is expressible as one direct
	// ALTER-style statement. Changes that are not simple require a
	// full table recreation.
	IsSimple func(c diff.Change) bool
	// DirectiveSQL renders a recognized directive transition as
	// statements, or nil when the directive has no DDL meaning for
	// this dialect. Reversal swaps from and to, so index creation
	// inverts to index drop without a separate hook.
	DirectiveSQL func(table, directive string, from, to any) []string
	// Templates are the statement builders.
	Templates Templates
}

// ColumnOf maps a field definition to a rendering-ready column.
func (d *Dialect) ColumnOf(name string, def *field.Definition) Column {
	return Column{
		Name:     name,
		Type:     d.TypeMap(def),
		Nullable: def.IsOptional,
		Unique:   def.IsUnique,
		Default:  def.Default,
	}
}

// ByName returns the built-in descriptor for the given dialect name.
func ByName(name string) (*Dialect, error) {
	switch name {
	case Postgres:
		return PostgresDialect(), nil
	case MySQL:
		return MySQLDialect(), nil
	case SQLite:
		return SQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("icetype/dialect: unsupported dialect %q", name)
	}
}

// columnDDL renders "name type [NOT NULL] [UNIQUE] [DEFAULT expr]"
// shared by the built-in dialects.
func columnDDL(quote func(string) string, col Column) string {
	var sb strings.Builder
	sb.WriteString(quote(col.Name))
	sb.WriteString(" ")
	sb.WriteString(col.Type)
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Unique {
		sb.WriteString(" UNIQUE")
	}
	if col.Default != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(col.Default)
	}
	return sb.String()
}

// quoteAll quotes a list of identifiers.
func quoteAll(quote func(string) string, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return quoted
}

// stdTemplates builds the ANSI-flavored templates shared by the
// built-in dialects; dialect files override the hooks that differ.
func stdTemplates(quote func(string) string) Templates {
	return Templates{
		CreateTable: func(table string, cols []Column) string {
			defs := make([]string, len(cols))
			for i, c := range cols {
				defs[i] = columnDDL(quote, c)
			}
			return fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))
		},
		CreateTableAs: func(table, from string, cols []string) string {
			return fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s",
				quote(table), strings.Join(quoteAll(quote, cols), ", "), quote(from))
		},
		DropTable: func(table string) string {
			return fmt.Sprintf("DROP TABLE %s", quote(table))
		},
		AddColumn: func(table string, col Column) string {
			return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(table), columnDDL(quote, col))
		},
		DropColumn: func(table, column string) string {
			return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(table), quote(column))
		},
		RenameColumn: func(table, from, to string) string {
			return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quote(table), quote(from), quote(to))
		},
		InsertSelect: func(table string, cols []string, from string, exprs []string) string {
			return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
				quote(table), strings.Join(quoteAll(quote, cols), ", "), strings.Join(exprs, ", "), quote(from))
		},
		CreateIndex: func(table, column string, unique bool) string {
			kind := "INDEX"
			if unique {
				kind = "UNIQUE INDEX"
			}
			return fmt.Sprintf("CREATE %s %s ON %s (%s)",
				kind, quote(indexName(table, column)), quote(table), quote(column))
		},
		DropIndex: func(table, column string) string {
			return fmt.Sprintf("DROP INDEX %s", quote(indexName(table, column)))
		},
		Cast: func(expr, typ string) string {
			return fmt.Sprintf("CAST(%s AS %s)", expr, typ)
		},
	}
}

// indexName derives the conventional single-column index name.
func indexName(table, column string) string {
	return table + "_" + column + "_idx"
}

// doubleQuote quotes with ANSI double quotes, escaping embedded ones.
func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// indexDirectiveSQL interprets the "$index" directive shared by the
// built-in dialects: a list of field names, each getting a
// single-column index. Columns present only in "to" gain an index,
// columns present only in "from" lose theirs; swapping the arguments
// therefore yields the exact inverse statements. Other directives have
// no portable DDL meaning.
func indexDirectiveSQL(tmpl Templates) func(table, directive string, from, to any) []string {
	return func(table, directive string, from, to any) []string {
		if directive != "$index" {
			return nil
		}
		fromCols, toCols := indexColumns(from), indexColumns(to)
		var stmts []string
		for _, col := range toCols {
			if !slices.Contains(fromCols, col) {
				stmts = append(stmts, tmpl.CreateIndex(table, col, false))
			}
		}
		// Drops run in reverse declaration order so that the swapped
		// call produces the exact statement-by-statement inverse.
		for i := len(fromCols) - 1; i >= 0; i-- {
			if !slices.Contains(toCols, fromCols[i]) {
				stmts = append(stmts, tmpl.DropIndex(table, fromCols[i]))
			}
		}
		return stmts
	}
}

// indexColumns extracts the column names of an "$index" value.
func indexColumns(value any) []string {
	names, ok := value.([]any)
	if !ok {
		return nil
	}
	var cols []string
	for _, n := range names {
		if col, ok := n.(string); ok {
			cols = append(cols, col)
		}
	}
	return cols
}
