// Package migrate turns a schema diff into ordered, dialect-correct
// forward and backward statement lists, validates that the backward
// list structurally inverts the forward one, and reports operations
// that cannot be rolled back.
package migrate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/icetype/icetype/dialect"
	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema"
	"github.com/icetype/icetype/schema/field"
)

// scratchSuffix names the temporary copy used by recreation blocks.
const scratchSuffix = "_scratch"

// commentPrefix marks advisory lines inside Up/Down. Comment lines are
// never executed.
const commentPrefix = "-- "

// Migration is an ordered, reversible-when-possible set of statements
// that moves a database from one schema version to the next. Up and
// Down are complete statements ready to persist or execute; they are
// not positionally parallel once recreation batching merges several
// changes into one block.
type Migration struct {
	// ID is a unique migration identifier.
	ID string
	// Name is a short, file-name-safe description.
	Name string
	// FromVersion and ToVersion are the schema versions the migration
	// moves between.
	FromVersion schema.Version
	ToVersion   schema.Version
	// Up and Down are the forward and backward statement lists. Lines
	// starting with "-- " are advisory comments, including the
	// placeholders left for irreversible operations.
	Up   []string
	Down []string
	// Reversible is false when any change has no unambiguous inverse.
	Reversible bool
	// Warnings are advisory texts, not statements.
	Warnings []string

	// Retained so that irreversible-operation reports can suggest
	// corrective statements. Nil for hand-built migrations.
	source *diff.SchemaDiff
	dl     *dialect.Dialect
}

// Option configures migration generation.
type Option func(*options)

type options struct {
	name string
}

// WithName overrides the generated migration name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Generate builds a migration for the diff under the given dialect
// descriptor. Generation never fails on unrepresentable inverses: the
// forward list is always complete, and a missing inverse degrades to a
// placeholder comment plus a warning with Reversible set to false.
//
// Changes the dialect classifies as simple become one direct statement
// each, in diff order. Recreation-required changes for the table are
// coalesced into a single five-step recreation block appended after
// the simple statements; at most one block is ever emitted per table.
func Generate(d *diff.SchemaDiff, dl *dialect.Dialect, opts ...Option) (*Migration, error) {
	if d.New() == nil || d.Old() == nil {
		return nil, fmt.Errorf("icetype/migrate: diff carries no schemas")
	}
	o := options{name: defaultName(d)}
	for _, opt := range opts {
		opt(&o)
	}
	table := d.New().Table()

	up := newGenerator(dl, table, d.Old(), d.New())
	for _, c := range d.Changes {
		up.apply(c)
	}
	up.flush()

	down := newGenerator(dl, table, d.New(), d.Old())
	reversible := true
	for i := len(d.Changes) - 1; i >= 0; i-- {
		inv, reason := invert(d.Changes[i])
		if inv == nil {
			down.placeholder(reason)
			reversible = false
			continue
		}
		down.apply(inv)
	}
	down.flush()

	m := &Migration{
		ID:          uuid.NewString(),
		Name:        o.name,
		FromVersion: d.FromVersion,
		ToVersion:   d.ToVersion,
		Up:          up.stmts,
		Down:        down.stmts,
		Reversible:  reversible,
		Warnings:    up.warnings,
		source:      d,
		dl:          dl,
	}
	for _, w := range down.warnings {
		m.Warnings = append(m.Warnings, "down: "+w)
	}
	return m, nil
}

// invert returns the structural inverse of a change, or nil with a
// reason when no unambiguous inverse exists. A removed column's data
// is unrecoverable, so remove_field never inverts even though its old
// definition is known.
func invert(c diff.Change) (diff.Change, string) {
	switch c := c.(type) {
	case diff.AddField:
		return diff.RemoveField{Field: c.Field, Def: c.Def}, ""
	case diff.RemoveField:
		return nil, fmt.Sprintf("cannot restore dropped column %q: data is not recoverable", c.Field)
	case diff.RenameField:
		return diff.RenameField{From: c.To, To: c.From}, ""
	case diff.ChangeType:
		return diff.ChangeType{Field: c.Field, From: c.To, To: c.From}, ""
	case diff.ChangeModifier:
		return diff.ChangeModifier{Field: c.Field, From: c.To, To: c.From}, ""
	case diff.ChangeDirective:
		return diff.ChangeDirective{Directive: c.Directive, From: c.To, To: c.From}, ""
	default:
		return nil, fmt.Sprintf("no inverse for %s", c)
	}
}

// defaultName derives a file-name-safe migration name from the diff.
func defaultName(d *diff.SchemaDiff) string {
	name := "alter_" + d.New().Table()
	if d.Empty() {
		name = "noop_" + d.New().Table()
	}
	return strings.ToLower(name)
}

// column tracks the live state of one column while statements are
// generated.
type column struct {
	name string
	def  *field.Definition
}

// generator accumulates statements for one direction. It tracks the
// table's column state so that a recreation block emitted after the
// simple statements copies exactly the columns that exist at that
// point.
type generator struct {
	dl       *dialect.Dialect
	table    string
	target   *schema.Schema
	current  []column
	stmts    []string
	pending  []diff.Change
	warnings []string
}

func newGenerator(dl *dialect.Dialect, table string, source, target *schema.Schema) *generator {
	g := &generator{dl: dl, table: table, target: target}
	for _, name := range source.FieldNames() {
		def, _ := source.Field(name)
		g.current = append(g.current, column{name: name, def: def})
	}
	return g
}

// apply classifies one change and either emits its direct statement or
// queues it for the recreation block.
func (g *generator) apply(c diff.Change) {
	if !g.dl.IsSimple(c) {
		g.pending = append(g.pending, c)
		return
	}
	tmpl := g.dl.Templates
	switch c := c.(type) {
	case diff.AddField:
		g.stmts = append(g.stmts, tmpl.AddColumn(g.table, g.dl.ColumnOf(c.Field, c.Def)))
		g.current = append(g.current, column{name: c.Field, def: c.Def})
	case diff.RemoveField:
		g.stmts = append(g.stmts, tmpl.DropColumn(g.table, c.Field))
		g.drop(c.Field)
	case diff.RenameField:
		g.stmts = append(g.stmts, tmpl.RenameColumn(g.table, c.From, c.To))
		g.rename(c.From, c.To)
	case diff.ChangeType:
		if risky, reason := castRisk(c.From, c.To); risky {
			g.warnings = append(g.warnings, fmt.Sprintf("column %q: %s", c.Field, reason))
		}
		g.stmts = append(g.stmts, tmpl.ModifyColumn(g.table, g.dl.ColumnOf(c.Field, c.To)))
		g.set(c.Field, c.To)
	case diff.ChangeModifier:
		// Index drops precede the column alteration and index creations
		// follow it, so the inverted change emits the exact statements
		// in reverse.
		if c.From.IsUnique && !c.To.IsUnique {
			g.stmts = append(g.stmts, tmpl.DropIndex(g.table, c.Field))
		}
		if c.From.IsOptional != c.To.IsOptional {
			g.stmts = append(g.stmts, tmpl.ModifyColumn(g.table, g.dl.ColumnOf(c.Field, c.To)))
		}
		if !c.From.IsUnique && c.To.IsUnique {
			g.stmts = append(g.stmts, tmpl.CreateIndex(g.table, c.Field, true))
		}
		g.set(c.Field, c.To)
	case diff.ChangeDirective:
		stmts := g.dl.DirectiveSQL(g.table, c.Directive, c.From, c.To)
		if stmts == nil {
			g.stmts = append(g.stmts, commentPrefix+fmt.Sprintf("directive %s changed; no statement derived", c.Directive))
			return
		}
		g.stmts = append(g.stmts, stmts...)
	}
}

// placeholder records an irreversible step as a comment at its
// position in the statement order.
func (g *generator) placeholder(reason string) {
	g.stmts = append(g.stmts, commentPrefix+"irreversible: "+reason)
}

// flush emits the single recreation block covering all queued
// recreation-required changes, if any.
func (g *generator) flush() {
	if len(g.pending) == 0 {
		return
	}
	tmpl := g.dl.Templates
	scratch := g.table + scratchSuffix

	// Columns surviving into the target keep their data. The current
	// state already reflects the simple statements emitted above, so
	// retained columns are matched by name against the target schema.
	var retained []column
	for _, col := range g.current {
		if _, ok := g.target.Field(col.name); ok {
			retained = append(retained, col)
		}
	}

	// Warn about risky casts before the block, so the warning comment
	// immediately precedes it.
	var casts []string
	retainedNames := make([]string, len(retained))
	for i, col := range retained {
		retainedNames[i] = col.name
		targetDef, _ := g.target.Field(col.name)
		expr := g.dl.Quote(col.name)
		if typeDiffers(col.def, targetDef) {
			expr = tmpl.Cast(expr, g.dl.TypeMap(targetDef))
			if risky, reason := castRisk(col.def, targetDef); risky {
				warning := fmt.Sprintf("column %q: %s", col.name, reason)
				g.warnings = append(g.warnings, warning)
				g.stmts = append(g.stmts, commentPrefix+"warning: "+warning)
			}
		}
		casts = append(casts, expr)
	}

	var cols []dialect.Column
	for _, name := range g.target.FieldNames() {
		def, _ := g.target.Field(name)
		cols = append(cols, g.dl.ColumnOf(name, def))
	}

	g.stmts = append(g.stmts,
		tmpl.CreateTableAs(scratch, g.table, retainedNames),
		tmpl.DropTable(g.table),
		tmpl.CreateTable(g.table, cols),
		tmpl.InsertSelect(g.table, retainedNames, scratch, casts),
		tmpl.DropTable(scratch),
	)
	g.pending = nil
}

func (g *generator) drop(name string) {
	for i, col := range g.current {
		if col.name == name {
			g.current = append(g.current[:i], g.current[i+1:]...)
			return
		}
	}
}

func (g *generator) rename(from, to string) {
	for i, col := range g.current {
		if col.name == from {
			g.current[i].name = to
			return
		}
	}
}

func (g *generator) set(name string, def *field.Definition) {
	for i, col := range g.current {
		if col.name == name {
			g.current[i].def = def
			return
		}
	}
}

// typeDiffers reports a storage-type difference relevant to casting.
func typeDiffers(a, b *field.Definition) bool {
	return a.Type != b.Type || a.IsArray != b.IsArray ||
		a.Precision != b.Precision || a.Scale != b.Scale || a.Length != b.Length
}

// IsComment reports whether a statement line is advisory only.
func IsComment(stmt string) bool {
	return strings.HasPrefix(stmt, "--")
}
