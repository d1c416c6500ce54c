// Package icetype ties the compiler, diff engine and migration
// framework together: it compiles schema documents, diffs them against
// stored snapshots and plans one migration per changed schema.
package icetype

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/icetype/icetype/compiler/parser"
	"github.com/icetype/icetype/dialect"
	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/migrate"
	"github.com/icetype/icetype/schema"
)

// Compile parses one ordered definition document into a schema.
func Compile(doc *parser.Document) (*schema.Schema, error) {
	return parser.ParseSchema(doc)
}

// Planned is the planning result for one schema.
type Planned struct {
	// Schema is the current (new) schema.
	Schema *schema.Schema
	// Diff is the structural diff against the stored snapshot. Nil for
	// an initial plan, where no snapshot existed.
	Diff *diff.SchemaDiff
	// Migration moves the database to the current schema. Nil when the
	// schema is unchanged.
	Migration *migrate.Migration
	// Initial is true when the plan creates the table from scratch.
	Initial bool
}

// PlanOption configures planning.
type PlanOption func(*planOptions)

type planOptions struct {
	allowBreaking bool
}

// AllowBreaking permits plans containing breaking changes. Without it,
// a breaking diff fails planning with a BreakingChangeError.
func AllowBreaking() PlanOption {
	return func(o *planOptions) { o.allowBreaking = true }
}

// PlanMigrations diffs every schema against its stored snapshot and
// generates the migrations, one schema at a time in parallel. Schemas
// without a snapshot get an initial create-table migration; unchanged
// schemas yield a Planned with a nil Migration. The result keeps the
// input order.
func PlanMigrations(ctx context.Context, store SnapshotStore, schemas []*schema.Schema, dl *dialect.Dialect, opts ...PlanOption) ([]*Planned, error) {
	o := planOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	plans := make([]*Planned, len(schemas))
	eg, ctx := errgroup.WithContext(ctx)
	for i, s := range schemas {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			p, err := planOne(store, s, dl, o)
			if err != nil {
				return err
			}
			plans[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

func planOne(store SnapshotStore, s *schema.Schema, dl *dialect.Dialect, o planOptions) (*Planned, error) {
	old, err := store.Load(s.Name)
	if IsSnapshotNotFound(err) {
		return initialPlan(s, dl), nil
	}
	if err != nil {
		return nil, err
	}
	d := diff.Schemas(old, s)
	if d.Empty() {
		return &Planned{Schema: s, Diff: d}, nil
	}
	if d.IsBreaking && !o.allowBreaking {
		var changes []string
		for _, c := range d.Changes {
			changes = append(changes, c.String())
		}
		return nil, NewBreakingChangeError(s.Name, changes)
	}
	m, err := migrate.Generate(d, dl)
	if err != nil {
		return nil, err
	}
	return &Planned{Schema: s, Diff: d, Migration: m}, nil
}

// initialPlan builds the create-table migration for a schema seen for
// the first time. Dropping the freshly created table is its exact
// inverse, so the migration is reversible.
func initialPlan(s *schema.Schema, dl *dialect.Dialect) *Planned {
	table := s.Table()
	var cols []dialect.Column
	for _, name := range s.FieldNames() {
		def, _ := s.Field(name)
		cols = append(cols, dl.ColumnOf(name, def))
	}
	return &Planned{
		Schema:  s,
		Initial: true,
		Migration: &migrate.Migration{
			ID:         uuid.NewString(),
			Name:       "create_" + table,
			ToVersion:  s.Version,
			Up:         []string{dl.Templates.CreateTable(table, cols)},
			Down:       []string{dl.Templates.DropTable(table)},
			Reversible: true,
		},
	}
}

// SaveAll stores the snapshots of every schema, typically after the
// planned migrations have been applied.
func SaveAll(store SnapshotStore, schemas []*schema.Schema) error {
	for _, s := range schemas {
		if err := store.Save(s); err != nil {
			return err
		}
	}
	return nil
}
