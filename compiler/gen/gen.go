// Package gen renders compiled schemas as Go model files. One file is
// generated per schema: the entity struct, its table and column
// constants, and relation fields for linked entities.
package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/icetype/icetype/schema"
	"github.com/icetype/icetype/schema/field"
)

// Generator writes Go model files for a set of schemas.
type Generator struct {
	outDir  string
	pkg     string
	workers int
}

// Option configures a Generator.
type Option func(*Generator)

// WithPackage overrides the generated package name. The default is the
// base name of the output directory.
func WithPackage(name string) Option {
	return func(g *Generator) { g.pkg = name }
}

// WithWorkers caps the number of files generated concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// New returns a generator writing into outDir.
func New(outDir string, opts ...Option) *Generator {
	g := &Generator{
		outDir:  outDir,
		pkg:     filepath.Base(outDir),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate writes one model file per schema, in parallel.
func (g *Generator) Generate(ctx context.Context, schemas []*schema.Schema) error {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return fmt.Errorf("icetype/gen: create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, s := range schemas {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			name := filepath.Join(g.outDir, strings.ToLower(s.Name)+".go")
			if err := modelFile(g.pkg, s).Save(name); err != nil {
				return fmt.Errorf("icetype/gen: %s: %w", name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// modelFile builds the model file for one schema.
func modelFile(pkg string, s *schema.Schema) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by icetype. DO NOT EDIT.")

	f.Commentf("%s is the model entity for the %s schema.", s.Name, s.Name)
	f.Type().Id(s.Name).StructFunc(func(group *jen.Group) {
		for _, name := range s.FieldNames() {
			def, _ := s.Field(name)
			if def.IsRelation() {
				group.Id(exported(name)).Add(relationType(def)).Tag(structTags(name, def))
				continue
			}
			group.Id(exported(name)).Add(goType(def)).Tag(structTags(name, def))
		}
	})

	f.Commentf("%sTable is the table the %s entity is stored in.", s.Name, s.Name)
	f.Const().Id(s.Name + "Table").Op("=").Lit(s.Table())

	var cols []jen.Code
	for _, name := range s.FieldNames() {
		def, _ := s.Field(name)
		if def.IsRelation() && def.Relation.Kind != field.RelationToOne {
			// Only to-one relations materialize as a column.
			continue
		}
		cols = append(cols, jen.Lit(name))
	}
	f.Commentf("%sColumns lists the columns of the %s table in declaration order.", s.Name, s.Name)
	f.Var().Id(s.Name + "Columns").Op("=").Index().String().Values(cols...)

	return f
}

// goType maps a field definition to its Go representation. Optional
// scalars become pointers; arrays become slices of the base type.
func goType(def *field.Definition) jen.Code {
	base := baseType(def)
	if def.IsArray {
		return jen.Index().Add(base)
	}
	if def.IsOptional {
		return jen.Op("*").Add(base)
	}
	return base
}

func baseType(def *field.Definition) jen.Code {
	switch def.Type {
	case "string", "text", "varchar", "decimal":
		// Decimals stay strings to avoid float rounding.
		return jen.String()
	case "int":
		return jen.Int()
	case "bigint":
		return jen.Int64()
	case "float":
		return jen.Float64()
	case "bool":
		return jen.Bool()
	case "timestamp", "date":
		return jen.Qual("time", "Time")
	case "uuid":
		return jen.Qual("github.com/google/uuid", "UUID")
	case "json":
		return jen.Qual("encoding/json", "RawMessage")
	case "bytes":
		return jen.Index().Byte()
	default:
		return jen.Any()
	}
}

// relationType renders a relation as a pointer or slice of the target
// entity type.
func relationType(def *field.Definition) jen.Code {
	target := def.Relation.Target
	// Back-references and to-many relations load as collections.
	if def.Relation.Kind != field.RelationToOne {
		return jen.Index().Op("*").Id(target)
	}
	return jen.Op("*").Id(target)
}

// structTags renders the json tag; optional fields are omitempty.
func structTags(name string, def *field.Definition) map[string]string {
	tag := name
	if def.IsOptional || def.IsRelation() {
		tag += ",omitempty"
	}
	return map[string]string{"json": tag}
}

// exported upper-cases the first rune of a field name.
func exported(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
