package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icetype/icetype/compiler/parser"
	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema"
)

// compile builds a schema from ordered (key, value) pairs.
func compile(t *testing.T, name string, pairs ...[2]any) *schema.Schema {
	t.Helper()
	doc := parser.NewDocument().Set("$type", name)
	for _, p := range pairs {
		doc.Set(p[0].(string), p[1])
	}
	s, err := parser.ParseSchema(doc)
	require.NoError(t, err)
	return s
}

func pair(k string, v any) [2]any { return [2]any{k, v} }

func TestDiffIdenticalSchemas(t *testing.T) {
	t.Parallel()

	s := compile(t, "User",
		pair("id", "uuid!# = uuid()"),
		pair("email", "string#"),
		pair("name", "string"),
	)
	d := diff.Schemas(s, s)
	assert.True(t, d.Empty())
	assert.False(t, d.IsBreaking)
	assert.Empty(t, d.Diagnostics)
}

func TestDiffAddOptionalField(t *testing.T) {
	t.Parallel()

	old := compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
		pair("name", "string"),
	)
	new := compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
		pair("name", "string"),
		pair("age", "int?"),
	)
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 1)
	add, ok := d.Changes[0].(diff.AddField)
	require.True(t, ok)
	assert.Equal(t, "age", add.Field)
	assert.Equal(t, "int", add.Def.Type)
	assert.False(t, d.IsBreaking, "adding an optional field is not breaking")
}

func TestDiffRenamePrecision(t *testing.T) {
	t.Parallel()

	old := compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
		pair("name", "string"),
	)

	// Same type: exactly one rename, no add/remove.
	new := compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
		pair("fullName", "string"),
	)
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 1)
	ren, ok := d.Changes[0].(diff.RenameField)
	require.True(t, ok)
	assert.Equal(t, "name", ren.From)
	assert.Equal(t, "fullName", ren.To)
	assert.False(t, d.IsBreaking)

	// Different type: remove + add, no rename inferred.
	new = compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
		pair("fullName", "int"),
	)
	d = diff.Schemas(old, new)
	require.Len(t, d.Changes, 2)
	add, ok := d.Changes[0].(diff.AddField)
	require.True(t, ok)
	assert.Equal(t, "fullName", add.Field)
	rem, ok := d.Changes[1].(diff.RemoveField)
	require.True(t, ok)
	assert.Equal(t, "name", rem.Field)
	assert.True(t, d.IsBreaking)
}

func TestDiffRenameIgnoresArrayMismatch(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("tags", "string[]"))
	new := compile(t, "User", pair("labels", "string"))
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 2)
	_, isAdd := d.Changes[0].(diff.AddField)
	_, isRemove := d.Changes[1].(diff.RemoveField)
	assert.True(t, isAdd)
	assert.True(t, isRemove)
}

func TestDiffRenameTieBreakByDeclarationOrder(t *testing.T) {
	t.Parallel()

	old := compile(t, "User",
		pair("a", "string"),
		pair("b", "string"),
	)
	new := compile(t, "User",
		pair("x", "string"),
		pair("y", "string"),
	)
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 2)
	first, ok := d.Changes[0].(diff.RenameField)
	require.True(t, ok)
	second, ok := d.Changes[1].(diff.RenameField)
	require.True(t, ok)
	// First unused old field pairs with first unused new field.
	assert.Equal(t, diff.RenameField{From: "a", To: "x"}, first)
	assert.Equal(t, diff.RenameField{From: "b", To: "y"}, second)
}

func TestDiffTypeAndModifierIndependent(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("age", "string?"))
	new := compile(t, "User", pair("age", "int!"))
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 2)
	ct, ok := d.Changes[0].(diff.ChangeType)
	require.True(t, ok)
	assert.Equal(t, "string", ct.From.Type)
	assert.Equal(t, "int", ct.To.Type)
	cm, ok := d.Changes[1].(diff.ChangeModifier)
	require.True(t, ok)
	assert.True(t, cm.From.IsOptional)
	assert.False(t, cm.To.IsOptional)
	assert.True(t, d.IsBreaking, "optional to required is breaking")
}

func TestDiffModifierUniqueOnly(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("email", "string"))
	new := compile(t, "User", pair("email", "string#"))
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 1)
	cm, ok := d.Changes[0].(diff.ChangeModifier)
	require.True(t, ok)
	assert.False(t, cm.From.IsUnique)
	assert.True(t, cm.To.IsUnique)
	assert.False(t, d.IsBreaking, "adding uniqueness is not classified as breaking")
}

func TestDiffSizeParameterIsTypeChange(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("code", "varchar(64)"))
	new := compile(t, "User", pair("code", "varchar(32)"))
	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 1)
	_, ok := d.Changes[0].(diff.ChangeType)
	assert.True(t, ok)
}

func TestDiffAddRemoveSymmetry(t *testing.T) {
	t.Parallel()

	a := compile(t, "User",
		pair("id", "uuid!"),
		pair("email", "string#"),
	)
	b := compile(t, "User",
		pair("id", "uuid!"),
		pair("age", "int?"),
	)
	// "email" and "age" differ in type, so no rename pairs them.
	fwd := diff.Schemas(a, b)
	rev := diff.Schemas(b, a)

	touched := func(d *diff.SchemaDiff) (added, removed []string) {
		for _, c := range d.Changes {
			switch c := c.(type) {
			case diff.AddField:
				added = append(added, c.Field)
			case diff.RemoveField:
				removed = append(removed, c.Field)
			}
		}
		return
	}
	fwdAdd, fwdRem := touched(fwd)
	revAdd, revRem := touched(rev)
	assert.ElementsMatch(t, fwdAdd, revRem)
	assert.ElementsMatch(t, fwdRem, revAdd)
}

func TestDiffDirectives(t *testing.T) {
	t.Parallel()

	old := compile(t, "Event", pair("id", "uuid!"))
	old.SetDirective("$partitionBy", []any{"day"})
	old.SetDirective("$legacy", true)

	new := compile(t, "Event", pair("id", "uuid!"))
	new.SetDirective("$partitionBy", []any{"month"})
	new.SetDirective("$fullText", map[string]any{"fields": []any{"title"}})

	d := diff.Schemas(old, new)
	require.Len(t, d.Changes, 3)

	changed, ok := d.Changes[0].(diff.ChangeDirective)
	require.True(t, ok)
	assert.Equal(t, "$partitionBy", changed.Directive)
	assert.Equal(t, []any{"day"}, changed.From)
	assert.Equal(t, []any{"month"}, changed.To)

	added, ok := d.Changes[1].(diff.ChangeDirective)
	require.True(t, ok)
	assert.Equal(t, "$fullText", added.Directive)
	assert.Nil(t, added.From)

	removed, ok := d.Changes[2].(diff.ChangeDirective)
	require.True(t, ok)
	assert.Equal(t, "$legacy", removed.Directive)
	assert.Nil(t, removed.To)

	assert.False(t, d.IsBreaking, "directive changes alone are not breaking")
}

func TestDiffEqualDirectivesSilent(t *testing.T) {
	t.Parallel()

	old := compile(t, "Event", pair("id", "uuid!"))
	old.SetDirective("$partitionBy", []any{"day"})
	new := compile(t, "Event", pair("id", "uuid!"))
	new.SetDirective("$partitionBy", []any{"day"})
	assert.True(t, diff.Schemas(old, new).Empty())
}

func TestDiffNameDisagreement(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("id", "uuid!"))
	new := compile(t, "Account", pair("id", "uuid!"))
	d := diff.Schemas(old, new)
	require.Len(t, d.Diagnostics, 1)
	assert.Contains(t, d.Diagnostics[0], "schema names disagree")
	// The diff itself still proceeds.
	assert.True(t, d.Empty())
	assert.Equal(t, "Account", d.SchemaName)
}

func TestDiffVersions(t *testing.T) {
	t.Parallel()

	old := compile(t, "User", pair("id", "uuid!"))
	old.Version = schema.Version{Major: 1}
	new := compile(t, "User", pair("id", "uuid!"), pair("age", "int?"))
	new.Version = schema.Version{Major: 1, Minor: 1}
	d := diff.Schemas(old, new)
	assert.Equal(t, schema.Version{Major: 1}, d.FromVersion)
	assert.Equal(t, schema.Version{Major: 1, Minor: 1}, d.ToVersion)
	assert.Same(t, old, d.Old())
	assert.Same(t, new, d.New())
}
