package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icetype/icetype/compiler/parser"
	"github.com/icetype/icetype/dialect"
	"github.com/icetype/icetype/diff"
	"github.com/icetype/icetype/schema/field"
)

func mustParse(t *testing.T, text string) *field.Definition {
	t.Helper()
	def, err := parser.ParseField(text)
	require.NoError(t, err)
	return def
}

func TestByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite} {
		d, err := dialect.ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name)
	}
	_, err := dialect.ByName("oracle")
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestTypeMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def      string
		postgres string
		mysql    string
		sqlite   string
	}{
		{"string", "text", "varchar(255)", "text"},
		{"uuid!", "uuid", "char(36)", "text"},
		{"int", "integer", "int", "integer"},
		{"bool", "boolean", "tinyint(1)", "integer"},
		{"decimal(10,2)", "numeric(10,2)", "decimal(10,2)", "numeric(10,2)"},
		{"varchar(64)", "varchar(64)", "varchar(64)", "text"},
		{"string[]", "text[]", "json", "text"},
		{"timestamp", "timestamptz", "datetime(6)", "text"},
	}
	pg, my, lite := dialect.PostgresDialect(), dialect.MySQLDialect(), dialect.SQLiteDialect()
	for _, tt := range tests {
		def := mustParse(t, tt.def)
		assert.Equal(t, tt.postgres, pg.TypeMap(def), "postgres %s", tt.def)
		assert.Equal(t, tt.mysql, my.TypeMap(def), "mysql %s", tt.def)
		assert.Equal(t, tt.sqlite, lite.TypeMap(def), "sqlite %s", tt.def)
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"users"`, dialect.PostgresDialect().Quote("users"))
	assert.Equal(t, "`users`", dialect.MySQLDialect().Quote("users"))
	assert.Equal(t, `"users"`, dialect.SQLiteDialect().Quote("users"))
}

func TestIsSimpleClassification(t *testing.T) {
	t.Parallel()

	add := diff.AddField{Field: "age", Def: mustParse(t, "int?")}
	remove := diff.RemoveField{Field: "age", Def: mustParse(t, "int?")}
	rename := diff.RenameField{From: "a", To: "b"}
	retype := diff.ChangeType{Field: "a", From: mustParse(t, "int"), To: mustParse(t, "string")}
	remod := diff.ChangeModifier{Field: "a", From: mustParse(t, "int?"), To: mustParse(t, "int!")}

	pg := dialect.PostgresDialect()
	for _, c := range []diff.Change{add, remove, rename, retype, remod} {
		assert.True(t, pg.IsSimple(c), "postgres: %s", c)
	}

	// The same remove_field is simple under postgres and
	// recreation-required under sqlite.
	lite := dialect.SQLiteDialect()
	assert.True(t, lite.IsSimple(add))
	assert.True(t, lite.IsSimple(rename))
	assert.False(t, lite.IsSimple(remove))
	assert.False(t, lite.IsSimple(retype))
	assert.False(t, lite.IsSimple(remod))
}

func TestTemplates(t *testing.T) {
	t.Parallel()

	pg := dialect.PostgresDialect()
	col := pg.ColumnOf("age", mustParse(t, "int?"))
	assert.Equal(t, `ALTER TABLE "users" ADD COLUMN "age" integer`, pg.Templates.AddColumn("users", col))

	col = pg.ColumnOf("id", mustParse(t, "uuid!# = uuid()"))
	assert.Equal(t, `ALTER TABLE "users" ADD COLUMN "id" uuid NOT NULL UNIQUE DEFAULT uuid()`,
		pg.Templates.AddColumn("users", col))

	assert.Equal(t, `ALTER TABLE "users" RENAME COLUMN "name" TO "full_name"`,
		pg.Templates.RenameColumn("users", "name", "full_name"))
	assert.Equal(t, `ALTER TABLE "users" DROP COLUMN "age"`, pg.Templates.DropColumn("users", "age"))
	assert.Equal(t, `DROP TABLE "users"`, pg.Templates.DropTable("users"))
	assert.Equal(t, `CREATE TABLE "tmp" AS SELECT "id", "email" FROM "users"`,
		pg.Templates.CreateTableAs("tmp", "users", []string{"id", "email"}))
	assert.Equal(t, `INSERT INTO "users" ("id") SELECT "id"::uuid FROM "tmp"`,
		pg.Templates.InsertSelect("users", []string{"id"}, "tmp", []string{pg.Templates.Cast(`"id"`, "uuid")}))
	assert.Equal(t, `CREATE UNIQUE INDEX "users_email_idx" ON "users" ("email")`,
		pg.Templates.CreateIndex("users", "email", true))

	my := dialect.MySQLDialect()
	assert.Equal(t, "ALTER TABLE `users` MODIFY COLUMN `age` bigint NOT NULL",
		my.Templates.ModifyColumn("users", my.ColumnOf("age", mustParse(t, "bigint!"))))
	assert.Equal(t, "DROP INDEX `users_email_idx` ON `users`",
		my.Templates.DropIndex("users", "email"))
}

func TestDirectiveSQL(t *testing.T) {
	t.Parallel()

	pg := dialect.PostgresDialect()

	// New indexed columns produce index creation.
	stmts := pg.DirectiveSQL("users", "$index", nil, []any{"email", "name"})
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE INDEX")

	// Swapping from/to yields the inverse drops.
	stmts = pg.DirectiveSQL("users", "$index", []any{"email", "name"}, nil)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "DROP INDEX")

	// Partial overlap only touches the difference.
	stmts = pg.DirectiveSQL("users", "$index", []any{"email"}, []any{"email", "name"})
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `"users_name_idx"`)

	// Unknown directives have no DDL meaning.
	assert.Nil(t, pg.DirectiveSQL("users", "$partitionBy", nil, []any{"day"}))
}
