package load_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icetype/icetype/compiler/load"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "icetype.yaml", `
schemas:
  - schemas/user.yaml
  - schemas/post.yaml
dialect: sqlite
migrations: db/migrations
gen:
  dir: internal/model
  package: model
`)
	cfg, err := load.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, load.StringList{"schemas/user.yaml", "schemas/post.yaml"}, cfg.Schemas)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
	assert.Equal(t, "internal/model", cfg.Gen.Dir)
	assert.Equal(t, "model", cfg.Gen.Package)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "icetype.yaml", "{}\n")
	cfg, err := load.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, load.StringList{"schemas"}, cfg.Schemas)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
}

func TestLoadConfigScalarSchemas(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "icetype.yaml", "schemas: schemas/user.yaml\n")
	cfg, err := load.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, load.StringList{"schemas/user.yaml"}, cfg.Schemas)
}

func TestLoadFilePreservesOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", `
$type: User
$version: 1.2.0
id: uuid!#
email: string!#
name: string
age: int?
$index:
  - email
`)
	schemas, err := load.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	s := schemas[0]
	assert.Equal(t, "User", s.Name)
	assert.Equal(t, "1.2.0", s.Version.String())
	// YAML mapping order survives into the schema.
	assert.Equal(t, []string{"id", "email", "name", "age"}, s.FieldNames())

	idx, ok := s.Directive("$index")
	require.True(t, ok)
	assert.Equal(t, []any{"email"}, idx)
}

func TestLoadFileMultiDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "all.yaml", `
$type: User
id: uuid!#
---
$type: Post
id: uuid!#
author: -> User.posts
`)
	schemas, err := load.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "User", schemas[0].Name)
	assert.Equal(t, "Post", schemas[1].Name)

	def, ok := schemas[1].Field("author")
	require.True(t, ok)
	assert.True(t, def.IsRelation())
}

func TestLoadDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b_post.yaml", "$type: Post\nid: uuid!#\n")
	writeFile(t, dir, "a_user.yml", "$type: User\nid: uuid!#\n")
	writeFile(t, dir, "notes.txt", "not a schema")

	schemas, err := load.Load([]string{dir})
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	// File name order, non-YAML files ignored.
	assert.Equal(t, "User", schemas[0].Name)
	assert.Equal(t, "Post", schemas[1].Name)
}

func TestLoadDuplicateSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$type: User\nid: uuid!#\n")
	writeFile(t, dir, "b.yaml", "$type: User\nid: uuid!#\n")

	_, err := load.Load([]string{dir})
	require.ErrorContains(t, err, `schema "User" defined in both`)
}

func TestLoadFileBadField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", "$type: User\nid: uuid!!\n")
	_, err := load.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "id"`)
}

func TestLoadFileNotMapping(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", "- a\n- b\n")
	_, err := load.LoadFile(path)
	require.ErrorContains(t, err, "must be a mapping")
}
