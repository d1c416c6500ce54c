package migrate_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icetype/icetype/dialect"
	"github.com/icetype/icetype/migrate"
)

func TestApply(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{
		ID:   "a3f0",
		Name: "add_user_age",
		Up: []string{
			`-- warning: something advisory`,
			`ALTER TABLE "users" ADD COLUMN "age" integer`,
		},
		Down:       []string{`ALTER TABLE "users" DROP COLUMN "age"`},
		Reversible: true,
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS icetype_revisions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM icetype_revisions").
		WithArgs("a3f0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	// The comment line is skipped, only the statement executes.
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ADD COLUMN "age" integer`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO icetype_revisions").
		WithArgs("a3f0", "add_user_age", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, migrate.NewApplier(db, dialect.SQLiteDialect()).Apply(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAlreadyApplied(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{ID: "a3f0", Name: "add_user_age", Up: []string{`ALTER TABLE "users" ADD COLUMN "age" integer`}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS icetype_revisions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM icetype_revisions").
		WithArgs("a3f0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, migrate.NewApplier(db, dialect.SQLiteDialect()).Apply(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyFailureRollsBack(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{ID: "a3f0", Name: "add_user_age", Up: []string{`ALTER TABLE "users" ADD COLUMN "age" integer`}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS icetype_revisions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM icetype_revisions").
		WithArgs("a3f0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ADD COLUMN "age" integer`)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = migrate.NewApplier(db, dialect.SQLiteDialect()).Apply(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADD COLUMN")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPostgresPlaceholders(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{
		ID:         "a3f0",
		Name:       "add_user_age",
		Up:         []string{`ALTER TABLE "users" ADD COLUMN "age" integer`},
		Down:       []string{`ALTER TABLE "users" DROP COLUMN "age"`},
		Reversible: true,
	}

	// lib/pq takes ordinal placeholders only; the bookkeeping queries
	// must carry $1-style markers instead of "?".
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS icetype_revisions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM icetype_revisions WHERE id = $1")).
		WithArgs("a3f0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ADD COLUMN "age" integer`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO icetype_revisions (id, name, applied_at) VALUES ($1, $2, $3)")).
		WithArgs("a3f0", "add_user_age", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applier := migrate.NewApplier(db, dialect.PostgresDialect())
	require.NoError(t, applier.Apply(context.Background(), m))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" DROP COLUMN "age"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM icetype_revisions WHERE id = $1")).
		WithArgs("a3f0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, applier.Rollback(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollback(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{
		ID:         "a3f0",
		Name:       "add_user_age",
		Down:       []string{`ALTER TABLE "users" DROP COLUMN "age"`},
		Reversible: true,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" DROP COLUMN "age"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM icetype_revisions").
		WithArgs("a3f0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, migrate.NewApplier(db, dialect.SQLiteDialect()).Rollback(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackIrreversible(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &migrate.Migration{ID: "a3f0", Name: "drop_user_legacy", Reversible: false}
	err = migrate.NewApplier(db, dialect.SQLiteDialect()).Rollback(context.Background(), m)
	require.ErrorContains(t, err, "not reversible")
}

func TestApplied(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, applied_at FROM icetype_revisions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "applied_at"}).
			AddRow("a3f0", "add_user_age", now).
			AddRow("b4c1", "drop_user_legacy", now.Add(time.Minute)))

	revs, err := migrate.NewApplier(db, dialect.MySQLDialect()).Applied(context.Background())
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "add_user_age", revs[0].Name)
	assert.Equal(t, "b4c1", revs[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
