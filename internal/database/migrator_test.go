package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/migrations"
)

func testMigrator(t *testing.T) (*Migrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMigrator(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.up.sql":   {Data: []byte("B")},
		"sql/0001_a.up.sql":   {Data: []byte("A")},
		"sql/0001_a.down.sql": {Data: []byte("X")},
		"sql/README.md":       {Data: []byte("")},
	}

	names, err := ListMigrations(fsys, "sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := ListMigrations(migrations.FS, ".")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.up.sql", names[0])
}

func TestApplySkipsRecordedVersions(t *testing.T) {
	m, mock := testMigrator(t)
	fsys := fstest.MapFS{
		"0001_a.up.sql": {Data: []byte("CREATE TABLE a (id INT)")},
		"0002_b.up.sql": {Data: []byte("CREATE TABLE b (id INT)")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("0002_b.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Apply(context.Background(), fsys, "."))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	m, mock := testMigrator(t)
	fsys := fstest.MapFS{"0001_a.up.sql": {Data: []byte("BROKEN")}}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("BROKEN").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := m.Apply(context.Background(), fsys, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_a.up.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}
