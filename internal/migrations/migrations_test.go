package migrations

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersVersion     = "20260301090000"
	materialsVersion = "20260301091500"
	notifyVersion    = "20260301093000"
)

func newTestMigrator(t *testing.T, done ...string) (*Migrator, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE SCHEMA IF NOT EXISTS metadata")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS metadata.schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version"})
	for _, v := range done {
		rows.AddRow(v)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM metadata.schema_migrations")).WillReturnRows(rows)

	m, err := NewMigrator(context.Background(), sqlx.NewDb(mockDB, "postgres"))
	require.NoError(t, err)
	return m, mock
}

func TestAddMigration_KeepsVersionsSorted(t *testing.T) {
	m := &Migrator{migrations: map[string]*migration{}}
	for _, v := range []string{"3", "1", "4", "2"} {
		m.addMigration(&migration{version: v})
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, m.versions)
}

func TestNewMigrator_LoadsState(t *testing.T) {
	m, mock := newTestMigrator(t, usersVersion)

	assert.True(t, sort.StringsAreSorted(m.versions))
	assert.Equal(t, []Status{
		{Version: usersVersion, Done: true},
		{Version: materialsVersion, Done: false},
		{Version: notifyVersion, Done: false},
	}, m.Status())
	assert.NoError(t, mock.ExpectationsWereMet())

	// The registry itself is never marked.
	assert.False(t, registry[usersVersion].done)
}

func TestUp_AppliesPending(t *testing.T) {
	m, mock := newTestMigrator(t, usersVersion)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS materials")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO metadata.schema_migrations")).
		WithArgs(materialsVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// A renamed qr_code_id must evict the old id as well.
	mock.ExpectExec(`CREATE OR REPLACE FUNCTION notify_material_change\(\).*OLD\.qr_code_id <> NEW\.qr_code_id THEN PERFORM pg_notify\('material_changes', TG_OP \|\| ':' \|\| OLD\.qr_code_id\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TRIGGER materials_notify")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO metadata.schema_migrations")).
		WithArgs(notifyVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Up(context.Background(), 0))
	assert.True(t, m.migrations[materialsVersion].done)
	assert.True(t, m.migrations[notifyVersion].done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_Step(t *testing.T) {
	m, mock := newTestMigrator(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO metadata.schema_migrations")).
		WithArgs(usersVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Up(context.Background(), 1))
	assert.True(t, m.migrations[usersVersion].done)
	assert.False(t, m.migrations[materialsVersion].done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_RollsBackOnFailure(t *testing.T) {
	m, mock := newTestMigrator(t)
	boom := errors.New("syntax error")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnError(boom)
	mock.ExpectRollback()

	err := m.Up(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.migrations[usersVersion].done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_RevertsNewestFirst(t *testing.T) {
	m, mock := newTestMigrator(t, usersVersion, materialsVersion)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS materials")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM metadata.schema_migrations")).
		WithArgs(materialsVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Down(context.Background(), 1))
	assert.True(t, m.migrations[usersVersion].done)
	assert.False(t, m.migrations[materialsVersion].done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 15, 16, 17, 0, time.UTC)

	name, err := CreateMigration(dir, "add_batches", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304151617_add_batches.go"), name)

	body, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(body), `version: "20260304151617"`)
	assert.Contains(t, string(body), "func mig_20260304151617_add_batches_up(tx *sqlx.Tx) error")
}
