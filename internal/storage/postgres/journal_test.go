package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

func newMock(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestMigrate(t *testing.T) {
	j, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS diamond_state").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	j, mock := newMock(t)
	mock.ExpectQuery("SELECT key, value FROM diamond_state").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow([]byte("a"), []byte("1")).
			AddRow([]byte("b"), []byte("2")))

	got := map[string]string{}
	err := j.Load(context.Background(), func(k, v []byte) error {
		got[string(k)] = string(v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit(t *testing.T) {
	j, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO diamond_state").
		WithArgs([]byte("a"), []byte("1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM diamond_state").
		WithArgs([]byte("b")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := j.Commit(context.Background(), []state.Change{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Deleted: true},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit_RollsBackOnError(t *testing.T) {
	j, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO diamond_state").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := j.Commit(context.Background(), []state.Change{{Key: []byte("a"), Value: []byte("1")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit_Empty(t *testing.T) {
	j, mock := newMock(t)
	require.NoError(t, j.Commit(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	ctx := context.Background()
	j, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Migrate(ctx))

	require.NoError(t, j.Commit(ctx, []state.Change{{Key: []byte("it/key"), Value: []byte("v")}}))
	root := state.NewRoot()
	_, err = state.Restore(ctx, root, j)
	require.NoError(t, err)
	require.NoError(t, j.Commit(ctx, []state.Change{{Key: []byte("it/key"), Deleted: true}}))
}
