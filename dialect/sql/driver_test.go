package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithVars(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectExec("SET foo = 'bar'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("RESET foo").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := &Rows{}
	err = drv.Query(WithVar(context.Background(), "foo", "bar"), "SELECT 1", []any{}, rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close(), "rows should be closed to release the connection")
	require.NoError(t, mock.ExpectationsWereMet())

	// Both values are set in order and the variable is reset once.
	mock.ExpectExec("SET foo = 'bar'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET foo = 'baz'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("RESET foo").WillReturnResult(sqlmock.NewResult(0, 0))
	ctx := WithVar(WithVar(context.Background(), "foo", "bar"), "foo", "baz")
	err = drv.Query(ctx, "SELECT 1", nil, rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.NoError(t, mock.ExpectationsWereMet())
	v, ok := VarFromContext(ctx, "foo")
	assert.True(t, ok)
	assert.Equal(t, "baz", v)

	// Transactions are bound to one connection and are not reset.
	mock.ExpectBegin()
	mock.ExpectExec("SET foo = 'bar'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	err = tx.Query(WithVar(context.Background(), "foo", "bar"), "SELECT 1", []any{}, rows)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec("SET foo = 'qux'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "authors" DEFAULT VALUES;`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RESET foo").WillReturnResult(sqlmock.NewResult(0, 0))
	err = drv.Exec(WithVar(context.Background(), "foo", "qux"), `INSERT INTO "authors" DEFAULT VALUES;`, []any{}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithVarsEscaping(t *testing.T) {
	tests := []struct {
		name      string
		dialect   string
		value     string
		wantSet   string
		wantReset string
	}{
		{"postgres quote", dialect.Postgres, "it's", "SET v = 'it''s'", "RESET v"},
		{"mysql backslash", dialect.MySQL, `a\b`, `SET v = 'a\\b'`, "SET v = NULL"},
		{"mariadb", dialect.MariaDB, "x", "SET v = 'x'", "SET v = NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectExec(tt.wantSet).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(tt.wantReset).WillReturnResult(sqlmock.NewResult(0, 0))
			err = OpenDB(tt.dialect, db).Exec(WithVar(context.Background(), "v", tt.value), "SELECT 1", nil, nil)
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithVarsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = OpenDB(dialect.Postgres, db).Exec(WithVar(context.Background(), "x; DROP TABLE t", "1"), "SELECT 1", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session variable name")

	err = OpenDB(dialect.SQLite, db).Exec(WithIntVar(context.Background(), "v", 1), "SELECT 1", nil, nil)
	require.Error(t, err)
	assert.True(t, strata.IsDialectCapabilityError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{dialect.Postgres, dialect.Postgres},
		{dialect.MySQL, dialect.MySQL},
		{dialect.MariaDB, dialect.MariaDB},
		{dialect.SQLite, dialect.SQLite},
		{"sqlite3", dialect.SQLite},
		{"sqlserver", dialect.MSSQL},
		{dialect.Oracle, dialect.Oracle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			assert.Equal(t, tt.want, OpenDB(tt.name, db).Dialect())
		})
	}
	assert.Equal(t, "mysql", DriverName(dialect.MariaDB))
	assert.Equal(t, "sqlserver", DriverName(dialect.MSSQL))
	assert.Equal(t, "sqlite", DriverName("sqlite3"))

	_, err := Open("db2", "")
	assert.Error(t, err)
}

func TestDriverQueryExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	t.Run("query", func(t *testing.T) {
		mock.ExpectQuery(`SELECT "name" FROM "authors" WHERE "id" = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m"))
		rows := &Rows{}
		require.NoError(t, drv.Query(ctx, `SELECT "name" FROM "authors" WHERE "id" = $1;`, []any{1}, rows))
		require.True(t, rows.Next())
		var name string
		require.NoError(t, rows.Scan(&name))
		assert.Equal(t, "a8m", name)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec result", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM "authors"`).WillReturnResult(sqlmock.NewResult(0, 3))
		var res Result
		require.NoError(t, drv.Exec(ctx, `DELETE FROM "authors";`, nil, &res))
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("errors wrap", func(t *testing.T) {
		cause := errors.New("connection reset")
		mock.ExpectExec("UPDATE").WillReturnError(cause)
		err := drv.Exec(ctx, "UPDATE x;", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		mock.ExpectQuery("SELECT").WillReturnError(cause)
		err = drv.Query(ctx, "SELECT 1;", nil, &Rows{})
		assert.ErrorIs(t, err, cause)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		assert.Error(t, drv.Exec(ctx, "SELECT 1;", "x", nil))
		assert.Error(t, drv.Exec(ctx, "SELECT 1;", nil, new(int)))
		assert.Error(t, drv.Query(ctx, "SELECT 1;", nil, nil))
		assert.Error(t, drv.Query(ctx, "SELECT 1;", 1, &Rows{}))
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `authors`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "INSERT INTO `authors` (`name`) VALUES (?);", []any{"a"}, nil))
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	mock.ExpectBegin().WillReturnError(errors.New("busy"))
	_, err = drv.Tx(ctx)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db),
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("UPDATE").WillReturnError(errors.New("boom"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT 1;", nil, rows))
	require.NoError(t, rows.Close())
	require.Error(t, drv.Exec(ctx, "UPDATE x;", nil, nil))
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM x;", nil, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.Stats().Snapshot()
	assert.Equal(t, int64(1), s.Queries)
	assert.Equal(t, int64(2), s.Execs)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3), s.Slow)
	assert.Equal(t, []string{"SELECT 1;", "UPDATE x;", "DELETE FROM x;"}, slow)
	assert.Contains(t, s.String(), "queries=1 execs=2")

	drv.SetSlowThreshold(time.Hour)
	assert.Equal(t, time.Hour, drv.SlowThreshold())
	drv.Stats().Reset()
	assert.Equal(t, StatsSnapshot{}, drv.Stats().Snapshot())
	assert.Zero(t, StatsSnapshot{}.Avg())
}

func TestSlowQueryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db), WithSlowThreshold(-1), WithSlowQueryLog(logger))
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(context.Background(), "SELECT 1;", []any{1, 2}, nil))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="slow statement"`)
	assert.Contains(t, buf.String(), "args=2")
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.Postgres, db), DebugWithLogger(logger), DebugWithLevel(slog.LevelDebug))
	ctx := context.Background()

	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"2"}).AddRow(2))
	mock.ExpectRollback()

	require.NoError(t, drv.Exec(ctx, "SELECT 1;", nil, nil))
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	rows := &Rows{}
	require.NoError(t, tx.Query(ctx, "SELECT 2;", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, `level=DEBUG msg=exec sql="SELECT 1;"`)
	assert.Contains(t, out, "msg=begin")
	assert.Contains(t, out, `msg=query sql="SELECT 2;" args=[] tx=true`)
	assert.Contains(t, out, "msg=rollback")
}
