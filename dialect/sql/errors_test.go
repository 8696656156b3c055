package sql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		check      bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("connection refused")},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, foreignKey: true},
		{name: "pq check", err: &pq.Error{Code: "23514"}, check: true},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, unique: true},
		{name: "mysql parent row", err: &mysql.MySQLError{Number: 1451}, foreignKey: true},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, foreignKey: true},
		{name: "mysql check", err: &mysql.MySQLError{Number: 3819}, check: true},
		{name: "mssql unique key", err: mssql.Error{Number: 2627, Message: "Violation of UNIQUE KEY constraint"}, unique: true},
		{name: "mssql unique index", err: mssql.Error{Number: 2601}, unique: true},
		{
			name:       "mssql foreign key",
			err:        mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the FOREIGN KEY constraint"},
			foreignKey: true,
		},
		{name: "mssql check", err: mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the CHECK constraint"}, check: true},
		{name: "oracle unique", err: errors.New("ORA-00001: unique constraint (APP.AUTHORS_EMAIL_KEY) violated"), unique: true},
		{name: "oracle parent key", err: errors.New("ORA-02291: integrity constraint violated - parent key not found"), foreignKey: true},
		{name: "wrapped", err: fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"}), unique: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.check, IsConstraintError(tt.err))
		})
	}
	assert.True(t, IsConstraintError(strata.NewConstraintError("dup", nil)))
}

func TestConstraintErrorsSQLite(t *testing.T) {
	drv, err := Open(dialect.SQLite, "file:constraints?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	defer drv.Close()
	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE "publishers" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" VARCHAR(255) NOT NULL UNIQUE);`,
		`CREATE TABLE "authors" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "pages" INTEGER CHECK ("pages" > 0), ` +
			`"publisher_id" INTEGER, FOREIGN KEY ("publisher_id") REFERENCES "publishers" ("id"));`,
		`INSERT INTO "publishers" ("name") VALUES ('p');`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, nil, nil))
	}

	err = drv.Exec(ctx, `INSERT INTO "publishers" ("name") VALUES ('p');`, nil, nil)
	require.Error(t, err)
	assert.True(t, IsUniqueConstraintError(err), "unexpected error: %v", err)

	err = drv.Exec(ctx, `INSERT INTO "authors" ("publisher_id") VALUES (42);`, nil, nil)
	require.Error(t, err)
	assert.True(t, IsForeignKeyConstraintError(err), "unexpected error: %v", err)

	err = drv.Exec(ctx, `INSERT INTO "authors" ("pages") VALUES (-1);`, nil, nil)
	require.Error(t, err)
	assert.True(t, IsCheckConstraintError(err), "unexpected error: %v", err)
	assert.False(t, IsUniqueConstraintError(err))
}
