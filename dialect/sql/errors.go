package sql

import (
	"errors"
	"strings"

	"github.com/syssam/strata"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// constraint is one kind of constraint violation with its codes per driver.
type constraint struct {
	pg      []pq.ErrorCode
	mysql   []uint16
	sqlite  []int
	mssql   []int32
	// message holds substrings of driver messages, Oracle codes included.
	message []string
}

var (
	uniqueViolation = constraint{
		pg:      []pq.ErrorCode{"23505"},
		mysql:   []uint16{1062},
		sqlite:  []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		mssql:   []int32{2601, 2627},
		message: []string{"ORA-00001", "Error 1062", "violates unique constraint", "UNIQUE constraint failed", "Violation of UNIQUE KEY constraint"},
	}
	foreignKeyViolation = constraint{
		pg:      []pq.ErrorCode{"23503"},
		mysql:   []uint16{1451, 1452},
		sqlite:  []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		message: []string{"ORA-02291", "ORA-02292", "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed", "conflicted with the FOREIGN KEY"},
	}
	checkViolation = constraint{
		pg:      []pq.ErrorCode{"23514"},
		mysql:   []uint16{3819},
		sqlite:  []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		message: []string{"ORA-02290", "Error 3819", "violates check constraint", "CHECK constraint failed", "conflicted with the CHECK"},
	}
)

// match reports whether err, or an error it wraps, is a violation of c.
// Typed driver errors are checked by code first, then the message. SQL
// Server reports foreign key and check violations with the same number,
// so those are told apart by message only.
func (c constraint) match(err error) bool {
	if err == nil {
		return false
	}
	var (
		pqErr     *pq.Error
		mysqlErr  *mysql.MySQLError
		sqliteErr *sqlite.Error
		mssqlErr  mssql.Error
	)
	switch {
	case errors.As(err, &pqErr) && contains(c.pg, pqErr.Code),
		errors.As(err, &mysqlErr) && contains(c.mysql, mysqlErr.Number),
		errors.As(err, &sqliteErr) && contains(c.sqlite, sqliteErr.Code()),
		errors.As(err, &mssqlErr) && contains(c.mssql, mssqlErr.Number):
		return true
	}
	msg := err.Error()
	for _, s := range c.message {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func contains[T comparable](vs []T, v T) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// IsUniqueConstraintError reports if the error resulted from a DB
// uniqueness constraint violation, e.g. a duplicate value in a unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueViolation.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a
// foreign-key constraint violation, e.g. the parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyViolation.match(err)
}

// IsCheckConstraintError reports if the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	return checkViolation.match(err)
}

// IsConstraintError reports if the error is a strata.ConstraintError or
// any database constraint violation.
func IsConstraintError(err error) bool {
	return strata.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}
