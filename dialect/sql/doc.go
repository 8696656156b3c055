// Package sql provides the database/sql backed execution collaborator of
// strata.
//
// A Driver runs the statements compiled by dialect/sql/sqlgen. It never
// builds SQL of its own; its only SQL text is the SET and RESET of session
// variables.
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://localhost/library?sslmode=disable")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
//	stmt, err := sqlgen.New(sqlgen.Postgres(), graph, sqlgen.WithBind()).Select(author, query)
//	if err != nil {
//	    return err
//	}
//	rows := &sql.Rows{}
//	if err := drv.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
//	    return err
//	}
//	defer rows.Close()
//
// # Dialect Names
//
// Open takes a strata dialect name and resolves the database/sql driver
// registered for it with DriverName. Importing the driver packages is left
// to the program:
//
//	postgres  github.com/lib/pq
//	mysql     github.com/go-sql-driver/mysql
//	mariadb   github.com/go-sql-driver/mysql
//	sqlite    modernc.org/sqlite
//	mssql     github.com/microsoft/go-mssqldb
//	oracle    github.com/sijms/go-ora/v2
//
// # Session Variables
//
// WithVar attaches variables that are set on the connection before every
// statement run with the context, and reset before the connection returns
// to the pool:
//
//	ctx = sql.WithVar(ctx, "app.tenant", "acme")
//
// # Wrappers
//
// StatsDriver counts statements, errors and slow statements. DebugDriver
// logs every statement through log/slog. Both wrap any dialect.Driver and
// can be stacked.
//
// # Constraint Errors
//
// IsUniqueConstraintError, IsForeignKeyConstraintError and
// IsCheckConstraintError classify the errors of the drivers above without
// changing the error handed to the caller.
package sql
