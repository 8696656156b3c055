package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgen"
)

// validVarRe validates session variable names, optionally schema qualified.
var validVarRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidVar(s string) bool {
	return s != "" && len(s) <= 128 && validVarRe.MatchString(s)
}

// DriverName returns the database/sql driver name registered for a dialect
// by the drivers strata is tested with: lib/pq, go-sql-driver/mysql,
// modernc.org/sqlite, microsoft/go-mssqldb and sijms/go-ora.
func DriverName(name string) string {
	switch name {
	case dialect.MariaDB:
		return dialect.MySQL
	case "sqlite3":
		return dialect.SQLite
	case dialect.MSSQL:
		return "sqlserver"
	default:
		return name
	}
}

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(name string, c Conn) *Driver {
	c.dialect = name
	return &Driver{Conn: c, dialect: name}
}

// Open opens a database of the named dialect. The registered database/sql
// driver is resolved with DriverName.
func Open(name, source string) (*Driver, error) {
	if _, err := sqlgen.ForName(name); err != nil {
		return nil, err
	}
	db, err := sql.Open(DriverName(name), source)
	if err != nil {
		return nil, err
	}
	return OpenDB(name, db), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(name string, db *sql.DB) *Driver {
	return NewDriver(name, Conn{ExecQuerier: db})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect implements the dialect.Driver interface.
func (d Driver) Dialect() string {
	switch d.dialect {
	case "sqlite3":
		return dialect.SQLite
	case "sqlserver":
		return dialect.MSSQL
	}
	return d.dialect
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{
		Conn: Conn{ExecQuerier: tx, dialect: d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx implements dialect.Tx interface.
type Tx struct {
	Conn
	driver.Tx
}

type ctxVarsKey struct{}

// sessionVar is one variable set before every statement.
type sessionVar struct{ name, value string }

// WithVar returns a new context that holds the session variable to be set
// before every statement executed with it. Variables are supported on
// Postgres, MySQL and MariaDB.
func WithVar(ctx context.Context, name, value string) context.Context {
	vars, _ := ctx.Value(ctxVarsKey{}).([]sessionVar)
	vars = append(vars[:len(vars):len(vars)], sessionVar{name: name, value: value})
	return context.WithValue(ctx, ctxVarsKey{}, vars)
}

// WithIntVar calls WithVar with the string representation of the value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// VarFromContext returns the last value set for the session variable.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	vars, _ := ctx.Value(ctxVarsKey{}).([]sessionVar)
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].name == name {
			return vars[i].value, true
		}
	}
	return "", false
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements the dialect.ExecQuerier interface. v is nil or a
// *sql.Result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) (rerr error) {
	argv, err := argList(args)
	if err != nil {
		return err
	}
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: set session vars: %w", err)
	}
	if cf != nil {
		defer func() { rerr = errors.Join(rerr, cf()) }()
	}
	switch v := v.(type) {
	case nil:
		if _, err := ex.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := ex.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.ExecQuerier interface. v must be a *Rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, err := argList(args)
	if err != nil {
		return err
	}
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: set session vars: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, argv...)
	if err != nil {
		if cf != nil {
			err = errors.Join(err, cf())
		}
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	if cf != nil {
		vr.ColumnScanner = rowsWithCloser{rows, cf}
	}
	return nil
}

// argList accepts nil for statements compiled without bind arguments.
func argList(args any) ([]any, error) {
	switch a := args.(type) {
	case nil:
		return nil, nil
	case []any:
		return a, nil
	default:
		return nil, fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
}

// maySetVars sets the session variables of ctx on a single connection and
// returns the connection with a function releasing it.
func (c Conn) maySetVars(ctx context.Context) (ExecQuerier, func() error, error) {
	vars, _ := ctx.Value(ctxVarsKey{}).([]sessionVar)
	if len(vars) == 0 {
		return c, nil, nil
	}
	var reset func(name string) string
	switch c.dialect {
	case dialect.Postgres:
		reset = func(name string) string { return "RESET " + name }
	case dialect.MySQL, dialect.MariaDB:
		reset = func(name string) string { return "SET " + name + " = NULL" }
	default:
		return nil, nil, strata.NewDialectCapabilityError(c.dialect, "session variables")
	}
	d, err := sqlgen.ForName(c.dialect)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range vars {
		if !isValidVar(v.name) {
			return nil, nil, fmt.Errorf("invalid session variable name: %q", v.name)
		}
	}
	var (
		ex ExecQuerier
		cf func() error
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.Tx:
		ex = e
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, cf = conn, conn.Close
	default:
		return nil, nil, fmt.Errorf("unsupported ExecQuerier type: %T", c.ExecQuerier)
	}
	var (
		resets []string
		seen   = make(map[string]bool, len(vars))
	)
	for _, v := range vars {
		if !seen[v.name] {
			seen[v.name] = true
			resets = append(resets, reset(v.name))
		}
		if _, err := ex.ExecContext(ctx, "SET "+v.name+" = "+d.StringLiteral(v.value)); err != nil {
			if cf != nil {
				err = errors.Join(err, cf())
			}
			return nil, nil, err
		}
	}
	// Pooled connections are reset before they are returned. The cleanup
	// runs on its own context so a canceled statement still releases them.
	if release := cf; release != nil {
		cf = func() error {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, q := range resets {
				if _, err := ex.ExecContext(cleanupCtx, q); err != nil {
					return errors.Join(err, release())
				}
			}
			return release()
		}
	}
	return ex, cf, nil
}

var _ dialect.Driver = (*Driver)(nil)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

// Close closes the underlying ColumnScanner and calls the custom closer.
func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}
