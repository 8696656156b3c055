// Package dialect provides database dialect abstraction for strata.
//
// This package defines the interfaces used for executing statements and the
// Capabilities descriptor that each SQL dialect publishes, allowing the
// query generator in dialect/sql/sqlgen to support PostgreSQL, MySQL,
// MariaDB, SQLite, Microsoft SQL Server and Oracle without branching on
// dialect names.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.MariaDB  = "mariadb"
//	dialect.SQLite   = "sqlite"
//	dialect.MSSQL    = "mssql"
//	dialect.Oracle   = "oracle"
//
// # Driver Interface
//
// The Driver interface is the execution collaborator. Exec and Query take
// the compiled statement and its bind arguments:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Usage
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	client, err := model.New(graph, db)
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver, stats and debug drivers
//   - dialect/sql/sqlgen: SQL generation for queries, mutations and DDL
package dialect
