// Package main provides a CLI for compiling strata queries to SQL.
//
// The CLI supports:
//   - compile: Compile a YAML query spec to a SELECT (or COUNT) statement
//   - ddl: Print, or apply, the CREATE TABLE statements of the models
//   - run: Execute a YAML query spec against a database and print the
//     hydrated instances as JSON
//
// Models are read from a YAML definition file (see package schema/load).
// Configuration is read from strata.yaml, STRATA_* environment variables
// and flags, in increasing order of precedence.
//
// Usage:
//
//	strata [flags] <command>
package main

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"
)

func main() {
	Execute()
}
