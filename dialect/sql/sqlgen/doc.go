// Package sqlgen compiles entity queries and mutations into SQL text for
// the PostgreSQL, MySQL, MariaDB, SQLite, SQL Server and Oracle dialects.
//
// A Generator pairs a Dialect with the association graph of the entities it
// compiles for:
//
//	g := sqlgen.New(sqlgen.Postgres(), graph, sqlgen.WithBind())
//	stmt, err := g.Select(author, &sqlgen.Query{
//		Where:   sqlgen.Where{"name": sqlgen.Ops{sqlgen.OpStartsWith: "A"}},
//		Include: []*sqlgen.Include{{Association: "books", Required: sqlgen.BoolPtr(true)}},
//		Limit:   sqlgen.IntPtr(10),
//	})
//
// Conditions are written either in the map form (Where, Ops) or with the
// expression constructors (Eq, In, And, ...). Both compile to the same SQL.
//
// Values are inlined as escaped literals unless bind mode is enabled, in
// which case they are replaced with the placeholders of the dialect and
// returned in Statement.Args. Compilation is pure: a Generator can be
// shared between goroutines and compiling the same input twice yields the
// same statement.
package sqlgen
