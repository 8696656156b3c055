package dialect

import (
	"context"
)

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	MariaDB  = "mariadb"
	SQLite   = "sqlite"
	MSSQL    = "mssql"
	Oracle   = "oracle"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the
// execution collaborator. The query generator never calls it.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// ReturningStyle tells how a dialect hands back rows written by a mutation.
type ReturningStyle uint8

const (
	ReturningNone   ReturningStyle = iota
	ReturningClause                // RETURNING <cols>
	ReturningOutput                // OUTPUT INSERTED.<cols>
)

// LimitStyle is the pagination syntax family of a dialect.
type LimitStyle uint8

const (
	LimitOffset      LimitStyle = iota // LIMIT n OFFSET m
	LimitComma                         // LIMIT m, n
	LimitOffsetFetch                   // OFFSET m ROWS FETCH NEXT n ROWS ONLY
)

// MutationLimitStyle is how UPDATE and DELETE statements are bounded.
type MutationLimitStyle uint8

const (
	MutationLimitNone  MutationLimitStyle = iota
	MutationLimitClause                   // DELETE ... LIMIT n
	MutationLimitTop                      // DELETE TOP(n) ...
	MutationLimitRowID                    // WHERE <rowid> IN (SELECT <rowid> ... LIMIT n)
)

// UpsertStyle is the insert-or-update form of a dialect.
type UpsertStyle uint8

const (
	UpsertNone           UpsertStyle = iota
	UpsertOnConflict                 // ON CONFLICT (...) DO UPDATE SET ...
	UpsertOnDuplicateKey             // ON DUPLICATE KEY UPDATE ...
	UpsertMerge                      // MERGE INTO ... USING ...
)

// IgnoreStyle is how an INSERT skips rows violating a unique constraint.
type IgnoreStyle uint8

const (
	IgnoreNone       IgnoreStyle = iota
	IgnoreKeyword                // INSERT IGNORE INTO
	IgnoreOrIgnore               // INSERT OR IGNORE INTO
	IgnoreOnConflict             // ON CONFLICT DO NOTHING
)

// PlaceholderStyle is the bind parameter syntax of a dialect.
type PlaceholderStyle uint8

const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1
	PlaceholderAt                               // @p1
	PlaceholderColon                            // :1
)

// BoolStyle is how boolean literals are written.
type BoolStyle uint8

const (
	BoolKeyword BoolStyle = iota // true / false
	BoolInteger                  // 1 / 0
)

// AutoIncrementStyle is how an auto-increment column is declared in DDL.
type AutoIncrementStyle uint8

const (
	AutoIncrementSerial    AutoIncrementStyle = iota // SERIAL / BIGSERIAL
	AutoIncrementKeyword                             // auto_increment
	AutoIncrementInline                              // INTEGER PRIMARY KEY AUTOINCREMENT
	AutoIncrementIdentity                            // IDENTITY(1,1)
	AutoIncrementGenerated                           // GENERATED BY DEFAULT AS IDENTITY
)

// EnumStyle is how ENUM attributes map to columns.
type EnumStyle uint8

const (
	EnumCheck     EnumStyle = iota // VARCHAR(255) with a CHECK constraint
	EnumInline                     // ENUM('a', 'b')
	EnumNamedType                  // CREATE TYPE ... AS ENUM
)

// Capabilities describes what a dialect supports. The query generator
// consults these flags instead of branching on dialect names.
type Capabilities struct {
	// IdentifierQuote holds the opening and closing identifier quote.
	IdentifierQuote [2]byte
	Placeholder     PlaceholderStyle
	BoolLiteral     BoolStyle
	// MaxIdentifier is the longest identifier the dialect accepts.
	MaxIdentifier int

	Returning ReturningStyle
	// DefaultValues enables INSERT INTO t DEFAULT VALUES.
	DefaultValues bool
	// EmptyValues enables INSERT INTO t VALUES ().
	EmptyValues bool
	// AutoIncrementDefault is the keyword written for a missing value in a
	// multi-row VALUES list, DEFAULT or NULL.
	AutoIncrementDefault string
	// IdentityInsert reports whether explicit values may be written into an
	// auto-increment column.
	IdentityInsert   bool
	IgnoreDuplicates IgnoreStyle
	Upsert           UpsertStyle
	// MultiRowInsert enables VALUES (..), (..) in a single INSERT.
	MultiRowInsert bool
	// SelectFrom is the table a FROM-less SELECT must name, e.g. DUAL.
	SelectFrom string

	Limit       LimitStyle
	DeleteLimit MutationLimitStyle
	// RowID is the physical row identifier used by MutationLimitRowID.
	RowID string
	// TableAliasAs reports whether AS may precede a table alias.
	TableAliasAs bool

	Truncate bool
	// IfExists enables IF [NOT] EXISTS on CREATE and DROP TABLE.
	IfExists bool
	// ForeignKeyOnUpdate reports whether ON UPDATE actions are accepted.
	ForeignKeyOnUpdate bool
	AutoIncrement      AutoIncrementStyle
	Enum               EnumStyle

	Char     bool
	JSON     bool
	JSONB    bool
	Array    bool
	Range    bool
	Geometry bool
	UUID     bool

	ILike         bool
	FloatSpecials bool

	Lock bool
	// ForShare is the shared lock clause, empty when unsupported.
	ForShare   string
	SkipLocked bool
}
