package sqlgen

import (
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type sqlite struct{ common }

var sqliteDialect = &sqlite{common{
	name: dialect.SQLite,
	caps: dialect.Capabilities{
		IdentifierQuote:      [2]byte{'"', '"'},
		Placeholder:          dialect.PlaceholderQuestion,
		BoolLiteral:          dialect.BoolInteger,
		Returning:            dialect.ReturningClause,
		DefaultValues:        true,
		AutoIncrementDefault: "NULL",
		IdentityInsert:       true,
		IgnoreDuplicates:     dialect.IgnoreOrIgnore,
		Upsert:               dialect.UpsertOnConflict,
		MultiRowInsert:       true,
		Limit:                dialect.LimitOffset,
		DeleteLimit:          dialect.MutationLimitRowID,
		RowID:                "rowid",
		TableAliasAs:         true,
		IfExists:             true,
		ForeignKeyOnUpdate:   true,
		AutoIncrement:        dialect.AutoIncrementInline,
		Enum:                 dialect.EnumCheck,
		JSON:                 true,
	},
	types: buildTypeTable(baseTypes, typeTable{
		field.TypeBool:    static("TINYINT(1)"),
		field.TypeTime:    static("DATETIME"),
		field.TypeFloat64: static("REAL"),
	}),
}}

// SQLite returns the SQLite dialect.
func SQLite() Dialect { return sqliteDialect }
