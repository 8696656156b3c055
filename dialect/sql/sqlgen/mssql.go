package sqlgen

import (
	"encoding/hex"
	"strings"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type mssql struct{ common }

var mssqlDialect = &mssql{common{
	name: dialect.MSSQL,
	caps: dialect.Capabilities{
		IdentifierQuote:    [2]byte{'[', ']'},
		Placeholder:        dialect.PlaceholderAt,
		BoolLiteral:        dialect.BoolInteger,
		MaxIdentifier:      128,
		Returning:          dialect.ReturningOutput,
		DefaultValues:      true,
		Upsert:             dialect.UpsertMerge,
		MultiRowInsert:     true,
		Limit:              dialect.LimitOffsetFetch,
		DeleteLimit:        dialect.MutationLimitTop,
		TableAliasAs:       true,
		Truncate:           true,
		ForeignKeyOnUpdate: true,
		AutoIncrement:      dialect.AutoIncrementIdentity,
		Enum:               dialect.EnumCheck,
		Char:               true,
	},
	types: buildTypeTable(baseTypes, typeTable{
		field.TypeBool:    static("BIT"),
		field.TypeTime:    precise("DATETIMEOFFSET", ""),
		field.TypeJSON:    static("NVARCHAR(MAX)"),
		field.TypeBytes:   static("VARBINARY(MAX)"),
		field.TypeString:  sized("NVARCHAR", 255),
		field.TypeText:    static("NVARCHAR(MAX)"),
		field.TypeEnum:    static("NVARCHAR(255)"),
		field.TypeFloat64: static("FLOAT"),
		field.TypeFloat32: static("REAL"),
	}),
}}

// MSSQL returns the Microsoft SQL Server dialect.
func MSSQL() Dialect { return mssqlDialect }

// StringLiteral implements Dialect. Literals are NVARCHAR.
func (m *mssql) StringLiteral(s string) string {
	return "N" + m.common.StringLiteral(s)
}

// BytesLiteral implements Dialect.
func (*mssql) BytesLiteral(b []byte) string {
	return "0x" + strings.ToUpper(hex.EncodeToString(b))
}

// JSONExtract implements Dialect.
func (m *mssql) JSONExtract(column string, path []string) string {
	return "JSON_VALUE(" + column + ", " + m.StringLiteral(jsonPath(path)) + ")"
}
