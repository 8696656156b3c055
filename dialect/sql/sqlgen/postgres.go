package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type postgres struct{ common }

var postgresDialect = &postgres{common{
	name: dialect.Postgres,
	caps: dialect.Capabilities{
		IdentifierQuote:      [2]byte{'"', '"'},
		Placeholder:          dialect.PlaceholderDollar,
		BoolLiteral:          dialect.BoolKeyword,
		MaxIdentifier:        63,
		Returning:            dialect.ReturningClause,
		DefaultValues:        true,
		AutoIncrementDefault: "DEFAULT",
		IdentityInsert:       true,
		IgnoreDuplicates:     dialect.IgnoreOnConflict,
		Upsert:               dialect.UpsertOnConflict,
		MultiRowInsert:       true,
		Limit:                dialect.LimitOffset,
		DeleteLimit:          dialect.MutationLimitRowID,
		RowID:                "ctid",
		TableAliasAs:         true,
		Truncate:             true,
		IfExists:             true,
		ForeignKeyOnUpdate:   true,
		AutoIncrement:        dialect.AutoIncrementSerial,
		Enum:                 dialect.EnumNamedType,
		Char:                 true,
		JSON:                 true,
		JSONB:                true,
		Array:                true,
		Range:                true,
		Geometry:             true,
		UUID:                 true,
		ILike:                true,
		FloatSpecials:        true,
		Lock:                 true,
		ForShare:             "FOR SHARE",
		SkipLocked:           true,
	},
	types: buildTypeTable(baseTypes, typeTable{
		field.TypeInt8:     static("SMALLINT"),
		field.TypeFloat32:  static("REAL"),
		field.TypeTime:     precise("TIMESTAMP", " WITH TIME ZONE"),
		field.TypeJSON:     static("JSONB"),
		field.TypeBytes:    static("BYTEA"),
		field.TypeGeometry: static("GEOMETRY"),
		field.TypeArray:    pgArray,
		field.TypeRange:    pgRange,
	}),
}}

// Postgres returns the PostgreSQL dialect.
func Postgres() Dialect { return postgresDialect }

// BytesLiteral implements Dialect.
func (*postgres) BytesLiteral(b []byte) string {
	return `E'\\x` + hex.EncodeToString(b) + "'"
}

// LimitOffset implements Dialect. OFFSET stands alone without a limit.
func (p *postgres) LimitOffset(limit *int, offset int) string {
	if limit == nil && offset > 0 {
		return fmt.Sprintf(" OFFSET %d", offset)
	}
	return p.common.LimitOffset(limit, offset)
}

// JSONExtract implements Dialect.
func (p *postgres) JSONExtract(column string, path []string) string {
	if len(path) == 1 {
		return "(" + column + "->>" + p.StringLiteral(path[0]) + ")"
	}
	return "(" + column + "#>>" + p.StringLiteral("{"+strings.Join(path, ",")+"}") + ")"
}

func pgArray(c *common, info *field.TypeInfo) (string, error) {
	elem, err := c.ColumnType(info.Elem)
	if err != nil {
		return "", err
	}
	return elem + "[]", nil
}

func pgRange(c *common, info *field.TypeInfo) (string, error) {
	switch info.Elem.Type {
	case field.TypeInt, field.TypeInt32, field.TypeInt16, field.TypeInt8:
		return "INT4RANGE", nil
	case field.TypeInt64:
		return "INT8RANGE", nil
	case field.TypeDecimal, field.TypeFloat32, field.TypeFloat64:
		return "NUMRANGE", nil
	case field.TypeTime:
		return "TSTZRANGE", nil
	case field.TypeDate:
		return "DATERANGE", nil
	default:
		return "", strata.NewDialectCapabilityError(c.name, "range of "+info.Elem.Type.String())
	}
}
