package sqlgen

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type oracle struct{ common }

var oracleDialect = &oracle{common{
	name: dialect.Oracle,
	caps: dialect.Capabilities{
		IdentifierQuote: [2]byte{'"', '"'},
		Placeholder:     dialect.PlaceholderColon,
		BoolLiteral:     dialect.BoolInteger,
		MaxIdentifier:   128,
		Returning:       dialect.ReturningNone,
		IdentityInsert:  true,
		Upsert:          dialect.UpsertMerge,
		SelectFrom:      "DUAL",
		Limit:           dialect.LimitOffsetFetch,
		DeleteLimit:     dialect.MutationLimitRowID,
		RowID:           "ROWID",
		Truncate:        true,
		AutoIncrement:   dialect.AutoIncrementGenerated,
		Enum:            dialect.EnumCheck,
		Char:            true,
		Geometry:        true,
		Lock:            true,
		SkipLocked:      true,
	},
	types: buildTypeTable(baseTypes, typeTable{
		field.TypeBool:     static("NUMBER(1)"),
		field.TypeTime:     precise("TIMESTAMP", " WITH LOCAL TIME ZONE"),
		field.TypeJSON:     static("CLOB"),
		field.TypeString:   sized("VARCHAR2", 255),
		field.TypeText:     static("CLOB"),
		field.TypeEnum:     static("VARCHAR2(255)"),
		field.TypeInt8:     static("NUMBER(3)"),
		field.TypeInt16:    static("NUMBER(5)"),
		field.TypeInt32:    static("NUMBER(10)"),
		field.TypeInt:      static("NUMBER(10)"),
		field.TypeInt64:    static("NUMBER(19)"),
		field.TypeFloat32:  static("BINARY_FLOAT"),
		field.TypeFloat64:  static("BINARY_DOUBLE"),
		field.TypeDecimal:  decimal("NUMBER"),
		field.TypeGeometry: static("SDO_GEOMETRY"),
	}),
}}

// Oracle returns the Oracle dialect.
func Oracle() Dialect { return oracleDialect }

// BytesLiteral implements Dialect.
func (*oracle) BytesLiteral(b []byte) string {
	return "HEXTORAW('" + strings.ToUpper(hex.EncodeToString(b)) + "')"
}

// TimeLiteral implements Dialect.
func (*oracle) TimeLiteral(t time.Time, dateOnly bool) string {
	if dateOnly {
		return "TO_DATE('" + t.Format(dateLiteralLayout) + "', 'YYYY-MM-DD')"
	}
	return "TO_TIMESTAMP_TZ('" + t.Format(timeLiteralLayout) + "', 'YYYY-MM-DD HH24:MI:SS.FF3 TZH:TZM')"
}

// GeometryLiteral implements Dialect.
func (*oracle) GeometryLiteral(text string) string {
	return "SDO_UTIL.FROM_GEOJSON(" + text + ")"
}

// JSONExtract implements Dialect.
func (o *oracle) JSONExtract(column string, path []string) string {
	return "JSON_VALUE(" + column + ", " + o.StringLiteral(jsonPath(path)) + ")"
}
