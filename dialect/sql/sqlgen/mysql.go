package sqlgen

import (
	"strings"
	"time"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

type mysql struct{ common }

var mysqlCaps = dialect.Capabilities{
	IdentifierQuote:      [2]byte{'`', '`'},
	Placeholder:          dialect.PlaceholderQuestion,
	BoolLiteral:          dialect.BoolKeyword,
	MaxIdentifier:        64,
	Returning:            dialect.ReturningNone,
	EmptyValues:          true,
	AutoIncrementDefault: "DEFAULT",
	IdentityInsert:       true,
	IgnoreDuplicates:     dialect.IgnoreKeyword,
	Upsert:               dialect.UpsertOnDuplicateKey,
	MultiRowInsert:       true,
	Limit:                dialect.LimitComma,
	DeleteLimit:          dialect.MutationLimitClause,
	TableAliasAs:         true,
	Truncate:             true,
	IfExists:             true,
	ForeignKeyOnUpdate:   true,
	AutoIncrement:        dialect.AutoIncrementKeyword,
	Enum:                 dialect.EnumInline,
	Char:                 true,
	JSON:                 true,
	Geometry:             true,
	Lock:                 true,
	ForShare:             "LOCK IN SHARE MODE",
	SkipLocked:           true,
}

var mysqlTypes = buildTypeTable(baseTypes, typeTable{
	field.TypeBool:     static("TINYINT(1)"),
	field.TypeFloat64:  static("DOUBLE"),
	field.TypeUUID:     static("CHAR(36) BINARY"),
	field.TypeEnum:     mysqlEnum,
	field.TypeGeometry: static("GEOMETRY"),
})

var (
	mysqlDialect   = &mysql{common{name: dialect.MySQL, caps: mysqlCaps, types: mysqlTypes}}
	mariadbDialect = &mysql{common{name: dialect.MariaDB, caps: mariadbCaps(), types: mysqlTypes}}
)

// mariadbCaps returns the MySQL flags plus what MariaDB added on top.
func mariadbCaps() dialect.Capabilities {
	c := mysqlCaps
	c.Returning = dialect.ReturningClause
	return c
}

// MySQL returns the MySQL dialect.
func MySQL() Dialect { return mysqlDialect }

// MariaDB returns the MariaDB dialect.
func MariaDB() Dialect { return mariadbDialect }

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	"'", "''",
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\b", `\b`,
	"\t", `\t`,
	"\x1a", `\Z`,
)

// StringLiteral implements Dialect. Backslashes and control characters are
// escaped the way MySQL reads them in its default SQL mode.
func (*mysql) StringLiteral(s string) string {
	return mysqlString(s)
}

func mysqlString(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

// TimeLiteral implements Dialect. DATETIME literals carry no offset.
func (*mysql) TimeLiteral(t time.Time, dateOnly bool) string {
	if dateOnly {
		return "'" + t.Format(dateLiteralLayout) + "'"
	}
	return "'" + t.Format("2006-01-02 15:04:05.000") + "'"
}

// JSONExtract implements Dialect.
func (m *mysql) JSONExtract(column string, path []string) string {
	return "json_unquote(json_extract(" + column + ", " + m.StringLiteral(jsonPath(path)) + "))"
}

func mysqlEnum(_ *common, info *field.TypeInfo) (string, error) {
	values := make([]string, len(info.Values))
	for i, v := range info.Values {
		values[i] = mysqlString(v)
	}
	return "ENUM(" + strings.Join(values, ", ") + ")", nil
}
