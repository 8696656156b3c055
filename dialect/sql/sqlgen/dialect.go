package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema/field"
)

// Dialect supplies the formatting rules of one SQL dialect. The generator
// never branches on dialect names; everything dialect specific is either a
// method of Dialect or a flag of its Capabilities.
//
// Implementations must be immutable and safe for concurrent use.
type Dialect interface {
	// Name returns the dialect name, one of the dialect package constants.
	Name() string
	// Capabilities returns the feature flags of the dialect.
	Capabilities() dialect.Capabilities
	// QuoteIdentifier quotes a single identifier.
	QuoteIdentifier(name string) string
	// Placeholder returns the n-th (1-based) bind placeholder.
	Placeholder(n int) string
	// StringLiteral returns s as a quoted string literal.
	StringLiteral(s string) string
	// BoolLiteral returns the boolean literal.
	BoolLiteral(b bool) string
	// BytesLiteral returns b as a binary literal.
	BytesLiteral(b []byte) string
	// TimeLiteral returns t as a timestamp literal, or a date literal when
	// dateOnly is set. The caller converts t to the target location.
	TimeLiteral(t time.Time, dateOnly bool) string
	// GeometryLiteral returns the expression building a geometry from
	// GeoJSON text. text is a SQL expression, a literal or a placeholder.
	GeometryLiteral(text string) string
	// LimitOffset returns the pagination clause with a leading space, or
	// the empty string when nothing paginates.
	LimitOffset(limit *int, offset int) string
	// JSONExtract returns the expression reading the text value at path
	// inside the JSON column reference.
	JSONExtract(column string, path []string) string
	// ColumnType returns the column type for info.
	ColumnType(info *field.TypeInfo) (string, error)
}

// ForName returns the built-in dialect registered under name.
func ForName(name string) (Dialect, error) {
	switch name {
	case dialect.Postgres:
		return Postgres(), nil
	case dialect.MySQL:
		return MySQL(), nil
	case dialect.MariaDB:
		return MariaDB(), nil
	case dialect.SQLite, "sqlite3":
		return SQLite(), nil
	case dialect.MSSQL, "sqlserver":
		return MSSQL(), nil
	case dialect.Oracle:
		return Oracle(), nil
	default:
		return nil, fmt.Errorf("sqlgen: unsupported dialect %q", name)
	}
}

// Dialects returns all built-in dialects.
func Dialects() []Dialect {
	return []Dialect{Postgres(), MySQL(), MariaDB(), SQLite(), MSSQL(), Oracle()}
}

// common implements the parts of Dialect shared by most dialects. The
// built-in dialects embed it and override what differs.
type common struct {
	name  string
	caps  dialect.Capabilities
	types typeTable
}

// Name implements Dialect.
func (c *common) Name() string { return c.name }

// Capabilities implements Dialect.
func (c *common) Capabilities() dialect.Capabilities { return c.caps }

// QuoteIdentifier implements Dialect. Embedded closing quotes are doubled
// and "*" is left as is.
func (c *common) QuoteIdentifier(name string) string {
	if name == "*" {
		return name
	}
	open, closing := string(c.caps.IdentifierQuote[0]), string(c.caps.IdentifierQuote[1])
	return open + strings.ReplaceAll(name, closing, closing+closing) + closing
}

// Placeholder implements Dialect.
func (c *common) Placeholder(n int) string {
	switch c.caps.Placeholder {
	case dialect.PlaceholderDollar:
		return "$" + strconv.Itoa(n)
	case dialect.PlaceholderAt:
		return "@p" + strconv.Itoa(n)
	case dialect.PlaceholderColon:
		return ":" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// StringLiteral implements Dialect.
func (c *common) StringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// BoolLiteral implements Dialect.
func (c *common) BoolLiteral(b bool) string {
	switch {
	case c.caps.BoolLiteral == dialect.BoolInteger && b:
		return "1"
	case c.caps.BoolLiteral == dialect.BoolInteger:
		return "0"
	case b:
		return "true"
	default:
		return "false"
	}
}

// BytesLiteral implements Dialect.
func (c *common) BytesLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

const (
	timeLiteralLayout = "2006-01-02 15:04:05.000 -07:00"
	dateLiteralLayout = "2006-01-02"
)

// TimeLiteral implements Dialect.
func (c *common) TimeLiteral(t time.Time, dateOnly bool) string {
	if dateOnly {
		return "'" + t.Format(dateLiteralLayout) + "'"
	}
	return "'" + t.Format(timeLiteralLayout) + "'"
}

// GeometryLiteral implements Dialect.
func (c *common) GeometryLiteral(text string) string {
	return "ST_GeomFromGeoJSON(" + text + ")"
}

// LimitOffset implements Dialect.
func (c *common) LimitOffset(limit *int, offset int) string {
	switch c.caps.Limit {
	case dialect.LimitComma:
		switch {
		case limit != nil && offset > 0:
			return fmt.Sprintf(" LIMIT %d, %d", offset, *limit)
		case limit != nil:
			return fmt.Sprintf(" LIMIT %d", *limit)
		case offset > 0:
			return fmt.Sprintf(" LIMIT %d, 18446744073709551615", offset)
		}
	case dialect.LimitOffsetFetch:
		switch {
		case limit != nil:
			return fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, *limit)
		case offset > 0:
			return fmt.Sprintf(" OFFSET %d ROWS", offset)
		}
	default:
		switch {
		case limit != nil && offset > 0:
			return fmt.Sprintf(" LIMIT %d OFFSET %d", *limit, offset)
		case limit != nil:
			return fmt.Sprintf(" LIMIT %d", *limit)
		case offset > 0:
			return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
		}
	}
	return ""
}

// JSONExtract implements Dialect.
func (c *common) JSONExtract(column string, path []string) string {
	return "json_extract(" + column + ", " + c.StringLiteral(jsonPath(path)) + ")"
}

// ColumnType implements Dialect.
func (c *common) ColumnType(info *field.TypeInfo) (string, error) {
	if info == nil || !info.Valid() {
		return "", strata.NewDialectCapabilityError(c.name, "invalid type")
	}
	render, ok := c.types[info.Type]
	if !ok {
		return "", strata.NewDialectCapabilityError(c.name, info.Type.String()+" columns")
	}
	return render(c, info)
}

// jsonPath returns the "$.a.b" path notation.
func jsonPath(path []string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, p := range path {
		if _, err := strconv.Atoi(p); err == nil {
			b.WriteString("[" + p + "]")
			continue
		}
		b.WriteString("." + p)
	}
	return b.String()
}
