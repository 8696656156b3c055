package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

type (
	// typeRenderer renders the column type of one semantic type.
	typeRenderer func(c *common, info *field.TypeInfo) (string, error)
	// typeTable maps semantic types to their renderers. Tables are built
	// once per dialect and never modified afterwards.
	typeTable map[field.Type]typeRenderer
)

// buildTypeTable returns a new table holding base with overrides applied.
// A nil override removes the type from the table.
func buildTypeTable(base, overrides typeTable) typeTable {
	t := make(typeTable, len(base)+len(overrides))
	for k, v := range base {
		t[k] = v
	}
	for k, v := range overrides {
		if v == nil {
			delete(t, k)
			continue
		}
		t[k] = v
	}
	return t
}

// static renders a fixed type name.
func static(name string) typeRenderer {
	return func(*common, *field.TypeInfo) (string, error) { return name, nil }
}

// sized renders name(size), or name alone when no size is set.
func sized(name string, size int) typeRenderer {
	return func(_ *common, info *field.TypeInfo) (string, error) {
		n := info.Size
		if n == 0 {
			n = size
		}
		if n == 0 {
			return name, nil
		}
		return fmt.Sprintf("%s(%d)", name, n), nil
	}
}

// precise renders name(precision) when a precision is set.
func precise(name, suffix string) typeRenderer {
	return func(_ *common, info *field.TypeInfo) (string, error) {
		if info.Precision > 0 {
			return fmt.Sprintf("%s(%d)%s", name, info.Precision, suffix), nil
		}
		return name + suffix, nil
	}
}

// decimal renders name(precision,scale).
func decimal(name string) typeRenderer {
	return func(_ *common, info *field.TypeInfo) (string, error) {
		switch {
		case info.Precision > 0 && info.Scale > 0:
			return fmt.Sprintf("%s(%d,%d)", name, info.Precision, info.Scale), nil
		case info.Precision > 0:
			return fmt.Sprintf("%s(%d)", name, info.Precision), nil
		default:
			return name, nil
		}
	}
}

// flagged renders yes when the capability holds and no otherwise.
func flagged(has func(dialect.Capabilities) bool, yes, no typeRenderer) typeRenderer {
	return func(c *common, info *field.TypeInfo) (string, error) {
		if has(c.caps) {
			return yes(c, info)
		}
		return no(c, info)
	}
}

// baseTypes is the ANSI leaning table every built-in dialect starts from.
var baseTypes = typeTable{
	field.TypeBool:    static("BOOLEAN"),
	field.TypeTime:    precise("DATETIME", ""),
	field.TypeDate:    static("DATE"),
	field.TypeJSON:    flagged(func(c dialect.Capabilities) bool { return c.JSON }, static("JSON"), static("TEXT")),
	field.TypeUUID:    flagged(func(c dialect.Capabilities) bool { return c.UUID }, static("UUID"), static("CHAR(36)")),
	field.TypeBytes:   static("BLOB"),
	field.TypeEnum:    static("VARCHAR(255)"),
	field.TypeString:  sized("VARCHAR", 255),
	field.TypeText:    static("TEXT"),
	field.TypeChar:    flagged(func(c dialect.Capabilities) bool { return c.Char }, sized("CHAR", 1), sized("VARCHAR", 1)),
	field.TypeInt8:    static("TINYINT"),
	field.TypeInt16:   static("SMALLINT"),
	field.TypeInt32:   static("INTEGER"),
	field.TypeInt:     static("INTEGER"),
	field.TypeInt64:   static("BIGINT"),
	field.TypeFloat32: static("FLOAT"),
	field.TypeFloat64: static("DOUBLE PRECISION"),
	field.TypeDecimal: decimal("DECIMAL"),
}

// EnumTypeName returns the name of the Postgres enum type backing a column.
func EnumTypeName(table, column string) string {
	return "enum_" + table + "_" + column
}

// columnType returns the column type of an attribute, honoring per-dialect
// overrides and named enum types.
func columnType(d Dialect, e *schema.Entity, attr *field.Descriptor) (string, error) {
	if t, ok := attr.SchemaType[d.Name()]; ok {
		return t, nil
	}
	if attr.Info.Type == field.TypeOther {
		return "", strata.NewDialectCapabilityError(d.Name(), "other columns without a schema type")
	}
	if attr.Info.Type == field.TypeEnum && d.Capabilities().Enum == dialect.EnumNamedType {
		return d.QuoteIdentifier(EnumTypeName(e.Table, attr.Column())), nil
	}
	return d.ColumnType(attr.Info)
}

// ValidateEntity checks that every attribute of e maps to a column type of d.
func ValidateEntity(d Dialect, e *schema.Entity) error {
	var errs []error
	for _, attr := range e.Attributes {
		if _, err := columnType(d, e, attr); err != nil {
			errs = append(errs, strata.NewDefinitionError(e.Name, attr.Name, err))
		}
	}
	return errors.Join(errs...)
}

// enumValues renders the quoted, comma separated values of an enum.
func enumValues(d Dialect, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = d.StringLiteral(v)
	}
	return strings.Join(quoted, ", ")
}
