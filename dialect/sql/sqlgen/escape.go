package sqlgen

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// QuoteIdentifiers quotes every dot separated segment of s.
func QuoteIdentifiers(d Dialect, s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// quoteTable returns the quoted, schema qualified table of e.
func quoteTable(d Dialect, e *schema.Entity) string {
	if e.Schema != "" {
		return d.QuoteIdentifier(e.Schema) + "." + d.QuoteIdentifier(e.Table)
	}
	return d.QuoteIdentifier(e.Table)
}

// Escape renders v as a SQL literal of d. info, when set, selects how JSON,
// array and date values are written. Times are rendered in UTC.
func Escape(d Dialect, v any, info *field.TypeInfo) (string, error) {
	return EscapeIn(d, v, info, time.UTC)
}

// EscapeIn is like Escape but renders times in loc.
func EscapeIn(d Dialect, v any, info *field.TypeInfo, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	return escape(d, v, info, loc)
}

func escape(d Dialect, v any, info *field.TypeInfo, loc *time.Location) (string, error) {
	if isNil(v) {
		return "NULL", nil
	}
	if info != nil && info.Type == field.TypeJSON {
		text, err := jsonText(v)
		if err != nil {
			return "", strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), err.Error())
		}
		return d.StringLiteral(text), nil
	}
	caps := d.Capabilities()
	switch v := v.(type) {
	case field.Range:
		if !caps.Range {
			return "", strata.NewDialectCapabilityError(d.Name(), "range values")
		}
		return d.StringLiteral(v.String()), nil
	case field.GeoJSON:
		if !caps.Geometry {
			return "", strata.NewDialectCapabilityError(d.Name(), "geometry values")
		}
		text, err := v.Text()
		if err != nil {
			return "", strata.NewSerializationError("geometry", d.Name(), err.Error())
		}
		return d.GeometryLiteral(d.StringLiteral(text)), nil
	case bool:
		return d.BoolLiteral(v), nil
	case string:
		return d.StringLiteral(v), nil
	case []byte:
		return d.BytesLiteral(v), nil
	case json.RawMessage:
		return d.StringLiteral(string(v)), nil
	case time.Time:
		dateOnly := info != nil && info.Type == field.TypeDate
		return d.TimeLiteral(v.In(loc), dateOnly), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return escapeFloat(d, float64(v), 32)
	case float64:
		return escapeFloat(d, v, 64)
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return "", strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), err.Error())
		}
		return escape(d, dv, info, loc)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return escape(d, rv.Elem().Interface(), info, loc)
	case reflect.String:
		return d.StringLiteral(rv.String()), nil
	case reflect.Bool:
		return d.BoolLiteral(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return escapeFloat(d, rv.Float(), rv.Type().Bits())
	case reflect.Slice, reflect.Array:
		return escapeArray(d, rv, info, loc)
	case reflect.Map, reflect.Struct:
		text, err := jsonText(v)
		if err != nil {
			return "", strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), err.Error())
		}
		return d.StringLiteral(text), nil
	}
	return "", strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), "unsupported value")
}

func escapeFloat(d Dialect, f float64, bits int) (string, error) {
	var special string
	switch {
	case math.IsNaN(f):
		special = "NaN"
	case math.IsInf(f, 1):
		special = "Infinity"
	case math.IsInf(f, -1):
		special = "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, bits), nil
	}
	if !d.Capabilities().FloatSpecials {
		return "", strata.NewSerializationError("float", d.Name(), special+" is not representable")
	}
	return "'" + special + "'", nil
}

func escapeArray(d Dialect, rv reflect.Value, info *field.TypeInfo, loc *time.Location) (string, error) {
	if !d.Capabilities().Array {
		return "", strata.NewSerializationError(rv.Type().String(), d.Name(), "arrays are not supported")
	}
	var elem *field.TypeInfo
	if info != nil {
		elem = info.Elem
	}
	items := make([]string, rv.Len())
	for i := range items {
		s, err := escape(d, rv.Index(i).Interface(), elem, loc)
		if err != nil {
			return "", err
		}
		items[i] = s
	}
	lit := "ARRAY[" + strings.Join(items, ",") + "]"
	if info != nil && info.Type == field.TypeArray && info.Elem != nil {
		t, err := d.ColumnType(info)
		if err != nil {
			return "", err
		}
		lit += "::" + t
	}
	return lit, nil
}

func jsonText(v any) (string, error) {
	switch v := v.(type) {
	case json.RawMessage:
		return string(v), nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Binder collects bind arguments. Bind returns a provisional marker and
// Finish replaces the markers, in textual order, with dialect placeholders.
// Fragments may therefore be compiled in any order.
type Binder struct {
	d    Dialect
	args []any
}

// NewBinder returns a Binder for d.
func NewBinder(d Dialect) *Binder {
	return &Binder{d: d}
}

const marker = '\x00'

// Bind records v and returns its marker.
func (b *Binder) Bind(v any) string {
	b.args = append(b.args, v)
	return string(marker) + strconv.Itoa(len(b.args)-1) + string(marker)
}

// Finish returns query with placeholders and the arguments in placeholder
// order.
func (b *Binder) Finish(query string) (string, []any) {
	if len(b.args) == 0 {
		return query, nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(b.args))
	)
	sb.Grow(len(query))
	for {
		i := strings.IndexByte(query, marker)
		if i < 0 {
			sb.WriteString(query)
			break
		}
		j := strings.IndexByte(query[i+1:], marker)
		if j < 0 {
			sb.WriteString(query)
			break
		}
		idx, err := strconv.Atoi(query[i+1 : i+1+j])
		if err != nil {
			sb.WriteString(query[:i+2+j])
			query = query[i+2+j:]
			continue
		}
		args = append(args, b.args[idx])
		sb.WriteString(query[:i])
		sb.WriteString(b.d.Placeholder(len(args)))
		query = query[i+2+j:]
	}
	return sb.String(), args
}

// bindArg converts v into the argument handed to the driver.
func bindArg(d Dialect, v any, info *field.TypeInfo) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	caps := d.Capabilities()
	if info != nil && info.Type == field.TypeJSON {
		text, err := jsonText(v)
		if err != nil {
			return nil, strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), err.Error())
		}
		return text, nil
	}
	switch v := v.(type) {
	case field.Range:
		if !caps.Range {
			return nil, strata.NewDialectCapabilityError(d.Name(), "range values")
		}
		return v, nil
	case field.GeoJSON:
		if !caps.Geometry {
			return nil, strata.NewDialectCapabilityError(d.Name(), "geometry values")
		}
		text, err := v.Text()
		if err != nil {
			return nil, strata.NewSerializationError("geometry", d.Name(), err.Error())
		}
		return text, nil
	case float32:
		if _, err := escapeFloat(d, float64(v), 32); err != nil {
			return nil, err
		}
	case float64:
		if _, err := escapeFloat(d, v, 64); err != nil {
			return nil, err
		}
	case []byte, json.RawMessage, string, time.Time, driver.Valuer:
		return v, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return bindArg(d, rv.Elem().Interface(), info)
	case reflect.Slice, reflect.Array:
		if !caps.Array {
			return nil, strata.NewSerializationError(rv.Type().String(), d.Name(), "arrays are not supported")
		}
		return pq.Array(v), nil
	case reflect.Map, reflect.Struct:
		text, err := jsonText(v)
		if err != nil {
			return nil, strata.NewSerializationError(fmt.Sprintf("%T", v), d.Name(), err.Error())
		}
		return text, nil
	}
	return v, nil
}

// valuer renders operand values, either inlined as literals or bound.
type valuer struct {
	d   Dialect
	loc *time.Location
	b   *Binder
}

func (v *valuer) value(x any, info *field.TypeInfo) (string, error) {
	if v.b == nil {
		return escape(v.d, x, info, v.loc)
	}
	arg, err := bindArg(v.d, x, info)
	if err != nil {
		return "", err
	}
	if _, ok := x.(field.GeoJSON); ok {
		return v.d.GeometryLiteral(v.b.Bind(arg)), nil
	}
	return v.b.Bind(arg), nil
}
