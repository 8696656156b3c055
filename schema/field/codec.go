package field

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syssam/strata"
)

const (
	timestampLayout = "2006-01-02 15:04:05.000-07:00"
	dateLayout      = "2006-01-02"
)

// timeLayouts are tried in order when parsing timestamps read back as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// Serialize converts an attribute value into its driver representation.
// The result is what the escaper renders as a literal and what bind mode
// hands to the driver.
func Serialize(v any, info *TypeInfo) (any, error) {
	if v == nil || info == nil {
		return v, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		if _, ok := v.(driver.Valuer); !ok {
			return Serialize(rv.Elem().Interface(), info)
		}
	}
	if _, ok := v.(Range); !ok {
		if valuer, ok := v.(driver.Valuer); ok && info.Type != TypeJSON {
			return valuer.Value()
		}
	}
	switch t := info.Type; {
	case t == TypeBool:
		return toBool(v, info)
	case t.Integer():
		return toInt64(v, info)
	case t == TypeFloat32 || t == TypeFloat64:
		return toFloat64(v, info)
	case t == TypeDecimal:
		return toDecimal(v, info)
	case t.Textual():
		return toString(v, info)
	case t == TypeTime:
		tm, err := toTime(v, info, time.UTC)
		if err != nil {
			return nil, err
		}
		return tm.UTC(), nil
	case t == TypeDate:
		return toTime(v, info, time.UTC)
	case t == TypeJSON:
		if raw, ok := v.(json.RawMessage); ok {
			return string(raw), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, serializationError(v, err.Error())
		}
		return string(b), nil
	case t == TypeUUID:
		return toUUIDString(v)
	case t == TypeBytes:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return nil, serializationError(v, "expected bytes")
	case t == TypeArray:
		return serializeArray(v, info)
	case t == TypeRange:
		return serializeRange(v, info)
	case t == TypeGeometry:
		switch v := v.(type) {
		case GeoJSON:
			return v.Text()
		case string:
			return v, nil
		}
		return nil, serializationError(v, "expected a geometry")
	}
	return v, nil
}

// Deserialize converts a raw driver value read back from the database into
// the canonical Go value of the attribute type. loc is applied to
// timestamps stored without a zone.
func Deserialize(raw any, info *TypeInfo, loc *time.Location) (any, error) {
	if raw == nil || info == nil {
		return raw, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	switch t := info.Type; {
	case t == TypeBool:
		return toBool(raw, info)
	case t.Integer():
		return toInt64(raw, info)
	case t == TypeFloat32 || t == TypeFloat64:
		return toFloat64(raw, info)
	case t == TypeDecimal:
		return toDecimal(raw, info)
	case t.Textual():
		return toString(raw, info)
	case t == TypeTime:
		tm, err := toTime(raw, info, loc)
		if err != nil {
			return nil, err
		}
		return tm.In(loc), nil
	case t == TypeDate:
		tm, err := toTime(raw, info, loc)
		if err != nil {
			return nil, err
		}
		y, m, d := tm.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case t == TypeJSON:
		var text []byte
		switch raw := raw.(type) {
		case []byte:
			text = raw
		case string:
			text = []byte(raw)
		case json.RawMessage:
			text = raw
		default:
			return raw, nil
		}
		var v any
		if err := json.Unmarshal(text, &v); err != nil {
			return nil, serializationError(raw, err.Error())
		}
		return v, nil
	case t == TypeUUID:
		return toUUID(raw)
	case t == TypeBytes:
		switch raw := raw.(type) {
		case []byte:
			return append([]byte(nil), raw...), nil
		case string:
			return []byte(raw), nil
		}
		return nil, serializationError(raw, "expected bytes")
	case t == TypeArray:
		return deserializeArray(raw, info, loc)
	case t == TypeRange:
		switch raw := raw.(type) {
		case Range:
			return raw, nil
		case []byte:
			return ParseRange(string(raw), info.Elem, loc)
		case string:
			return ParseRange(raw, info.Elem, loc)
		}
		return nil, serializationError(raw, "expected a range")
	case t == TypeGeometry:
		var text []byte
		switch raw := raw.(type) {
		case GeoJSON:
			return raw, nil
		case []byte:
			text = raw
		case string:
			text = []byte(raw)
		default:
			return nil, serializationError(raw, "expected a geometry")
		}
		var g GeoJSON
		if err := json.Unmarshal(text, &g); err != nil {
			return nil, serializationError(raw, err.Error())
		}
		return g, nil
	}
	if b, ok := raw.([]byte); ok {
		return append([]byte(nil), b...), nil
	}
	return raw, nil
}

func serializationError(v any, reason string) error {
	return strata.NewSerializationError(fmt.Sprintf("%T", v), "", reason)
}

func toBool(v any, _ *TypeInfo) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case []byte:
		return parseBool(string(v))
	case string:
		return parseBool(v)
	}
	if n, ok := numeric(v); ok {
		return n != 0, nil
	}
	return nil, serializationError(v, "expected a boolean")
}

func parseBool(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return nil, serializationError(s, "invalid boolean "+strconv.Quote(s))
}

func toInt64(v any, _ *TypeInfo) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, serializationError(v, "integer overflows int64")
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, serializationError(v, "not an integer")
		}
		return int64(f), nil
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	}
	var s string
	switch v := v.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return nil, serializationError(v, "expected an integer")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, serializationError(v, "invalid integer "+strconv.Quote(s))
	}
	return n, nil
}

func toFloat64(v any, _ *TypeInfo) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32:
		// Round trip through the decimal form to keep float32(0.1) as 0.1.
		return strconv.ParseFloat(strconv.FormatFloat(rv.Float(), 'g', -1, 32), 64)
	case reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	var s string
	switch v := v.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return nil, serializationError(v, "expected a number")
	}
	switch strings.TrimSpace(s) {
	case "NaN":
		return math.NaN(), nil
	case "Infinity", "inf", "+Inf":
		return math.Inf(1), nil
	case "-Infinity", "-inf", "-Inf":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, serializationError(v, "invalid number "+strconv.Quote(s))
	}
	return f, nil
}

func toDecimal(v any, info *TypeInfo) (any, error) {
	switch v := v.(type) {
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return nil, serializationError(v, "invalid decimal "+strconv.Quote(v))
		}
		return v, nil
	case []byte:
		return toDecimal(string(v), info)
	case fmt.Stringer:
		return toDecimal(v.String(), info)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		if info.Scale > 0 {
			return strconv.FormatFloat(rv.Float(), 'f', info.Scale, 64), nil
		}
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return nil, serializationError(v, "expected a decimal")
}

func toString(v any, _ *TypeInfo) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return fmt.Sprint(v), nil
	}
	return nil, serializationError(v, "expected a string")
}

func toTime(v any, _ *TypeInfo, loc *time.Location) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		return *v, nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		return time.UnixMilli(v), nil
	default:
		return time.Time{}, serializationError(v, "expected a time")
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, serializationError(v, "invalid time "+strconv.Quote(s))
}

func toUUIDString(v any) (any, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v.String(), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, serializationError(v, err.Error())
		}
		return id.String(), nil
	case []byte:
		id, err := toUUID(v)
		if err != nil {
			return nil, err
		}
		return id.(uuid.UUID).String(), nil
	}
	return nil, serializationError(v, "expected a uuid")
}

func toUUID(raw any) (any, error) {
	switch raw := raw.(type) {
	case uuid.UUID:
		return raw, nil
	case [16]byte:
		return uuid.UUID(raw), nil
	case []byte:
		if len(raw) == 16 {
			return uuid.FromBytes(raw)
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return nil, serializationError(raw, err.Error())
		}
		return id, nil
	case string:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, serializationError(raw, err.Error())
		}
		return id, nil
	}
	return nil, serializationError(raw, "expected a uuid")
}

func serializeArray(v any, info *TypeInfo) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, serializationError(v, "expected a slice")
	}
	out := make([]any, rv.Len())
	for i := range out {
		e, err := Serialize(rv.Index(i).Interface(), info.Elem)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func deserializeArray(raw any, info *TypeInfo, loc *time.Location) (any, error) {
	var items []any
	switch raw := raw.(type) {
	case []any:
		items = raw
	case []byte, string:
		parsed, err := parseArrayText(raw, info.Elem)
		if err != nil {
			return nil, err
		}
		items = parsed
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice {
			return nil, serializationError(raw, "expected an array")
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	out := make([]any, len(items))
	for i, item := range items {
		e, err := Deserialize(item, info.Elem, loc)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// parseArrayText parses the Postgres array text form, e.g. {1,2,3}.
func parseArrayText(raw any, elem *TypeInfo) ([]any, error) {
	var dst interface{ Scan(any) error }
	switch {
	case elem.Type == TypeBool:
		dst = &pq.BoolArray{}
	case elem.Type.Integer():
		dst = &pq.Int64Array{}
	case elem.Type == TypeFloat32 || elem.Type == TypeFloat64:
		dst = &pq.Float64Array{}
	default:
		dst = &pq.StringArray{}
	}
	src := raw
	if s, ok := src.(string); ok {
		src = []byte(s)
	}
	if err := dst.Scan(src); err != nil {
		return nil, serializationError(raw, err.Error())
	}
	return collect(dst), nil
}

func collect(dst any) []any {
	var out []any
	switch a := dst.(type) {
	case *pq.BoolArray:
		for _, v := range *a {
			out = append(out, v)
		}
	case *pq.Int64Array:
		for _, v := range *a {
			out = append(out, v)
		}
	case *pq.Float64Array:
		for _, v := range *a {
			out = append(out, v)
		}
	case *pq.StringArray:
		for _, v := range *a {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

func serializeRange(v any, info *TypeInfo) (any, error) {
	var r Range
	switch v := v.(type) {
	case Range:
		r = v
	case string:
		return ParseRange(v, info.Elem, time.UTC)
	case []any:
		if len(v) != 2 {
			return nil, serializationError(v, "range needs two bounds")
		}
		r = NewRange(v[0], v[1])
	default:
		return nil, serializationError(v, "expected a range")
	}
	var err error
	if r.Lower, err = Serialize(r.Lower, info.Elem); err != nil {
		return nil, err
	}
	if r.Upper, err = Serialize(r.Upper, info.Elem); err != nil {
		return nil, err
	}
	return r, nil
}
