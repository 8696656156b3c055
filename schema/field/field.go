package field

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// Field is implemented by attribute builders.
type Field interface {
	Descriptor() *Descriptor
}

// Descriptor is the resolved definition of one attribute.
type Descriptor struct {
	Name          string            // attribute name
	StorageKey    string            // column name, defaults to Name
	Info          *TypeInfo         // semantic type information
	Nillable      bool              // NULL allowed in the database
	Default       any               // literal default or a func() T
	Unique        bool              // single column unique constraint
	UniqueGroup   string            // composite unique constraint name
	PrimaryKey    bool              // part of the primary key
	AutoIncrement bool              // generated by the database
	Immutable     bool              // never written by updates
	Comment       string            // column comment
	SchemaType    map[string]string // explicit column type per dialect
	Validators    []func(any) error // consumed by the validation collaborator
	Err           error
}

// Column returns the storage column name of the attribute.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// HasDefault reports whether a default was declared.
func (d *Descriptor) HasDefault() bool {
	return d.Default != nil
}

// IsDefaultFunc reports if the default is a function evaluated per insert.
func (d *Descriptor) IsDefaultFunc() bool {
	return d.Default != nil && reflect.TypeOf(d.Default).Kind() == reflect.Func
}

// DefaultValue returns the default value, calling it when it is a function.
func (d *Descriptor) DefaultValue() any {
	if !d.IsDefaultFunc() {
		return d.Default
	}
	out := reflect.ValueOf(d.Default).Call(nil)
	if len(out) == 0 {
		return nil
	}
	return out[0].Interface()
}

// Clone returns a deep enough copy of the descriptor to be owned by
// another entity (mixins share builders across entities).
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	if d.Info != nil {
		info := *d.Info
		c.Info = &info
	}
	c.Validators = append([]func(any) error(nil), d.Validators...)
	return &c
}

// Builder is the fluent builder for all attribute types.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, info *TypeInfo) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Info: info}}
}

// Bool returns a new boolean attribute.
func Bool(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeBool}) }

// String returns a new VARCHAR attribute with the default size of 255.
func String(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeString, Size: 255}) }

// Text returns a new unbounded text attribute.
func Text(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeText}) }

// Char returns a new fixed length text attribute.
func Char(name string, size int) *Builder {
	return newBuilder(name, &TypeInfo{Type: TypeChar, Size: size})
}

// Int returns a new INTEGER attribute.
func Int(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeInt}) }

// Int8 returns a new TINYINT attribute.
func Int8(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeInt8}) }

// Int16 returns a new SMALLINT attribute.
func Int16(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeInt16}) }

// Int32 returns a new MEDIUMINT attribute.
func Int32(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeInt32}) }

// Int64 returns a new BIGINT attribute.
func Int64(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeInt64}) }

// Float32 returns a new single precision attribute.
func Float32(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeFloat32}) }

// Float64 returns a new double precision attribute.
func Float64(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeFloat64}) }

// Decimal returns a new exact numeric attribute.
func Decimal(name string, precision, scale int) *Builder {
	return newBuilder(name, &TypeInfo{Type: TypeDecimal, Precision: precision, Scale: scale})
}

// Time returns a new timestamp attribute with millisecond precision.
func Time(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeTime, Precision: 3}) }

// Date returns a new date-only attribute.
func Date(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeDate}) }

// JSON returns a new JSON attribute.
func JSON(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeJSON}) }

// UUID returns a new UUID attribute.
func UUID(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeUUID}) }

// Bytes returns a new binary attribute.
func Bytes(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeBytes}) }

// Geometry returns a new spatial attribute holding GeoJSON values.
func Geometry(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeGeometry}) }

// Enum returns a new enum attribute. Values must be set before use.
func Enum(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeEnum}) }

// Array returns a new array attribute of the given element type.
func Array(name string, elem Type) *Builder {
	return newBuilder(name, &TypeInfo{Type: TypeArray, Elem: elemInfo(elem)})
}

// RangeOf returns a new range attribute of the given element type.
func RangeOf(name string, elem Type) *Builder {
	return newBuilder(name, &TypeInfo{Type: TypeRange, Elem: elemInfo(elem)})
}

// Other returns an attribute of an explicit column type. SchemaType must
// name the type for every dialect the attribute is used with.
func Other(name string) *Builder { return newBuilder(name, &TypeInfo{Type: TypeOther}) }

// WithInfo returns an attribute of the given type information.
func WithInfo(name string, info TypeInfo) *Builder {
	return newBuilder(name, &info)
}

func elemInfo(t Type) *TypeInfo {
	info := &TypeInfo{Type: t}
	switch t {
	case TypeString:
		info.Size = 255
	case TypeTime:
		info.Precision = 3
	}
	return info
}

// Values sets the members of an enum attribute.
func (b *Builder) Values(values ...string) *Builder {
	b.desc.Info.Values = append(b.desc.Info.Values, values...)
	return b
}

// Size sets the column length of STRING, CHAR and BYTES attributes.
func (b *Builder) Size(n int) *Builder {
	b.desc.Info.Size = n
	return b
}

// Precision sets the precision (and scale for DECIMAL) of the attribute.
func (b *Builder) Precision(precision int, scale ...int) *Builder {
	b.desc.Info.Precision = precision
	if len(scale) > 0 {
		b.desc.Info.Scale = scale[0]
	}
	return b
}

// MaxLen sets the column size and adds a length validator.
func (b *Builder) MaxLen(n int) *Builder {
	b.desc.Info.Size = n
	return b.Validate(func(v any) error {
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) > n {
			return fmt.Errorf("value is longer than %d characters", n)
		}
		return nil
	})
}

// NotEmpty adds a validator rejecting empty strings.
func (b *Builder) NotEmpty() *Builder {
	return b.Validate(func(v any) error {
		if s, ok := v.(string); ok && s == "" {
			return errors.New("value must not be empty")
		}
		return nil
	})
}

// Match adds a validator matching string values against re.
func (b *Builder) Match(re *regexp.Regexp) *Builder {
	return b.Validate(func(v any) error {
		if s, ok := v.(string); ok && !re.MatchString(s) {
			return fmt.Errorf("value does not match %s", re)
		}
		return nil
	})
}

// Min adds a validator for the minimum numeric value.
func (b *Builder) Min(i float64) *Builder {
	return b.Validate(func(v any) error {
		if n, ok := numeric(v); ok && n < i {
			return fmt.Errorf("value out of range: %v < %v", n, i)
		}
		return nil
	})
}

// Max adds a validator for the maximum numeric value.
func (b *Builder) Max(i float64) *Builder {
	return b.Validate(func(v any) error {
		if n, ok := numeric(v); ok && n > i {
			return fmt.Errorf("value out of range: %v > %v", n, i)
		}
		return nil
	})
}

// Range adds a single validator for [lo, hi].
func (b *Builder) Range(lo, hi float64) *Builder {
	return b.Validate(func(v any) error {
		if n, ok := numeric(v); ok && (n < lo || n > hi) {
			return fmt.Errorf("value out of range: %v not in [%v, %v]", n, lo, hi)
		}
		return nil
	})
}

// Positive adds a validator for positive numbers.
func (b *Builder) Positive() *Builder {
	return b.Validate(func(v any) error {
		if n, ok := numeric(v); ok && n <= 0 {
			return errors.New("value must be positive")
		}
		return nil
	})
}

// Validate adds a custom validator.
func (b *Builder) Validate(fn func(any) error) *Builder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Nillable allows NULL values in the database.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Default sets a literal default, or a function called on every insert.
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	return b
}

// Unique adds a single column unique constraint.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// UniqueGroup adds the attribute to a composite unique constraint.
func (b *Builder) UniqueGroup(name string) *Builder {
	b.desc.UniqueGroup = name
	return b
}

// PrimaryKey marks the attribute as (part of) the primary key.
func (b *Builder) PrimaryKey() *Builder {
	b.desc.PrimaryKey = true
	return b
}

// AutoIncrement marks the attribute as generated by the database.
func (b *Builder) AutoIncrement() *Builder {
	b.desc.AutoIncrement = true
	return b
}

// Immutable excludes the attribute from updates.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// StorageKey sets the column name.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the column comment.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// SchemaType overrides the column type per dialect.
func (b *Builder) SchemaType(types map[string]string) *Builder {
	b.desc.SchemaType = types
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	d.Err = d.check()
	return d
}

func (d *Descriptor) check() error {
	switch {
	case d.Name == "":
		return errors.New("missing attribute name")
	case d.Info.Type == TypeEnum && len(d.Info.Values) == 0:
		return errors.New("enum requires at least one value")
	case (d.Info.Type == TypeArray || d.Info.Type == TypeRange) && (d.Info.Elem == nil || !d.Info.Elem.Type.Valid()):
		return fmt.Errorf("%s requires an element type", d.Info.Type)
	case d.Info.Type == TypeRange && !d.Info.Elem.Type.Numeric() && d.Info.Elem.Type != TypeTime && d.Info.Elem.Type != TypeDate:
		return fmt.Errorf("range of %s is not supported", d.Info.Elem.Type)
	case d.Info.Type == TypeOther && len(d.SchemaType) == 0:
		return errors.New("other type requires a schema type")
	case d.AutoIncrement && !d.Info.Type.Integer():
		return fmt.Errorf("auto-increment requires an integer type, got %s", d.Info.Type)
	}
	seen := make(map[string]struct{}, len(d.Info.Values))
	for _, v := range d.Info.Values {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("duplicate enum value %q", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func numeric(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		return f, err == nil
	}
	return 0, false
}
