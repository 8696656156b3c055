package field

import (
	"strconv"
	"strings"
)

// Type is a semantic attribute type, independent of any dialect.
type Type uint8

// List of attribute types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeDate
	TypeJSON
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeText
	TypeChar
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeArray
	TypeRange
	TypeGeometry
	TypeOther
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeBool:     "bool",
	TypeTime:     "time",
	TypeDate:     "date",
	TypeJSON:     "json",
	TypeUUID:     "uuid",
	TypeBytes:    "bytes",
	TypeEnum:     "enum",
	TypeString:   "string",
	TypeText:     "text",
	TypeChar:     "char",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt:      "int",
	TypeInt64:    "int64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeDecimal:  "decimal",
	TypeArray:    "array",
	TypeRange:    "range",
	TypeGeometry: "geometry",
	TypeOther:    "other",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t <= TypeDecimal
}

// Integer reports if the given type is an integer type.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

// Textual reports if values of the type are carried as Go strings.
func (t Type) Textual() bool {
	switch t {
	case TypeString, TypeText, TypeChar, TypeEnum:
		return true
	}
	return false
}

// TypeFromString parses a type name as written in YAML definitions.
func TypeFromString(s string) (Type, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "boolean":
		return TypeBool, true
	case "integer":
		return TypeInt, true
	case "bigint":
		return TypeInt64, true
	case "smallint":
		return TypeInt16, true
	case "tinyint":
		return TypeInt8, true
	case "float", "real":
		return TypeFloat32, true
	case "double":
		return TypeFloat64, true
	case "datetime", "timestamp":
		return TypeTime, true
	case "dateonly":
		return TypeDate, true
	case "blob":
		return TypeBytes, true
	}
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == s {
			return t, true
		}
	}
	return TypeInvalid, false
}

// TypeInfo holds the full type information of an attribute.
type TypeInfo struct {
	Type Type
	// Size is the length of STRING, CHAR and BYTES columns.
	Size int
	// Precision and Scale apply to DECIMAL, and Precision alone to the
	// fractional seconds of TIME columns.
	Precision int
	Scale     int
	// Values lists the members of an ENUM.
	Values []string
	// Elem is the element type of ARRAY and RANGE attributes.
	Elem *TypeInfo
}

// String returns a short description like string(255) or array<int>.
func (ti *TypeInfo) String() string {
	if ti == nil {
		return TypeInvalid.String()
	}
	switch {
	case ti.Elem != nil:
		return ti.Type.String() + "<" + ti.Elem.String() + ">"
	case ti.Type == TypeDecimal && ti.Precision > 0:
		return ti.Type.String() + "(" + strconv.Itoa(ti.Precision) + "," + strconv.Itoa(ti.Scale) + ")"
	case ti.Size > 0:
		return ti.Type.String() + "(" + strconv.Itoa(ti.Size) + ")"
	}
	return ti.Type.String()
}

// Valid reports if the type info is complete for its type.
func (ti *TypeInfo) Valid() bool {
	if ti == nil || !ti.Type.Valid() {
		return false
	}
	switch ti.Type {
	case TypeEnum:
		return len(ti.Values) > 0
	case TypeArray, TypeRange:
		return ti.Elem != nil && ti.Elem.Valid()
	}
	return true
}
