// Package field provides fluent builders for defining entity attributes.
//
// Attribute names are the names used in queries; the storage column
// defaults to the same name and can be changed with StorageKey:
//
//	field.String("email").StorageKey("email_address")
//
// # Attribute Types
//
//	field.String("name")               // VARCHAR(255)
//	field.Text("bio")
//	field.Char("code", 2)
//	field.Int("count")
//	field.Int64("big_number")
//	field.Float64("price")
//	field.Decimal("amount", 10, 2)
//	field.Bool("is_active")
//	field.Time("created_at")           // millisecond precision
//	field.Date("birthday")
//	field.UUID("id")
//	field.Enum("status").Values("pending", "active", "inactive")
//	field.JSON("metadata")
//	field.Bytes("data")
//	field.Array("tags", field.TypeString)
//	field.RangeOf("period", field.TypeTime)
//	field.Geometry("location")
//
// ENUM attributes need at least one value, ARRAY and RANGE attributes an
// element type. Violations are reported through Descriptor().Err and make
// schema.Define fail.
//
// # Options
//
//	field.String("email").
//	    Unique().              // Unique constraint
//	    Nillable().            // NULL allowed
//	    Immutable().           // Never updated
//	    Default("unknown").    // Literal default, or a func() T
//	    Comment("User email")  // Column comment
//
// # Values
//
// Serialize and Deserialize convert between Go values and driver values.
// Deserialize(Serialize(v)) yields v in its canonical form: integers as
// int64, floats as float64, JSON as map[string]any or []any, arrays as
// []any, UUIDs as uuid.UUID and ranges as Range.
package field
