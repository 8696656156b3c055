package sqlgen

import (
	"strings"
	"time"
)

// Field is a typed attribute reference that builds predicates over values
// of type T. The name may be an association path ("author.name").
//
// Usage:
//
//	var (
//	    pages     = sqlgen.IntField("pages")
//	    published = sqlgen.TimeField("published_at")
//	)
//	q := &sqlgen.Query{Where: sqlgen.And(pages.GT(100), published.NotNull())}
type Field[T any] string

// Common field types.
type (
	IntField     = Field[int]
	Int64Field   = Field[int64]
	Float64Field = Field[float64]
	TimeField    = Field[time.Time]
)

// Name returns the field name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[T]) EQ(v T) Expr { return Eq(string(f), v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[T]) NEQ(v T) Expr { return Ne(string(f), v) }

// In returns a predicate that checks if the field value is in the given list.
func (f Field[T]) In(vs ...T) Expr { return In(string(f), anys(vs)...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f Field[T]) NotIn(vs ...T) Expr { return NotIn(string(f), anys(vs)...) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[T]) GT(v T) Expr { return Gt(string(f), v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[T]) GTE(v T) Expr { return Gte(string(f), v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[T]) LT(v T) Expr { return Lt(string(f), v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[T]) LTE(v T) Expr { return Lte(string(f), v) }

// Between returns a predicate that checks if the field is within [lo, hi].
func (f Field[T]) Between(lo, hi T) Expr { return Between(string(f), lo, hi) }

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[T]) IsNull() Expr { return Is(string(f), nil) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[T]) NotNull() Expr { return IsNot(string(f), nil) }

// Asc returns an ascending order term of the field.
func (f Field[T]) Asc() OrderTerm { return Asc(string(f)) }

// Desc returns a descending order term of the field.
func (f Field[T]) Desc() OrderTerm { return Desc(string(f)) }

// StringField is a typed string attribute reference with pattern
// predicates on top of the Field ones.
type StringField string

func (f StringField) field() Field[string] { return Field[string](f) }

// Name returns the field name.
func (f StringField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField) EQ(v string) Expr { return f.field().EQ(v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField) NEQ(v string) Expr { return f.field().NEQ(v) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField) In(vs ...string) Expr { return f.field().In(vs...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f StringField) NotIn(vs ...string) Expr { return f.field().NotIn(vs...) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f StringField) GT(v string) Expr { return f.field().GT(v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f StringField) LT(v string) Expr { return f.field().LT(v) }

// Contains returns a predicate that checks if the field contains the given substring.
func (f StringField) Contains(v string) Expr { return Substring(string(f), v) }

// ContainsFold returns a predicate that checks if the field contains the
// given substring, ignoring case. LIKE wildcards in v are not escaped.
func (f StringField) ContainsFold(v string) Expr { return ILike(string(f), "%"+v+"%") }

// HasPrefix returns a predicate that checks if the field has the given prefix.
func (f StringField) HasPrefix(v string) Expr { return StartsWith(string(f), v) }

// HasSuffix returns a predicate that checks if the field has the given suffix.
func (f StringField) HasSuffix(v string) Expr { return EndsWith(string(f), v) }

// EqualFold returns a predicate that checks if the field equals the given
// value, ignoring case.
func (f StringField) EqualFold(v string) Expr {
	return Cmp{Left: Fn("LOWER", ref(string(f))), Op: OpEq, Value: strings.ToLower(v)}
}

// IsNull returns a predicate that checks if the field is NULL.
func (f StringField) IsNull() Expr { return f.field().IsNull() }

// NotNull returns a predicate that checks if the field is not NULL.
func (f StringField) NotNull() Expr { return f.field().NotNull() }

// Asc returns an ascending order term of the field.
func (f StringField) Asc() OrderTerm { return Asc(string(f)) }

// Desc returns a descending order term of the field.
func (f StringField) Desc() OrderTerm { return Desc(string(f)) }

// BoolField is a typed boolean attribute reference. Its predicates use IS
// so dialects without a boolean type compare against 1 and 0.
type BoolField string

// Name returns the field name.
func (f BoolField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f BoolField) EQ(v bool) Expr { return Is(string(f), v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f BoolField) NEQ(v bool) Expr { return IsNot(string(f), v) }

// IsNull returns a predicate that checks if the field is NULL.
func (f BoolField) IsNull() Expr { return Is(string(f), nil) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f BoolField) NotNull() Expr { return IsNot(string(f), nil) }

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = vs[i]
	}
	return out
}
