package sqlgen

import (
	"sort"
	"strings"
)

// Expr is a node of the expression tree compiled into WHERE, HAVING, ON
// and projection fragments. The set of implementations is closed.
type Expr interface {
	expr()
}

type (
	// Lit is a literal value, escaped or bound on compilation.
	Lit struct{ Value any }

	// Col references a column. Without a Table, Name is an attribute
	// (or column) of the entity in scope and is qualified with its alias.
	Col struct {
		Table string
		Name  string
	}

	// Path references an attribute through associations, "author.name",
	// or a JSON path inside a JSON attribute, "meta.tags.0".
	Path string

	// Func is a function call. Name is written as is.
	Func struct {
		Name string
		Args []Expr
	}

	// Cast converts Expr to the SQL type Type.
	Cast struct {
		Expr Expr
		Type string
	}

	// Raw is a pre-escaped SQL fragment.
	Raw string

	// Bool combines conditions with AND, OR or NOT.
	Bool struct {
		Op    BoolOp
		Exprs []Expr
	}

	// Cmp compares Left with Value using Op. Value is either a Go value or
	// an Expr.
	Cmp struct {
		Left  Expr
		Op    Op
		Value any
	}

	// Where is the map form of a condition tree. Keys are attribute names,
	// association paths ("author.name") or one of KeyAnd, KeyOr and KeyNot.
	// Values are compared for equality, or with the operators of an Ops
	// value. Keys are compiled in sorted order.
	Where map[string]any

	// Ops maps operators to operands for a single key.
	Ops map[Op]any
)

func (Lit) expr()   {}
func (Col) expr()   {}
func (Path) expr()  {}
func (Func) expr()  {}
func (Cast) expr()  {}
func (Raw) expr()   {}
func (Bool) expr()  {}
func (Cmp) expr()   {}
func (Where) expr() {}

// BoolOp is the operator of a Bool expression.
type BoolOp uint8

// Boolean operators.
const (
	AndOp BoolOp = iota
	OrOp
	NotOp
)

// Op is a comparison operator. The string values are the operator names
// accepted in query specs.
type Op string

// Comparison operators.
const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpBetween    Op = "between"
	OpNotBetween Op = "notBetween"
	OpIn         Op = "in"
	OpNotIn      Op = "notIn"
	OpLike       Op = "like"
	OpNotLike    Op = "notLike"
	OpILike      Op = "iLike"
	OpNotILike   Op = "notILike"
	OpIs         Op = "is"
	OpIsNot      Op = "not"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	OpSubstring  Op = "substring"
	OpContains   Op = "contains"
	OpOverlap    Op = "overlap"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpBetween: true, OpNotBetween: true, OpIn: true, OpNotIn: true,
	OpLike: true, OpNotLike: true, OpILike: true, OpNotILike: true,
	OpIs: true, OpIsNot: true, OpStartsWith: true, OpEndsWith: true,
	OpSubstring: true, OpContains: true, OpOverlap: true,
}

// Combinator keys of the Where map form.
const (
	KeyAnd = "$and"
	KeyOr  = "$or"
	KeyNot = "$not"
)

// ref returns the reference of a key: a column, or a path for dotted keys.
func ref(key string) Expr {
	if strings.Contains(key, ".") {
		return Path(key)
	}
	return Col{Name: key}
}

// C returns a column reference. A dotted name is read as table.column.
func C(name string) Col {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return Col{Table: name[:i], Name: name[i+1:]}
	}
	return Col{Name: name}
}

// Fn returns a function call expression.
func Fn(name string, args ...Expr) Func {
	return Func{Name: name, Args: args}
}

// Eq returns the key = v condition.
func Eq(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpEq, Value: v} }

// Ne returns the key != v condition.
func Ne(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpNe, Value: v} }

// Gt returns the key > v condition.
func Gt(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpGt, Value: v} }

// Gte returns the key >= v condition.
func Gte(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpGte, Value: v} }

// Lt returns the key < v condition.
func Lt(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpLt, Value: v} }

// Lte returns the key <= v condition.
func Lte(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpLte, Value: v} }

// Between returns the key BETWEEN lo AND hi condition.
func Between(key string, lo, hi any) Expr {
	return Cmp{Left: ref(key), Op: OpBetween, Value: []any{lo, hi}}
}

// NotBetween returns the key NOT BETWEEN lo AND hi condition.
func NotBetween(key string, lo, hi any) Expr {
	return Cmp{Left: ref(key), Op: OpNotBetween, Value: []any{lo, hi}}
}

// In returns the key IN (vs) condition.
func In(key string, vs ...any) Expr {
	if vs == nil {
		vs = []any{}
	}
	return Cmp{Left: ref(key), Op: OpIn, Value: vs}
}

// NotIn returns the key NOT IN (vs) condition.
func NotIn(key string, vs ...any) Expr {
	if vs == nil {
		vs = []any{}
	}
	return Cmp{Left: ref(key), Op: OpNotIn, Value: vs}
}

// Like returns the key LIKE pattern condition.
func Like(key, pattern string) Expr { return Cmp{Left: ref(key), Op: OpLike, Value: pattern} }

// NotLike returns the key NOT LIKE pattern condition.
func NotLike(key, pattern string) Expr {
	return Cmp{Left: ref(key), Op: OpNotLike, Value: pattern}
}

// ILike returns the case-insensitive LIKE condition.
func ILike(key, pattern string) Expr { return Cmp{Left: ref(key), Op: OpILike, Value: pattern} }

// NotILike returns the case-insensitive NOT LIKE condition.
func NotILike(key, pattern string) Expr {
	return Cmp{Left: ref(key), Op: OpNotILike, Value: pattern}
}

// Is returns the key IS v condition. v is nil, true or false.
func Is(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpIs, Value: v} }

// IsNot returns the key IS NOT v condition. v is nil, true or false.
func IsNot(key string, v any) Expr { return Cmp{Left: ref(key), Op: OpIsNot, Value: v} }

// StartsWith matches values starting with s.
func StartsWith(key, s string) Expr { return Cmp{Left: ref(key), Op: OpStartsWith, Value: s} }

// EndsWith matches values ending with s.
func EndsWith(key, s string) Expr { return Cmp{Left: ref(key), Op: OpEndsWith, Value: s} }

// Substring matches values containing s.
func Substring(key, s string) Expr { return Cmp{Left: ref(key), Op: OpSubstring, Value: s} }

// Contains matches array values containing all of vs.
func Contains(key string, vs any) Expr { return Cmp{Left: ref(key), Op: OpContains, Value: vs} }

// Overlap matches array values sharing an element with vs.
func Overlap(key string, vs any) Expr { return Cmp{Left: ref(key), Op: OpOverlap, Value: vs} }

// And joins conditions with AND.
func And(exprs ...Expr) Expr { return Bool{Op: AndOp, Exprs: exprs} }

// Or joins conditions with OR.
func Or(exprs ...Expr) Expr { return Bool{Op: OrOp, Exprs: exprs} }

// Not negates a condition.
func Not(e Expr) Expr { return Bool{Op: NotOp, Exprs: []Expr{e}} }

// sortedKeys returns the keys of w in sorted order.
func (w Where) sortedKeys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sorted returns the operators of o in sorted order.
func (o Ops) sorted() []Op {
	ops := make([]Op, 0, len(o))
	for op := range o {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// conjuncts splits e into the parts joined by a top-level AND.
func conjuncts(e Expr) []Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case Where:
		var parts []Expr
		for _, k := range e.sortedKeys() {
			if k == KeyAnd {
				for _, sub := range exprList(e[k]) {
					parts = append(parts, conjuncts(sub)...)
				}
				continue
			}
			parts = append(parts, Where{k: e[k]})
		}
		return parts
	case Bool:
		if e.Op != AndOp {
			return []Expr{e}
		}
		var parts []Expr
		for _, sub := range e.Exprs {
			parts = append(parts, conjuncts(sub)...)
		}
		return parts
	default:
		return []Expr{e}
	}
}

// exprList reads the operand of $and, $or and $not.
func exprList(v any) []Expr {
	switch v := v.(type) {
	case nil:
		return nil
	case Expr:
		return []Expr{v}
	case map[string]any:
		return []Expr{Where(v)}
	case []Expr:
		return v
	case []Where:
		list := make([]Expr, len(v))
		for i, w := range v {
			list[i] = w
		}
		return list
	case []map[string]any:
		list := make([]Expr, len(v))
		for i, w := range v {
			list[i] = Where(w)
		}
		return list
	case []any:
		var list []Expr
		for _, item := range v {
			list = append(list, exprList(item)...)
		}
		return list
	default:
		return nil
	}
}

// references returns the dotted keys and paths referenced by e.
func references(e Expr) []string {
	var refs []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case Where:
			for _, k := range e.sortedKeys() {
				switch k {
				case KeyAnd, KeyOr, KeyNot:
					for _, sub := range exprList(e[k]) {
						walk(sub)
					}
				default:
					if strings.Contains(k, ".") {
						refs = append(refs, k)
					}
					if sub, ok := e[k].(Expr); ok {
						walk(sub)
					}
				}
			}
		case Path:
			refs = append(refs, string(e))
		case Cmp:
			walk(e.Left)
			if sub, ok := e.Value.(Expr); ok {
				walk(sub)
			}
		case Bool:
			for _, sub := range e.Exprs {
				walk(sub)
			}
		case Func:
			for _, sub := range e.Args {
				walk(sub)
			}
		case Cast:
			walk(e.Expr)
		}
	}
	walk(e)
	return refs
}
