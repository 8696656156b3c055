package sqlgen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// scope is the entity expressions are compiled against.
type scope struct {
	entity *schema.Entity
	// qualifier is the quoted alias prefixed to columns, empty for
	// unqualified columns.
	qualifier string
	// alias is the association path of the scope, "books->reviews", empty
	// for the root entity.
	alias string
	// byAttr makes root columns refer to attribute names, as projected by
	// an inner query.
	byAttr bool
	// inner holds include aliases joined in the inner query when compiling
	// the outer one.
	inner map[string]bool
}

// compiler compiles expressions. It is created per statement.
type compiler struct {
	d     Dialect
	graph *schema.Graph
	v     *valuer
}

// where compiles a full condition. An empty tree compiles to 1=1.
func (c *compiler) where(s scope, e Expr) (string, error) {
	sql, _, err := c.group(s, e)
	return sql, err
}

// conjunct compiles e so that it can be joined with AND.
func (c *compiler) conjunct(s scope, e Expr) (string, error) {
	sql, op, err := c.group(s, e)
	if err != nil {
		return "", err
	}
	if op == " OR " {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

// group compiles e and reports the operator joining its top-level parts,
// empty when e is a single condition.
func (c *compiler) group(s scope, e Expr) (string, string, error) {
	switch e := e.(type) {
	case nil:
		return "1=1", "", nil
	case Where:
		parts, err := c.whereMap(s, e)
		if err != nil {
			return "", "", err
		}
		return joinParts(parts, " AND ", "1=1")
	case Bool:
		return c.boolean(s, e)
	case Cmp:
		sql, err := c.cmp(s, e)
		return sql, "", err
	default:
		sql, err := c.expr(s, e)
		return sql, "", err
	}
}

func joinParts(parts []string, sep, empty string) (string, string, error) {
	switch len(parts) {
	case 0:
		return empty, "", nil
	case 1:
		return parts[0], "", nil
	default:
		return strings.Join(parts, sep), sep, nil
	}
}

// nested compiles a member of a combinator, parenthesized when it joins
// several parts itself.
func (c *compiler) nested(s scope, e Expr) (string, error) {
	sql, op, err := c.group(s, e)
	if err != nil {
		return "", err
	}
	if op != "" {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

func (c *compiler) boolean(s scope, b Bool) (string, string, error) {
	if b.Op == NotOp {
		if len(b.Exprs) != 1 {
			return "", "", strata.NewCompilationError(KeyNot, errors.New("NOT takes exactly one condition"))
		}
		sql, err := c.where(s, b.Exprs[0])
		if err != nil {
			return "", "", err
		}
		return "NOT (" + sql + ")", "", nil
	}
	parts := make([]string, 0, len(b.Exprs))
	for _, sub := range b.Exprs {
		sql, err := c.nested(s, sub)
		if err != nil {
			return "", "", err
		}
		parts = append(parts, sql)
	}
	if b.Op == OrOp {
		return joinParts(parts, " OR ", "0=1")
	}
	return joinParts(parts, " AND ", "1=1")
}

func (c *compiler) whereMap(s scope, w Where) ([]string, error) {
	parts := make([]string, 0, len(w))
	for _, k := range w.sortedKeys() {
		v := w[k]
		switch k {
		case KeyAnd, KeyOr:
			op := AndOp
			if k == KeyOr {
				op = OrOp
			}
			sql, sep, err := c.boolean(s, Bool{Op: op, Exprs: exprList(v)})
			if err != nil {
				return nil, err
			}
			if sep != "" {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
		case KeyNot:
			sql, _, err := c.boolean(s, Bool{Op: NotOp, Exprs: []Expr{And(exprList(v)...)}})
			if err != nil {
				return nil, err
			}
			parts = append(parts, sql)
		default:
			sql, err := c.key(s, k, v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, sql)
		}
	}
	return parts, nil
}

// key compiles one entry of a Where map.
func (c *compiler) key(s scope, key string, v any) (string, error) {
	left, info, err := c.column(s, key)
	if err != nil {
		return "", err
	}
	ops, unknown := asOps(v)
	switch {
	case unknown != "" && c.isJSON(s, key):
		return c.jsonObject(s, key, v.(map[string]any))
	case unknown != "":
		return "", strata.NewCompilationError(key, fmt.Errorf("unknown operator %q", unknown))
	case ops == nil:
		return c.compare(s, key, left, info, OpEq, v)
	}
	parts := make([]string, 0, len(ops))
	for _, op := range ops.sorted() {
		sql, err := c.compare(s, key, left, info, op, ops[op])
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	sql, _, _ := joinParts(parts, " AND ", "1=1")
	return sql, nil
}

// jsonObject compiles {"meta": {"a": 1, "b": {"c": 2}}} into conditions on
// the JSON paths meta.a and meta.b.c.
func (c *compiler) jsonObject(s scope, key string, m map[string]any) (string, error) {
	w := make(Where, len(m))
	for k, v := range m {
		w[key+"."+k] = v
	}
	parts, err := c.whereMap(s, w)
	if err != nil {
		return "", err
	}
	sql, _, _ := joinParts(parts, " AND ", "1=1")
	return sql, nil
}

// isJSON reports whether key is a JSON attribute of the scope entity or a
// path inside one.
func (c *compiler) isJSON(s scope, key string) bool {
	name, _, _ := strings.Cut(key, ".")
	if _, ok := c.association(s.entity, name); ok {
		return false
	}
	attr, ok := s.entity.Attribute(name)
	return ok && attr.Info.Type == field.TypeJSON
}

// asOps returns v as operators, nil when v is a plain operand. For a
// string keyed map it also returns the first key that is not an operator.
func asOps(v any) (Ops, string) {
	switch v := v.(type) {
	case Ops:
		return v, ""
	case map[Op]any:
		return Ops(v), ""
	case map[string]any:
		ops := make(Ops, len(v))
		for _, k := range Where(v).sortedKeys() {
			if !knownOps[Op(k)] {
				return nil, k
			}
			ops[Op(k)] = v[k]
		}
		return ops, ""
	}
	return nil, ""
}

func (c *compiler) cmp(s scope, e Cmp) (string, error) {
	left, info, err := c.operand(s, e.Left)
	if err != nil {
		return "", err
	}
	key := left
	switch l := e.Left.(type) {
	case Col:
		key = l.Name
	case Path:
		key = string(l)
	}
	return c.compare(s, key, left, info, e.Op, e.Value)
}

// operand compiles the left side of a comparison and returns the type of
// the referenced attribute when there is one.
func (c *compiler) operand(s scope, e Expr) (string, *field.TypeInfo, error) {
	switch e := e.(type) {
	case Col:
		if e.Table == "" {
			return c.column(s, e.Name)
		}
		return c.d.QuoteIdentifier(e.Table) + "." + c.d.QuoteIdentifier(e.Name), nil, nil
	case Path:
		return c.column(s, string(e))
	default:
		sql, err := c.expr(s, e)
		return sql, nil, err
	}
}

// compare renders a single operator application.
func (c *compiler) compare(s scope, key, left string, info *field.TypeInfo, op Op, v any) (string, error) {
	caps := c.d.Capabilities()
	list := isList(v) && (info == nil || info.Type != field.TypeArray)
	switch op {
	case OpEq:
		switch {
		case isNil(v):
			return left + " IS NULL", nil
		case list:
			return c.compare(s, key, left, info, OpIn, v)
		}
		return c.binary(s, left, "=", v, info)
	case OpNe:
		switch {
		case isNil(v):
			return left + " IS NOT NULL", nil
		case list:
			return c.compare(s, key, left, info, OpNotIn, v)
		}
		return c.binary(s, left, "!=", v, info)
	case OpGt:
		return c.binary(s, left, ">", v, info)
	case OpGte:
		return c.binary(s, left, ">=", v, info)
	case OpLt:
		return c.binary(s, left, "<", v, info)
	case OpLte:
		return c.binary(s, left, "<=", v, info)
	case OpBetween, OpNotBetween:
		items, ok := listItems(v)
		if !ok || len(items) != 2 {
			return "", strata.NewCompilationError(key, fmt.Errorf("%s expects two values", op))
		}
		lo, err := c.value(s, items[0], info)
		if err != nil {
			return "", err
		}
		hi, err := c.value(s, items[1], info)
		if err != nil {
			return "", err
		}
		kw := " BETWEEN "
		if op == OpNotBetween {
			kw = " NOT BETWEEN "
		}
		return "(" + left + kw + lo + " AND " + hi + ")", nil
	case OpIn, OpNotIn:
		return c.in(s, key, left, info, op, v)
	case OpLike:
		return c.binary(s, left, "LIKE", v, info)
	case OpNotLike:
		return c.binary(s, left, "NOT LIKE", v, info)
	case OpILike, OpNotILike:
		kw := "LIKE"
		if op == OpNotILike {
			kw = "NOT LIKE"
		}
		if caps.ILike {
			return c.binary(s, left, strings.Replace(kw, "LIKE", "ILIKE", 1), v, info)
		}
		right, err := c.value(s, v, info)
		if err != nil {
			return "", err
		}
		return "LOWER(" + left + ") " + kw + " LOWER(" + right + ")", nil
	case OpIs, OpIsNot:
		return c.is(key, left, op, v)
	case OpStartsWith, OpEndsWith, OpSubstring:
		str, ok := v.(string)
		if !ok {
			return "", strata.NewCompilationError(key, fmt.Errorf("%s expects a string, got %T", op, v))
		}
		pattern, escaped := escapeLike(str)
		switch op {
		case OpStartsWith:
			pattern += "%"
		case OpEndsWith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		sql, err := c.binary(s, left, "LIKE", pattern, nil)
		if err != nil {
			return "", err
		}
		if escaped {
			sql += " ESCAPE " + c.d.StringLiteral(`\`)
		}
		return sql, nil
	case OpContains, OpOverlap:
		if !caps.Array {
			return "", strata.NewDialectCapabilityError(c.d.Name(), string(op)+" operator")
		}
		sym := "@>"
		if op == OpOverlap {
			sym = "&&"
		}
		return c.binary(s, left, sym, v, info)
	default:
		return "", strata.NewCompilationError(key, fmt.Errorf("unknown operator %q", op))
	}
}

func (c *compiler) binary(s scope, left, op string, v any, info *field.TypeInfo) (string, error) {
	right, err := c.value(s, v, info)
	if err != nil {
		return "", err
	}
	return left + " " + op + " " + right, nil
}

func (c *compiler) in(s scope, key, left string, info *field.TypeInfo, op Op, v any) (string, error) {
	kw := " IN "
	if op == OpNotIn {
		kw = " NOT IN "
	}
	if e, ok := v.(Expr); ok {
		sql, err := c.expr(s, e)
		if err != nil {
			return "", err
		}
		return left + kw + "(" + sql + ")", nil
	}
	items, ok := listItems(v)
	if !ok {
		return "", strata.NewCompilationError(key, fmt.Errorf("%s expects a list, got %T", op, v))
	}
	if len(items) == 0 {
		if op == OpNotIn {
			return "1=1", nil
		}
		return left + " IN (NULL)", nil
	}
	values := make([]string, len(items))
	for i, item := range items {
		sql, err := c.value(s, item, info)
		if err != nil {
			return "", err
		}
		values[i] = sql
	}
	return left + kw + "(" + strings.Join(values, ", ") + ")", nil
}

func (c *compiler) is(key, left string, op Op, v any) (string, error) {
	not := op == OpIsNot
	switch v := v.(type) {
	case nil:
		if not {
			return left + " IS NOT NULL", nil
		}
		return left + " IS NULL", nil
	case bool:
		if c.d.Capabilities().BoolLiteral == dialect.BoolInteger {
			if not {
				return left + " != " + c.d.BoolLiteral(v), nil
			}
			return left + " = " + c.d.BoolLiteral(v), nil
		}
		if not {
			return left + " IS NOT " + c.d.BoolLiteral(v), nil
		}
		return left + " IS " + c.d.BoolLiteral(v), nil
	default:
		return "", strata.NewCompilationError(key, fmt.Errorf("%s accepts only NULL, TRUE or FALSE, got %T", op, v))
	}
}

// value compiles an operand: an expression, or a value escaped or bound
// with the type of the compared attribute.
func (c *compiler) value(s scope, v any, info *field.TypeInfo) (string, error) {
	if e, ok := v.(Expr); ok {
		switch e.(type) {
		case Where, Bool, Cmp:
			sql, err := c.where(s, e)
			if err != nil {
				return "", err
			}
			return "(" + sql + ")", nil
		}
		return c.expr(s, e)
	}
	return c.v.value(v, info)
}

// expr compiles a value expression.
func (c *compiler) expr(s scope, e Expr) (string, error) {
	switch e := e.(type) {
	case Lit:
		return c.v.value(e.Value, nil)
	case Raw:
		return string(e), nil
	case Col, Path:
		sql, _, err := c.operand(s, e)
		return sql, err
	case Func:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			sql, err := c.expr(s, a)
			if err != nil {
				return "", err
			}
			args[i] = sql
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")", nil
	case Cast:
		sql, err := c.expr(s, e.Expr)
		if err != nil {
			return "", err
		}
		return "CAST(" + sql + " AS " + e.Type + ")", nil
	case Where, Bool, Cmp:
		sql, err := c.where(s, e)
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	case nil:
		return "NULL", nil
	default:
		return "", strata.NewCompilationError("", fmt.Errorf("unsupported expression %T", e))
	}
}

// column resolves a key to a column reference:
//
//	name           attribute (or column) of the scope entity
//	a.b.attr       attribute reached through the association path a.b
//	json.x.y       path inside the JSON attribute json
//	table.column   anything else
func (c *compiler) column(s scope, key string) (string, *field.TypeInfo, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return c.local(s, key)
	}
	if a, ok := c.association(s.entity, parts[0]); ok {
		path, err := c.graph.ResolvePath(a.Target, parts[1:len(parts)-1])
		if err != nil {
			return "", nil, strata.NewCompilationError(key, err)
		}
		target := a.Target
		aliases := []string{a.As}
		for _, p := range path {
			aliases = append(aliases, p.As)
			target = p.Target
		}
		name := parts[len(parts)-1]
		attr, ok := target.Attribute(name)
		if !ok {
			return "", nil, strata.NewCompilationError(key, fmt.Errorf("%s has no attribute %q", target.Name, name))
		}
		alias := strings.Join(aliases, "->")
		if s.alias != "" {
			alias = s.alias + "->" + alias
		}
		if s.byAttr && s.inner[alias] {
			// Joined inside the inner query and projected as "alias.attr".
			col := strings.ReplaceAll(alias, "->", ".") + "." + attr.Name
			return s.qualifier + "." + c.d.QuoteIdentifier(col), attr.Info, nil
		}
		return c.d.QuoteIdentifier(alias) + "." + c.d.QuoteIdentifier(attr.Column()), attr.Info, nil
	}
	if attr, ok := s.entity.Attribute(parts[0]); ok && attr.Info.Type == field.TypeJSON {
		col, _, err := c.local(s, parts[0])
		if err != nil {
			return "", nil, err
		}
		return c.d.JSONExtract(col, parts[1:]), nil, nil
	}
	return QuoteIdentifiers(c.d, key), nil, nil
}

func (c *compiler) association(e *schema.Entity, alias string) (*schema.Association, bool) {
	if c.graph == nil {
		return nil, false
	}
	return c.graph.Resolve(e, alias)
}

// local resolves an attribute of the scope entity.
func (c *compiler) local(s scope, name string) (string, *field.TypeInfo, error) {
	col := name
	var info *field.TypeInfo
	if attr, ok := s.entity.Attribute(name); ok {
		info = attr.Info
		if !s.byAttr {
			col = attr.Column()
		}
	}
	if s.qualifier == "" {
		return c.d.QuoteIdentifier(col), info, nil
	}
	return s.qualifier + "." + c.d.QuoteIdentifier(col), info, nil
}

// isList reports whether v is a list operand. Byte slices are values.
func isList(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
}

func listItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	if !isList(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike escapes the LIKE wildcards of s and reports whether it did.
func escapeLike(s string) (string, bool) {
	if !strings.ContainsAny(s, `\%_`) {
		return s, false
	}
	return likeEscaper.Replace(s), true
}
