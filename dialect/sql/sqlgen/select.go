package sqlgen

import (
	"errors"
	"strconv"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
)

// column is one projected column.
type column struct {
	sql string
	// name is the output name the column is referenced by.
	name string
	// alias renders AS name after the expression.
	alias bool
	// include columns are always aliased, and subject to minification.
	include bool
}

// Select compiles q over e into a SELECT statement.
//
// When q paginates a join that can multiply base rows, the base entity is
// selected and paginated in a subquery and the multiplying joins are
// applied to its result:
//
//	SELECT ... FROM (SELECT ... FROM "authors" AS "Author" ... LIMIT 2) AS "Author"
//	LEFT OUTER JOIN "books" AS "books" ON "Author"."id" = "books"."author_id";
func (g *Generator) Select(e *schema.Entity, q *Query) (Statement, error) {
	if q == nil {
		q = &Query{}
	}
	st := g.newState()
	nodes, err := st.plan(e, q.Include, nil)
	if err != nil {
		return Statement{}, err
	}
	var sql string
	if useSubQuery(q, joined(nodes)) {
		sql, err = st.nested(e, q, nodes)
	} else {
		sql, err = st.flat(e, q, nodes)
	}
	if err != nil {
		return Statement{}, err
	}
	return st.finish(sql), nil
}

func (st *state) rootScope(e *schema.Entity) scope {
	return scope{entity: e, qualifier: st.quote(e.Name)}
}

// flat compiles a query without subquery.
func (st *state) flat(e *schema.Entity, q *Query, nodes []*node) (string, error) {
	root := st.rootScope(e)
	loaded := joined(nodes)
	var keys []string
	if len(nodes) > 0 {
		keys = append(keys, e.PrimaryKeyNames()...)
	}
	keys = append(keys, separateKeys(nodes)...)
	cols, err := st.rootColumns(root, q.Attributes, keys)
	if err != nil {
		return "", err
	}
	var joins []string
	for _, n := range loaded {
		sql, err := st.join(root, n)
		if err != nil {
			return "", err
		}
		joins = append(joins, sql)
	}
	var incCols []column
	err = walkErr(loaded, func(n *node) error {
		c, err := st.includeColumns(n)
		incCols = append(incCols, c...)
		return err
	})
	if err != nil {
		return "", err
	}
	var where []string
	if paranoid(q.Paranoid, e) {
		where = append(where, st.ref(root, e.DeletedAt)+" IS NULL")
	}
	conds, err := st.conditions(root, []Expr{q.Where})
	if err != nil {
		return "", err
	}
	where = append(where, conds...)
	order := q.Order
	if len(order) == 0 {
		order = st.fallbackOrder(e, q)
	}
	orderBy, err := st.orderBy(root, order)
	if err != nil {
		return "", err
	}
	tail, err := st.groupHaving(root, q)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(st.selectKeyword(q))
	b.WriteString(st.projection(append(cols, incCols...), true))
	b.WriteString(" FROM ")
	b.WriteString(st.tableAs(e, e.Name))
	for _, j := range joins {
		b.WriteString(" " + j)
	}
	writeWhere(&b, where)
	b.WriteString(tail)
	writeOrder(&b, orderBy)
	b.WriteString(st.d.LimitOffset(q.Limit, q.Offset))
	b.WriteString(st.lock(q))
	return b.String(), nil
}

// nested compiles a query whose base entity is paginated in a subquery.
func (st *state) nested(e *schema.Entity, q *Query, nodes []*node) (string, error) {
	loaded := joined(nodes)
	split(loaded)
	var (
		inner, outer []*node
		filters      []*node
		innerAliases = make(map[string]bool)
		outerAliases = make(map[string]bool)
	)
	for _, n := range loaded {
		switch {
		case n.inner:
			inner = append(inner, n)
		default:
			outer = append(outer, n)
			if n.filter {
				filters = append(filters, n)
			}
		}
	}
	walk(loaded, func(n *node) {
		if n.inner {
			innerAliases[n.alias] = true
		} else {
			outerAliases[n.alias] = true
		}
	})
	root := st.rootScope(e)
	outerRoot := scope{entity: e, qualifier: st.quote(e.Name), byAttr: true, inner: innerAliases}

	// Keys the outer query needs from the subquery.
	keys := append([]string(nil), e.PrimaryKeyNames()...)
	for _, n := range outer {
		if n.assoc.Kind == edge.KindBelongsTo {
			keys = append(keys, n.assoc.ForeignKey)
		} else {
			keys = append(keys, n.assoc.SourceKey)
		}
	}
	keys = append(keys, separateKeys(nodes)...)
	for _, t := range q.Order {
		if t.Expr == nil && len(t.Path) == 0 {
			if _, ok := e.Attribute(t.Attr); ok {
				keys = append(keys, t.Attr)
			}
		}
	}
	cols, err := st.rootColumns(root, q.Attributes, keys)
	if err != nil {
		return "", err
	}
	var innerCols, outerCols []column
	for _, c := range cols {
		if c.name == "" {
			return "", strata.NewCompilationError("attributes", errors.New("expression attribute needs an alias in a subquery"))
		}
		outerCols = append(outerCols, column{sql: outerRoot.qualifier + "." + st.quote(c.name)})
	}
	err = walkErr(inner, func(n *node) error {
		cs, err := st.includeColumns(n)
		innerCols = append(innerCols, cs...)
		for _, c := range cs {
			outerCols = append(outerCols, column{sql: outerRoot.qualifier + "." + st.quote(c.name), name: c.name, include: true})
		}
		return err
	})
	if err != nil {
		return "", err
	}
	err = walkErr(outer, func(n *node) error {
		c, err := st.includeColumns(n)
		outerCols = append(outerCols, c...)
		return err
	})
	if err != nil {
		return "", err
	}

	// Conditions referencing associations joined outside stay outside.
	var innerWhere, outerWhere []Expr
	for _, c := range conjuncts(q.Where) {
		if st.refersTo(e, c, outerAliases) {
			outerWhere = append(outerWhere, c)
		} else {
			innerWhere = append(innerWhere, c)
		}
	}
	var where []string
	if paranoid(q.Paranoid, e) {
		where = append(where, st.ref(root, e.DeletedAt)+" IS NULL")
	}
	conds, err := st.conditions(root, innerWhere)
	if err != nil {
		return "", err
	}
	where = append(where, conds...)
	for _, n := range filters {
		sql, err := st.exists(root, n)
		if err != nil {
			return "", err
		}
		where = append(where, sql)
	}
	outerConds, err := st.conditions(outerRoot, outerWhere)
	if err != nil {
		return "", err
	}

	groupOuter := st.refersTo(e, q.Having, outerAliases)
	for _, k := range q.Group {
		groupOuter = groupOuter || outerAliases[st.refAlias(e, k)]
	}
	var innerTail, outerTail string
	if groupOuter {
		outerTail, err = st.groupHaving(outerRoot, q)
	} else {
		innerTail, err = st.groupHaving(root, q)
	}
	if err != nil {
		return "", err
	}

	var innerOrder, outerOrder []OrderTerm
	for i, t := range q.Order {
		switch {
		case t.Expr != nil:
			// Projected by the subquery under a generated name, so the outer
			// query orders by the same value.
			sql, err := st.expr(root, t.Expr)
			if err != nil {
				return "", err
			}
			name := "__order" + strconv.Itoa(i)
			innerCols = append(innerCols, column{sql: sql, name: name, alias: true})
			innerOrder = append(innerOrder, t)
			outerOrder = append(outerOrder, OrderTerm{Expr: Raw(outerRoot.qualifier + "." + st.quote(name)), Desc: t.Desc, Nulls: t.Nulls})
		case len(t.Path) > 0:
			// Paths joined inside the subquery also order its page.
			key := strings.Join(append(append([]string(nil), t.Path...), t.Attr), ".")
			if innerAliases[st.refAlias(e, key)] {
				innerOrder = append(innerOrder, t)
			}
			outerOrder = append(outerOrder, t)
		default:
			innerOrder = append(innerOrder, t)
			outerOrder = append(outerOrder, t)
		}
	}
	if len(q.Order) == 0 {
		innerOrder = st.fallbackOrder(e, q)
		outerOrder = innerOrder
	}
	innerOrderBy, err := st.orderBy(root, innerOrder)
	if err != nil {
		return "", err
	}
	outerOrderBy, err := st.orderBy(outerRoot, outerOrder)
	if err != nil {
		return "", err
	}

	var in strings.Builder
	in.WriteString(st.selectKeyword(q))
	in.WriteString(st.projection(append(cols, innerCols...), false))
	in.WriteString(" FROM ")
	in.WriteString(st.tableAs(e, e.Name))
	for _, n := range inner {
		sql, err := st.join(root, n)
		if err != nil {
			return "", err
		}
		in.WriteString(" " + sql)
	}
	writeWhere(&in, where)
	in.WriteString(innerTail)
	writeOrder(&in, innerOrderBy)
	in.WriteString(st.d.LimitOffset(q.Limit, q.Offset))

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(st.projection(outerCols, true))
	b.WriteString(" FROM (" + in.String() + ")" + st.as(e.Name))
	for _, n := range outer {
		sql, err := st.join(outerRoot, n)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + sql)
	}
	writeWhere(&b, outerConds)
	b.WriteString(outerTail)
	writeOrder(&b, outerOrderBy)
	b.WriteString(st.lock(q))
	return b.String(), nil
}

// Count compiles a COUNT over the rows q matches. Pagination and ordering
// are ignored; joined includes count distinct primary keys.
func (g *Generator) Count(e *schema.Entity, q *Query) (Statement, error) {
	if q == nil {
		q = &Query{}
	}
	st := g.newState()
	nodes, err := st.plan(e, q.Include, nil)
	if err != nil {
		return Statement{}, err
	}
	loaded := joined(nodes)
	root := st.rootScope(e)
	count := "count(*)"
	if pk := e.PrimaryKey(); pk != nil && len(loaded) > 0 {
		count = "count(DISTINCT(" + st.ref(root, pk.Name) + "))"
	}
	cols := make([]string, 0, len(q.Group)+1)
	for _, k := range q.Group {
		sql, err := st.refName(root, k)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, sql)
	}
	cols = append(cols, count+" AS "+st.quote("count"))
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(cols, ", ") + " FROM " + st.tableAs(e, e.Name))
	for _, n := range loaded {
		sql, err := st.join(root, n)
		if err != nil {
			return Statement{}, err
		}
		b.WriteString(" " + sql)
	}
	var where []string
	if paranoid(q.Paranoid, e) {
		where = append(where, st.ref(root, e.DeletedAt)+" IS NULL")
	}
	conds, err := st.conditions(root, []Expr{q.Where})
	if err != nil {
		return Statement{}, err
	}
	writeWhere(&b, append(where, conds...))
	tail, err := st.groupHaving(root, q)
	if err != nil {
		return Statement{}, err
	}
	b.WriteString(tail)
	return st.finish(b.String()), nil
}

func (st *state) selectKeyword(q *Query) string {
	if q.Distinct {
		return "SELECT DISTINCT "
	}
	return "SELECT "
}

// as renders a relation alias.
func (st *state) as(alias string) string {
	if st.d.Capabilities().TableAliasAs {
		return " AS " + st.quote(alias)
	}
	return " " + st.quote(alias)
}

// rootColumns returns the projection of the base entity: attrs, or every
// attribute when attrs is nil, completed with keys.
func (st *state) rootColumns(s scope, attrs []Attribute, keys []string) ([]column, error) {
	if attrs == nil {
		attrs = Attrs(s.entity.AttributeNames()...)
	}
	attrs = withKeys(attrs, keys)
	cols := make([]column, 0, len(attrs))
	for _, a := range attrs {
		c, err := st.attribute(s, a)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// attribute compiles one projected attribute.
func (st *state) attribute(s scope, a Attribute) (column, error) {
	switch {
	case a.Expr != nil:
		sql, err := st.expr(s, a.Expr)
		if err != nil {
			return column{}, err
		}
		return column{sql: sql, name: a.As, alias: a.As != ""}, nil
	case a.Name == "":
		return column{}, strata.NewCompilationError("attributes", errors.New("attribute without name or expression"))
	case strings.Contains(a.Name, "."):
		sql, _, err := st.column(s, a.Name)
		if err != nil {
			return column{}, err
		}
		name := a.As
		if name == "" {
			name = a.Name
		}
		return column{sql: sql, name: name, alias: true}, nil
	}
	name := a.As
	if name == "" {
		name = a.Name
	}
	return column{sql: st.ref(s, a.Name), name: name, alias: name != s.entity.Column(a.Name)}, nil
}

// withKeys appends the keys missing from attrs.
func withKeys(attrs []Attribute, keys []string) []Attribute {
	if len(keys) == 0 {
		return attrs
	}
	have := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a.Expr == nil {
			have[a.Name] = true
		}
	}
	out := append([]Attribute(nil), attrs...)
	for _, k := range keys {
		if !have[k] {
			have[k] = true
			out = append(out, Attribute{Name: k})
		}
	}
	return out
}

// separateKeys returns the base attributes separate includes are keyed by.
func separateKeys(nodes []*node) []string {
	var keys []string
	for _, n := range nodes {
		if n.separate() {
			keys = append(keys, n.assoc.SourceKey)
		}
	}
	return keys
}

func (st *state) projection(cols []column, minify bool) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		switch {
		case c.include && minify:
			parts[i] = c.sql + " AS " + st.quote(st.columnAlias(c.name))
		case c.include || c.alias:
			parts[i] = c.sql + " AS " + st.quote(c.name)
		default:
			parts[i] = c.sql
		}
	}
	return strings.Join(parts, ", ")
}

// conditions compiles the members of an AND.
func (st *state) conditions(s scope, exprs []Expr) ([]string, error) {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if w, ok := e.(Where); ok && len(w) == 0 {
			continue
		}
		sql, err := st.conjunct(s, e)
		if err != nil {
			return nil, err
		}
		parts = append(parts, sql)
	}
	return parts, nil
}

// refAlias returns the include alias a dotted key goes through, or the
// empty string when key is not an association path.
func (st *state) refAlias(e *schema.Entity, key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 || st.graph == nil {
		return ""
	}
	path, err := st.graph.ResolvePath(e, parts[:len(parts)-1])
	if err != nil {
		return ""
	}
	aliases := make([]string, len(path))
	for i, a := range path {
		aliases[i] = a.As
	}
	return strings.Join(aliases, "->")
}

// refersTo reports whether x references one of the aliases.
func (st *state) refersTo(e *schema.Entity, x Expr, aliases map[string]bool) bool {
	if x == nil || len(aliases) == 0 {
		return false
	}
	for _, r := range references(x) {
		if aliases[st.refAlias(e, r)] {
			return true
		}
	}
	return false
}

// refName renders a GROUP BY or ORDER BY key: an attribute of the scope,
// an association path, or a projected alias.
func (st *state) refName(s scope, name string) (string, error) {
	if _, ok := s.entity.Attribute(name); ok {
		return st.ref(s, name), nil
	}
	if strings.Contains(name, ".") {
		sql, _, err := st.column(s, name)
		return sql, err
	}
	return st.quote(name), nil
}

func (st *state) groupHaving(s scope, q *Query) (string, error) {
	var b strings.Builder
	if len(q.Group) > 0 {
		keys := make([]string, len(q.Group))
		for i, k := range q.Group {
			sql, err := st.refName(s, k)
			if err != nil {
				return "", err
			}
			keys[i] = sql
		}
		b.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}
	if q.Having != nil {
		sql, err := st.where(s, q.Having)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING " + sql)
	}
	return b.String(), nil
}

func (st *state) orderBy(s scope, terms []OrderTerm) ([]string, error) {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		var (
			sql string
			err error
		)
		switch {
		case t.Expr != nil:
			sql, err = st.expr(s, t.Expr)
		case len(t.Path) > 0:
			key := strings.Join(append(append([]string(nil), t.Path...), t.Attr), ".")
			sql, _, err = st.column(s, key)
		default:
			sql, err = st.refName(s, t.Attr)
		}
		if err != nil {
			return nil, err
		}
		if t.Desc {
			sql += " DESC"
		} else {
			sql += " ASC"
		}
		if t.Nulls != "" {
			sql += " NULLS " + t.Nulls
		}
		out = append(out, sql)
	}
	return out, nil
}

// fallbackOrder orders paginated queries on dialects whose OFFSET ... FETCH
// syntax needs an ORDER BY.
func (st *state) fallbackOrder(e *schema.Entity, q *Query) []OrderTerm {
	caps := st.d.Capabilities()
	if caps.Limit != dialect.LimitOffsetFetch || (q.Limit == nil && q.Offset == 0) {
		return nil
	}
	if len(e.PrimaryKeys) == 0 {
		from := ""
		if caps.SelectFrom != "" {
			from = " FROM " + caps.SelectFrom
		}
		return []OrderTerm{{Expr: Raw("(SELECT NULL" + from + ")")}}
	}
	terms := make([]OrderTerm, len(e.PrimaryKeys))
	for i, pk := range e.PrimaryKeys {
		terms[i] = Asc(pk.Name)
	}
	return terms
}

func (st *state) lock(q *Query) string {
	caps := st.d.Capabilities()
	if !caps.Lock {
		return ""
	}
	var clause string
	switch q.Lock {
	case LockUpdate:
		clause = " FOR UPDATE"
	case LockShare:
		if caps.ForShare == "" {
			return ""
		}
		clause = " " + caps.ForShare
	default:
		return ""
	}
	if q.SkipLocked && caps.SkipLocked && strings.HasPrefix(clause, " FOR ") {
		clause += " SKIP LOCKED"
	}
	return clause
}

func writeWhere(b *strings.Builder, parts []string) {
	if len(parts) > 0 {
		b.WriteString(" WHERE " + strings.Join(parts, " AND "))
	}
}

func writeOrder(b *strings.Builder, parts []string) {
	if len(parts) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
}

func walkErr(nodes []*node, fn func(*node) error) error {
	for _, n := range nodes {
		if err := fn(n); err != nil {
			return err
		}
		if err := walkErr(n.children, fn); err != nil {
			return err
		}
	}
	return nil
}
