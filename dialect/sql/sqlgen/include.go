package sqlgen

import (
	"errors"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
)

// node is an include resolved against the graph.
type node struct {
	inc      *Include
	assoc    *schema.Association
	parent   *node
	alias    string
	children []*node
	// inner marks nodes joined inside the paginated subquery; filter marks
	// required top-level nodes restricting it through EXISTS.
	inner  bool
	filter bool
}

// separate reports whether the node is loaded by its own query. Only
// top-level to-many includes can be.
func (n *node) separate() bool {
	return n.inc.Separate && n.parent == nil && n.assoc.ToMany()
}

// path returns the prefix of the node's output columns: "books.reviews".
func (n *node) path() string {
	return strings.ReplaceAll(n.alias, "->", ".")
}

// plan resolves includes of e.
func (st *state) plan(e *schema.Entity, includes []*Include, parent *node) ([]*node, error) {
	nodes := make([]*node, 0, len(includes))
	seen := make(map[string]bool, len(includes))
	for _, inc := range includes {
		if inc == nil {
			continue
		}
		if st.graph == nil {
			return nil, strata.NewAssociationError(e.Name, inc.name(), strata.ReasonMissing)
		}
		a, err := st.graph.Association(e, inc.name())
		if err != nil {
			return nil, err
		}
		n := &node{inc: inc, assoc: a, parent: parent, alias: a.As}
		if parent != nil {
			n.alias = parent.alias + "->" + a.As
		}
		if seen[n.alias] {
			return nil, strata.NewCompilationError(n.alias, errors.New("association included twice"))
		}
		seen[n.alias] = true
		if n.children, err = st.plan(a.Target, inc.Include, n); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// joined returns the nodes loaded by the main query.
func joined(nodes []*node) []*node {
	out := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		if !n.separate() {
			out = append(out, n)
		}
	}
	return out
}

// walk calls fn for every node of the trees in pre-order.
func walk(nodes []*node, fn func(*node)) {
	for _, n := range nodes {
		fn(n)
		walk(n.children, fn)
	}
}

// multiplies reports whether a to-many association is joined in the tree.
func multiplies(n *node) bool {
	if n.assoc.ToMany() {
		return true
	}
	for _, c := range n.children {
		if multiplies(c) {
			return true
		}
	}
	return false
}

// useSubQuery decides whether the base entity is paginated in a subquery:
// a limit combined with a joined to-many association, or with any include
// filtered by a where.
func useSubQuery(q *Query, nodes []*node) bool {
	if q.SubQuery != nil {
		return *q.SubQuery
	}
	if q.Limit == nil {
		return false
	}
	sub := false
	walk(nodes, func(n *node) {
		sub = sub || n.assoc.ToMany() || n.inc.Where != nil
	})
	return sub
}

// split marks the nodes joined inside the subquery. Required trees that
// never multiply rows are joined inside; required trees that do filter the
// subquery instead.
func split(nodes []*node) {
	for _, n := range nodes {
		if !n.inc.required() {
			continue
		}
		if multiplies(n) {
			n.filter = true
			continue
		}
		walk([]*node{n}, func(n *node) { n.inner = true })
	}
}

func (st *state) nodeScope(n *node) scope {
	return scope{entity: n.assoc.Target, qualifier: st.quote(n.alias), alias: n.alias}
}

func (st *state) junctionScope(n *node) scope {
	alias := n.alias + "->" + n.assoc.Through.Name
	return scope{entity: n.assoc.Through, qualifier: st.quote(alias), alias: alias}
}

// ref renders an attribute of the scope entity.
func (st *state) ref(s scope, name string) string {
	sql, _, _ := st.local(s, name)
	return sql
}

// target renders the joined relation of n. Belongs-to-many targets are
// joined with their junction in a parenthesized join.
func (st *state) target(n *node) (string, error) {
	a := n.assoc
	t := st.tableAs(a.Target, n.alias)
	if a.Kind != edge.KindBelongsToMany {
		return t, nil
	}
	js := st.junctionScope(n)
	on := st.ref(st.nodeScope(n), a.TargetKey) + " = " + st.ref(js, a.OtherKey)
	if th := n.inc.Through; th != nil && th.Where != nil {
		w, err := st.conjunct(js, th.Where)
		if err != nil {
			return "", err
		}
		on += " AND " + w
	}
	return "( " + st.tableAs(a.Through, js.alias) + " INNER JOIN " + t + " ON " + on + ")", nil
}

// on renders the join predicate of n against its parent.
func (st *state) on(parent scope, n *node) (string, error) {
	a := n.assoc
	ns := st.nodeScope(n)
	var cond string
	switch a.Kind {
	case edge.KindBelongsTo:
		cond = st.ref(parent, a.ForeignKey) + " = " + st.ref(ns, a.TargetKey)
	case edge.KindBelongsToMany:
		cond = st.ref(parent, a.SourceKey) + " = " + st.ref(st.junctionScope(n), a.ForeignKey)
	default:
		cond = st.ref(parent, a.SourceKey) + " = " + st.ref(ns, a.ForeignKey)
	}
	parts := []string{cond}
	if paranoid(n.inc.Paranoid, a.Target) {
		parts = append(parts, st.ref(ns, a.Target.DeletedAt)+" IS NULL")
	}
	if n.inc.Where != nil {
		w, err := st.conjunct(ns, n.inc.Where)
		if err != nil {
			return "", err
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, " AND "), nil
}

// join renders the join of n and of its subtree. A required child under an
// optional parent wraps the parent join body in parentheses so that the
// child does not turn the parent join into an inner one.
func (st *state) join(parent scope, n *node) (string, error) {
	kw := "LEFT OUTER JOIN "
	if n.inc.required() {
		kw = "INNER JOIN "
	}
	t, err := st.target(n)
	if err != nil {
		return "", err
	}
	on, err := st.on(parent, n)
	if err != nil {
		return "", err
	}
	ns := st.nodeScope(n)
	wrap := false
	children := make([]string, 0, len(n.children))
	for _, c := range n.children {
		sql, err := st.join(ns, c)
		if err != nil {
			return "", err
		}
		wrap = wrap || (c.inc.required() && !n.inc.required())
		children = append(children, sql)
	}
	if len(children) == 0 {
		return kw + t + " ON " + on, nil
	}
	if wrap {
		return kw + "(" + t + " " + strings.Join(children, " ") + ") ON " + on, nil
	}
	return kw + t + " ON " + on + " " + strings.Join(children, " "), nil
}

// exists renders the EXISTS filter of a required to-many node, with the
// required part of its subtree inner joined.
func (st *state) exists(parent scope, n *node) (string, error) {
	t, err := st.target(n)
	if err != nil {
		return "", err
	}
	on, err := st.on(parent, n)
	if err != nil {
		return "", err
	}
	joins, err := st.requiredJoins(n)
	if err != nil {
		return "", err
	}
	return "EXISTS (SELECT 1 FROM " + t + joins + " WHERE " + on + ")", nil
}

func (st *state) requiredJoins(n *node) (string, error) {
	var b strings.Builder
	ns := st.nodeScope(n)
	for _, c := range n.children {
		if !c.inc.required() {
			continue
		}
		t, err := st.target(c)
		if err != nil {
			return "", err
		}
		on, err := st.on(ns, c)
		if err != nil {
			return "", err
		}
		rest, err := st.requiredJoins(c)
		if err != nil {
			return "", err
		}
		b.WriteString(" INNER JOIN " + t + " ON " + on + rest)
	}
	return b.String(), nil
}

// includeColumns returns the projected columns of n, named "path.attr".
func (st *state) includeColumns(n *node) ([]column, error) {
	ns := st.nodeScope(n)
	target := n.assoc.Target
	attrs := n.inc.Attributes
	if attrs == nil {
		attrs = Attrs(target.AttributeNames()...)
	} else if len(attrs) > 0 {
		attrs = withKeys(attrs, target.PrimaryKeyNames())
	}
	cols := make([]column, 0, len(attrs))
	for _, a := range attrs {
		c, err := st.attribute(ns, a)
		if err != nil {
			return nil, err
		}
		c.name = n.path() + "." + c.name
		c.include = true
		cols = append(cols, c)
	}
	if n.assoc.Kind == edge.KindBelongsToMany {
		through := n.assoc.Through
		names := through.AttributeNames()
		if th := n.inc.Through; th != nil && th.Attributes != nil {
			names = th.Attributes
		}
		js := st.junctionScope(n)
		for _, name := range names {
			cols = append(cols, column{
				sql:     st.ref(js, name),
				name:    n.path() + "." + through.Name + "." + name,
				include: true,
			})
		}
	}
	return cols, nil
}

// paranoid reports whether soft-deleted rows of e are excluded.
func paranoid(flag *bool, e *schema.Entity) bool {
	return e.Paranoid() && (flag == nil || *flag)
}
