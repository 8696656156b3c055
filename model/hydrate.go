package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
)

// load is an include resolved for hydration.
type load struct {
	inc      *sqlgen.Include
	assoc    *schema.Association
	model    *Model
	alias    string
	path     string // output column prefix: "books.reviews"
	children []*load
}

// plan is the hydration plan of a query: the joined include trees folded
// from the rows and the separate includes loaded afterwards.
type plan struct {
	model    *Model
	joined   []*load
	separate []*load
	// nested tells whether rows must be deduplicated by primary key.
	nested bool
	slots  map[string]slot
}

// slot is where a column value goes.
type slot struct {
	load     *load // nil for the base entity
	junction bool
	attr     string
}

func incName(inc *sqlgen.Include) string {
	if inc.As != "" {
		return inc.As
	}
	return inc.Association
}

func (m *Model) plan(q *sqlgen.Query) (*plan, error) {
	p := &plan{model: m}
	loads, err := m.loads(m.entity, q.Include, nil)
	if err != nil {
		return nil, err
	}
	for _, l := range loads {
		if l.inc.Separate && l.assoc.ToMany() {
			p.separate = append(p.separate, l)
		} else {
			p.joined = append(p.joined, l)
		}
	}
	p.nested = len(p.joined) > 0
	return p, nil
}

func (m *Model) loads(e *schema.Entity, incs []*sqlgen.Include, parent *load) ([]*load, error) {
	out := make([]*load, 0, len(incs))
	for _, inc := range incs {
		if inc == nil {
			continue
		}
		a, err := m.client.graph.Association(e, incName(inc))
		if err != nil {
			return nil, err
		}
		l := &load{inc: inc, assoc: a, model: m.client.model(a.Target), alias: a.As, path: a.As}
		if parent != nil {
			l.path = parent.path + "." + a.As
		}
		if l.children, err = m.loads(a.Target, inc.Include, l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// classify maps an output column name to its slot. The longest include
// path prefixing the name owns it.
func (p *plan) classify(name string) slot {
	var best *load
	var visit func([]*load)
	visit = func(loads []*load) {
		for _, l := range loads {
			if strings.HasPrefix(name, l.path+".") && (best == nil || len(l.path) > len(best.path)) {
				best = l
			}
			visit(l.children)
		}
	}
	visit(p.joined)
	if best == nil {
		return slot{attr: name}
	}
	rest := name[len(best.path)+1:]
	if a := best.assoc; a.Kind == edge.KindBelongsToMany {
		if prefix := a.Through.Name + "."; strings.HasPrefix(rest, prefix) {
			return slot{load: best, junction: true, attr: rest[len(prefix):]}
		}
	}
	return slot{load: best, attr: rest}
}

// row holds the values of one record split by destination.
type row struct {
	base     map[string]any
	target   map[*load]map[string]any
	junction map[*load]map[string]any
}

func (p *plan) split(rec record) (*row, error) {
	if p.slots == nil {
		p.slots = make(map[string]slot, len(rec))
	}
	r := &row{
		base:     make(map[string]any),
		target:   make(map[*load]map[string]any),
		junction: make(map[*load]map[string]any),
	}
	loc := p.model.client.loc
	for name, raw := range rec {
		s, ok := p.slots[name]
		if !ok {
			s = p.classify(name)
			p.slots[name] = s
		}
		var (
			e   = p.model.entity
			dst = r.base
		)
		switch {
		case s.load != nil && s.junction:
			e = s.load.assoc.Through
			dst = r.junction[s.load]
			if dst == nil {
				dst = make(map[string]any)
				r.junction[s.load] = dst
			}
		case s.load != nil:
			e = s.load.assoc.Target
			dst = r.target[s.load]
			if dst == nil {
				dst = make(map[string]any)
				r.target[s.load] = dst
			}
		}
		a, ok := e.Attribute(s.attr)
		if !ok {
			// Expression columns keep the driver value.
			dst[s.attr] = raw
			continue
		}
		v, err := deserialize(a, raw, loc)
		if err != nil {
			return nil, err
		}
		dst[s.attr] = v
	}
	return r, nil
}

// fold turns flat rows into instances. Base and included instances are
// deduplicated by primary key, keeping the order they are first seen in.
func (p *plan) fold(recs []record) ([]*Instance, error) {
	var (
		out   = make([]*Instance, 0, len(recs))
		roots = make(map[string]*Instance)
		kids  = make(map[childKey]*Instance)
	)
	for _, rec := range recs {
		r, err := p.split(rec)
		if err != nil {
			return nil, err
		}
		var inst *Instance
		if p.nested {
			key, ok := keyOf(p.model.entity, r.base)
			if !ok {
				return nil, strata.NewCompilationError(p.model.entity.Name, errors.New("primary key missing from rows with includes"))
			}
			inst = roots[key]
			if inst == nil {
				inst = p.model.fromRow(r.base)
				roots[key] = inst
				out = append(out, inst)
			}
		} else {
			inst = p.model.fromRow(r.base)
			out = append(out, inst)
		}
		for _, l := range p.joined {
			attach(inst, l, r, kids)
		}
	}
	return out, nil
}

type childKey struct {
	parent *Instance
	alias  string
	key    string
}

// attach adds the included instance of l found in r to parent. A row
// whose target key is NULL matched nothing, which still marks the
// association loaded.
func attach(parent *Instance, l *load, r *row, kids map[childKey]*Instance) {
	parent.markLoaded(l.alias)
	vals := r.target[l]
	key, ok := keyOf(l.assoc.Target, vals)
	if !ok {
		return
	}
	ck := childKey{parent: parent, alias: l.alias, key: key}
	child := kids[ck]
	if child == nil {
		child = l.model.fromRow(vals)
		if jv := r.junction[l]; len(jv) > 0 {
			through := l.model.client.model(l.assoc.Through)
			child.included[l.assoc.Through.Name] = []*Instance{through.fromRow(jv)}
		}
		kids[ck] = child
		parent.included[l.alias] = append(parent.included[l.alias], child)
	}
	for _, c := range l.children {
		attach(child, c, r, kids)
	}
}

// keyOf returns the identity of a row of e: its primary key values. ok is
// false when the key was not selected or is NULL.
func keyOf(e *schema.Entity, vals map[string]any) (string, bool) {
	if len(vals) == 0 || len(e.PrimaryKeys) == 0 {
		return "", false
	}
	parts := make([]string, len(e.PrimaryKeys))
	for i, pk := range e.PrimaryKeys {
		v, ok := vals[pk.Name]
		if !ok || isNil(v) {
			return "", false
		}
		parts[i] = keyString(v)
	}
	return strings.Join(parts, "\x00"), true
}

func keyString(v any) string {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

// fromRow returns the persisted instance of values read from the
// database. Rows of paranoid entities with a deleted-at value are soft
// deleted.
func (m *Model) fromRow(values map[string]any) *Instance {
	state := StatePersisted
	if e := m.entity; e.Paranoid() && !isNil(values[e.DeletedAt]) {
		state = StateSoftDeleted
	}
	return newInstance(m, values, state)
}
