package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Association is a resolved association between two entities. Key fields
// hold attribute names, not column names.
type Association struct {
	Kind   edge.Kind
	As     string
	Source *Entity
	Target *Entity
	// ForeignKey lives on Source (BelongsTo), on Target (HasOne, HasMany)
	// or on Through (BelongsToMany, pointing at Source).
	ForeignKey string
	SourceKey  string
	TargetKey  string
	// Through and OtherKey are set for BelongsToMany only.
	Through  *Entity
	OtherKey string
	Required bool
	OnDelete string
	OnUpdate string
}

// ToMany reports whether the association can match several target rows
// per source row.
func (a *Association) ToMany() bool {
	return a.Kind.ToMany()
}

// String returns a readable description of the association.
func (a *Association) String() string {
	return fmt.Sprintf("%s %s %s as %q", a.Source.Name, a.Kind, a.Target.Name, a.As)
}

// Graph is the association registry: a set of entities whose associations
// are resolved against each other. A Graph is immutable and safe for
// concurrent use.
type Graph struct {
	entities map[string]*Entity
	order    []*Entity
	// added holds the foreign keys created while resolving.
	added map[*field.Descriptor]bool
}

// NewGraph resolves the associations declared on the given entities.
// Entities are copied; missing foreign-key attributes are added to the
// copies and undeclared junction entities are synthesized.
func NewGraph(entities ...*Entity) (*Graph, error) {
	g := &Graph{
		entities: make(map[string]*Entity, len(entities)),
		added:    make(map[*field.Descriptor]bool),
	}
	for _, e := range entities {
		if _, ok := g.entities[e.Name]; ok {
			return nil, strata.NewDefinitionError(e.Name, "", errors.New("entity defined twice"))
		}
		c := e.clone()
		g.entities[c.Name] = c
		g.order = append(g.order, c)
	}
	// Junctions synthesized in the loop are appended to g.order; their
	// edges are empty so ranging over the growing slice is safe.
	for i := 0; i < len(g.order); i++ {
		e := g.order[i]
		for _, d := range e.Edges {
			a, err := g.resolve(e, d)
			if err != nil {
				return nil, err
			}
			for _, other := range e.Associations {
				if other.As == a.As {
					return nil, strata.NewAssociationError(e.Name, a.As, strata.ReasonCollision)
				}
			}
			e.Associations = append(e.Associations, a)
		}
	}
	return g, nil
}

// MustNewGraph is like NewGraph but panics on error.
func MustNewGraph(entities ...*Entity) *Graph {
	g, err := NewGraph(entities...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) resolve(e *Entity, d *edge.Descriptor) (*Association, error) {
	target, ok := g.entities[d.Target]
	if !ok {
		return nil, strata.NewDefinitionError(e.Name, d.As, fmt.Errorf("unknown target entity %q", d.Target))
	}
	a := &Association{
		Kind:     d.Kind,
		As:       d.As,
		Source:   e,
		Target:   target,
		Required: d.Required,
		OnDelete: d.OnDelete,
		OnUpdate: d.OnUpdate,
	}
	if a.As == "" {
		if d.Kind.ToMany() {
			a.As = inflect.Pluralize(target.Name)
		} else {
			a.As = inflect.Singularize(target.Name)
		}
	}
	if a.OnDelete == "" {
		a.OnDelete = edge.SetNull
		if d.Required || d.Kind == edge.KindBelongsToMany {
			a.OnDelete = edge.Cascade
		}
	}
	if a.OnUpdate == "" {
		a.OnUpdate = edge.Cascade
	}
	switch d.Kind {
	case edge.KindBelongsTo:
		tk, err := keyAttribute(target, d.TargetKey)
		if err != nil {
			return nil, err
		}
		a.TargetKey = tk.Name
		a.ForeignKey = d.ForeignKey
		if a.ForeignKey == "" {
			a.ForeignKey = inflect.Underscore(a.As) + "_" + inflect.Underscore(tk.Name)
		}
		if err := g.ensureForeignKey(e, a.ForeignKey, tk, !d.Required, false); err != nil {
			return nil, err
		}
	case edge.KindHasOne, edge.KindHasMany:
		sk, err := keyAttribute(e, d.SourceKey)
		if err != nil {
			return nil, err
		}
		a.SourceKey = sk.Name
		a.ForeignKey = d.ForeignKey
		if a.ForeignKey == "" {
			a.ForeignKey = defaultForeignKey(e, sk)
		}
		if err := g.ensureForeignKey(target, a.ForeignKey, sk, !d.Required, d.Kind == edge.KindHasOne); err != nil {
			return nil, err
		}
	case edge.KindBelongsToMany:
		sk, err := keyAttribute(e, d.SourceKey)
		if err != nil {
			return nil, err
		}
		tk, err := keyAttribute(target, d.TargetKey)
		if err != nil {
			return nil, err
		}
		a.SourceKey, a.TargetKey = sk.Name, tk.Name
		a.ForeignKey, a.OtherKey = d.ForeignKey, d.OtherKey
		if a.ForeignKey == "" {
			a.ForeignKey = defaultForeignKey(e, sk)
		}
		if a.OtherKey == "" {
			a.OtherKey = defaultForeignKey(target, tk)
		}
		if a.ForeignKey == a.OtherKey {
			return nil, strata.NewDefinitionError(e.Name, a.As, fmt.Errorf("foreign key and other key are both %q", a.ForeignKey))
		}
		through, err := g.junction(e, target, d.Through)
		if err != nil {
			return nil, err
		}
		a.Through = through
		if err := ensureJunctionKey(through, a.ForeignKey, sk); err != nil {
			return nil, err
		}
		if err := ensureJunctionKey(through, a.OtherKey, tk); err != nil {
			return nil, err
		}
	default:
		return nil, strata.NewDefinitionError(e.Name, a.As, fmt.Errorf("invalid association kind %d", d.Kind))
	}
	return a, nil
}

// junction returns the named junction entity, synthesizing it when it was
// not declared.
func (g *Graph) junction(source, target *Entity, name string) (*Entity, error) {
	if name == "" {
		a, b := source.Name, target.Name
		if b < a {
			a, b = b, a
		}
		name = a + b
	}
	if e, ok := g.entities[name]; ok {
		return e, nil
	}
	e, err := Define(name, junction())
	if err != nil {
		return nil, err
	}
	// Drop the implicit id; the two foreign keys form the primary key.
	e.Attributes = nil
	if err := e.index(); err != nil {
		return nil, err
	}
	g.entities[name] = e
	g.order = append(g.order, e)
	return e, nil
}

func keyAttribute(e *Entity, name string) (*field.Descriptor, error) {
	if name == "" {
		pk := e.PrimaryKey()
		if pk == nil {
			return nil, strata.NewDefinitionError(e.Name, "", errors.New("no primary key to reference"))
		}
		return pk, nil
	}
	d, ok := e.Attribute(name)
	if !ok {
		return nil, strata.NewDefinitionError(e.Name, name, errors.New("referenced key is not declared"))
	}
	return d, nil
}

func defaultForeignKey(owner *Entity, key *field.Descriptor) string {
	return inflect.Underscore(inflect.Singularize(owner.Name)) + "_" + inflect.Underscore(key.Name)
}

// referenceInfo returns the type of a column referencing key.
func referenceInfo(key *field.Descriptor) *field.TypeInfo {
	info := *key.Info
	return &info
}

func (g *Graph) ensureForeignKey(owner *Entity, name string, key *field.Descriptor, nillable, unique bool) error {
	if d, ok := owner.Attribute(name); ok {
		// A key added for the other side of the association becomes
		// NOT NULL when this side requires it.
		if g.added[d] && !nillable {
			d.Nillable = false
		}
		return nil
	}
	d := &field.Descriptor{Name: name, Info: referenceInfo(key), Nillable: nillable, Unique: unique}
	g.added[d] = true
	return owner.addAttribute(d)
}

func ensureJunctionKey(through *Entity, name string, key *field.Descriptor) error {
	if _, ok := through.Attribute(name); ok {
		return nil
	}
	d := &field.Descriptor{Name: name, Info: referenceInfo(key)}
	if through.Junction() {
		d.PrimaryKey = true
	}
	return through.addAttribute(d)
}

// Entity returns the entity with the given name.
func (g *Graph) Entity(name string) (*Entity, bool) {
	e, ok := g.entities[name]
	return e, ok
}

// Entities returns all entities, declared ones first in declaration
// order, then synthesized junctions.
func (g *Graph) Entities() []*Entity {
	return append([]*Entity(nil), g.order...)
}

// Resolve looks up an association of e by alias, or by target entity name
// when exactly one association of e targets it.
func (g *Graph) Resolve(e *Entity, alias string) (*Association, bool) {
	a, err := g.Association(e, alias)
	return a, err == nil
}

// Association is like Resolve but reports why the lookup failed.
func (g *Graph) Association(e *Entity, alias string) (*Association, error) {
	for _, a := range e.Associations {
		if a.As == alias {
			return a, nil
		}
	}
	var found *Association
	for _, a := range e.Associations {
		if a.Target.Name != alias {
			continue
		}
		if found != nil {
			return nil, strata.NewAssociationError(e.Name, alias, strata.ReasonAmbiguous)
		}
		found = a
	}
	if found == nil {
		return nil, strata.NewAssociationError(e.Name, alias, strata.ReasonMissing)
	}
	return found, nil
}

// ResolvePath walks a chain of association aliases starting at e.
func (g *Graph) ResolvePath(e *Entity, aliases []string) ([]*Association, error) {
	path := make([]*Association, 0, len(aliases))
	cur := e
	for _, alias := range aliases {
		a, err := g.Association(cur, alias)
		if err != nil {
			return nil, err
		}
		path = append(path, a)
		cur = a.Target
	}
	return path, nil
}

// IsAssociatedPath reports whether a dotted path like "author.publisher.name"
// names an attribute reachable from e through associations.
func (g *Graph) IsAssociatedPath(e *Entity, path string) bool {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return false
	}
	assocs, err := g.ResolvePath(e, parts[:len(parts)-1])
	if err != nil {
		return false
	}
	_, ok := assocs[len(assocs)-1].Target.Attribute(parts[len(parts)-1])
	return ok
}

// ColumnForPath returns the SQL reference of an associated attribute as it
// is aliased in joins: "author.publisher.name" becomes
// "author->publisher"."name" with the given quote function.
func (g *Graph) ColumnForPath(e *Entity, path string, quote func(string) string) (string, error) {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return "", strata.NewCompilationError(path, errors.New("not an associated path"))
	}
	assocs, err := g.ResolvePath(e, parts[:len(parts)-1])
	if err != nil {
		return "", err
	}
	target := assocs[len(assocs)-1].Target
	attr := parts[len(parts)-1]
	d, ok := target.Attribute(attr)
	if !ok {
		return "", strata.NewCompilationError(path, fmt.Errorf("%s has no attribute %q", target.Name, attr))
	}
	aliases := make([]string, len(assocs))
	for i, a := range assocs {
		aliases[i] = a.As
	}
	return quote(strings.Join(aliases, "->")) + "." + quote(d.Column()), nil
}
