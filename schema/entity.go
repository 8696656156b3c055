package schema

import (
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Mixin is a reusable set of attributes, associations and entity options.
type Mixin interface {
	Fields() []field.Field
	Edges() []edge.Edge
	Options() []Option
}

// Option configures an entity definition.
type Option func(*config)

type config struct {
	table     string
	schema    string
	fields    []field.Field
	edges     []edge.Edge
	mixins    []Mixin
	createdAt string
	updatedAt string
	deletedAt string
	junction  bool
	comment   string
}

// Table sets the table name. It defaults to the pluralized, underscored
// entity name.
func Table(name string) Option {
	return func(c *config) { c.table = name }
}

// InSchema places the table in a database schema.
func InSchema(name string) Option {
	return func(c *config) { c.schema = name }
}

// Fields adds attributes to the entity.
func Fields(fields ...field.Field) Option {
	return func(c *config) { c.fields = append(c.fields, fields...) }
}

// Edges adds associations to the entity.
func Edges(edges ...edge.Edge) Option {
	return func(c *config) { c.edges = append(c.edges, edges...) }
}

// Mixins adds mixins to the entity. Mixin attributes come first.
func Mixins(mixins ...Mixin) Option {
	return func(c *config) { c.mixins = append(c.mixins, mixins...) }
}

// Timestamps names the attributes maintained on create and update. An
// empty name disables the corresponding timestamp.
func Timestamps(createdAt, updatedAt string) Option {
	return func(c *config) {
		c.createdAt = createdAt
		c.updatedAt = updatedAt
	}
}

// CreatedAt names the attribute set when a row is created.
func CreatedAt(name string) Option {
	return func(c *config) { c.createdAt = name }
}

// UpdatedAt names the attribute set whenever a row is written.
func UpdatedAt(name string) Option {
	return func(c *config) { c.updatedAt = name }
}

// Paranoid enables soft deletion through the given nullable timestamp
// attribute.
func Paranoid(deletedAt string) Option {
	return func(c *config) { c.deletedAt = deletedAt }
}

// Comment sets the table comment.
func Comment(c string) Option {
	return func(cfg *config) { cfg.comment = c }
}

func junction() Option {
	return func(c *config) { c.junction = true }
}

// UniqueGroup is a unique constraint over one or more attributes.
type UniqueGroup struct {
	Name       string
	Attributes []string
}

// Entity is a resolved entity definition. Entities are immutable once the
// Graph that owns them is built.
type Entity struct {
	Name    string
	Table   string
	Schema  string
	Comment string
	// Attributes in declaration order; mixin attributes first.
	Attributes    []*field.Descriptor
	PrimaryKeys   []*field.Descriptor
	AutoIncrement *field.Descriptor
	CreatedAt     string
	UpdatedAt     string
	DeletedAt     string
	UniqueGroups  []UniqueGroup
	Edges         []*edge.Descriptor
	// Associations is filled by NewGraph.
	Associations []*Association

	byName   map[string]*field.Descriptor
	byColumn map[string]*field.Descriptor
	junction bool
}

// Define builds an entity definition. When no attribute is a primary key,
// an auto-increment INTEGER "id" primary key is prepended.
func Define(name string, opts ...Option) (*Entity, error) {
	if name == "" {
		return nil, strata.NewDefinitionError("", "", errors.New("missing entity name"))
	}
	pre := &config{}
	for _, opt := range opts {
		opt(pre)
	}
	var (
		cfg    = &config{}
		fields []field.Field
		edges  []edge.Edge
	)
	for _, m := range pre.mixins {
		fields = append(fields, m.Fields()...)
		edges = append(edges, m.Edges()...)
		for _, opt := range m.Options() {
			opt(cfg)
		}
	}
	// Options given directly override the ones contributed by mixins.
	for _, opt := range opts {
		opt(cfg)
	}
	fields = append(fields, cfg.fields...)
	edges = append(edges, cfg.edges...)

	e := &Entity{
		Name:      name,
		Table:     cfg.table,
		Schema:    cfg.schema,
		Comment:   cfg.comment,
		CreatedAt: cfg.createdAt,
		UpdatedAt: cfg.updatedAt,
		DeletedAt: cfg.deletedAt,
		junction:  cfg.junction,
	}
	if e.Table == "" {
		e.Table = inflect.Underscore(inflect.Pluralize(name))
	}
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, strata.NewDefinitionError(name, d.Name, d.Err)
		}
		e.Attributes = append(e.Attributes, d.Clone())
	}
	for _, ed := range edges {
		d := ed.Descriptor()
		if d.Err != nil {
			return nil, strata.NewDefinitionError(name, d.As, d.Err)
		}
		c := *d
		e.Edges = append(e.Edges, &c)
	}
	hasPK := false
	for _, d := range e.Attributes {
		hasPK = hasPK || d.PrimaryKey
	}
	if !hasPK {
		id := field.Int("id").PrimaryKey().AutoIncrement().Descriptor()
		e.Attributes = append([]*field.Descriptor{id}, e.Attributes...)
	}
	if err := e.index(); err != nil {
		return nil, err
	}
	return e, nil
}

// MustDefine is like Define but panics on error.
func MustDefine(name string, opts ...Option) *Entity {
	e, err := Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// index computes the lookup tables, primary keys and unique groups.
func (e *Entity) index() error {
	e.byName = make(map[string]*field.Descriptor, len(e.Attributes))
	e.byColumn = make(map[string]*field.Descriptor, len(e.Attributes))
	e.PrimaryKeys, e.AutoIncrement, e.UniqueGroups = nil, nil, nil
	groups := make(map[string]int)
	for _, d := range e.Attributes {
		if _, ok := e.byName[d.Name]; ok {
			return strata.NewDefinitionError(e.Name, d.Name, errors.New("duplicate attribute"))
		}
		if _, ok := e.byColumn[d.Column()]; ok {
			return strata.NewDefinitionError(e.Name, d.Name, fmt.Errorf("duplicate column %q", d.Column()))
		}
		e.byName[d.Name] = d
		e.byColumn[d.Column()] = d
		if d.PrimaryKey {
			e.PrimaryKeys = append(e.PrimaryKeys, d)
		}
		if d.AutoIncrement {
			if e.AutoIncrement != nil {
				return strata.NewDefinitionError(e.Name, d.Name, fmt.Errorf("%s is already auto-increment", e.AutoIncrement.Name))
			}
			e.AutoIncrement = d
		}
		switch {
		case d.Unique && !d.PrimaryKey:
			e.UniqueGroups = append(e.UniqueGroups, UniqueGroup{
				Name:       e.Table + "_" + d.Column() + "_key",
				Attributes: []string{d.Name},
			})
		case d.UniqueGroup != "":
			if i, ok := groups[d.UniqueGroup]; ok {
				e.UniqueGroups[i].Attributes = append(e.UniqueGroups[i].Attributes, d.Name)
				continue
			}
			groups[d.UniqueGroup] = len(e.UniqueGroups)
			e.UniqueGroups = append(e.UniqueGroups, UniqueGroup{Name: d.UniqueGroup, Attributes: []string{d.Name}})
		}
	}
	for _, name := range []string{e.CreatedAt, e.UpdatedAt, e.DeletedAt} {
		if name == "" {
			continue
		}
		d, ok := e.byName[name]
		if !ok {
			return strata.NewDefinitionError(e.Name, name, errors.New("timestamp attribute is not declared"))
		}
		if d.Info.Type != field.TypeTime && d.Info.Type != field.TypeDate {
			return strata.NewDefinitionError(e.Name, name, errors.New("timestamp attribute must be a time"))
		}
	}
	if e.DeletedAt != "" && !e.byName[e.DeletedAt].Nillable {
		return strata.NewDefinitionError(e.Name, e.DeletedAt, errors.New("deleted-at attribute must be nillable"))
	}
	return nil
}

// clone returns a copy of e that can be extended without touching e.
func (e *Entity) clone() *Entity {
	c := *e
	c.Attributes = append([]*field.Descriptor(nil), e.Attributes...)
	c.Edges = append([]*edge.Descriptor(nil), e.Edges...)
	c.Associations = nil
	c.UniqueGroups = append([]UniqueGroup(nil), e.UniqueGroups...)
	return &c
}

// addAttribute appends an attribute and refreshes the lookup tables.
func (e *Entity) addAttribute(d *field.Descriptor) error {
	e.Attributes = append(e.Attributes, d)
	return e.index()
}

// Attribute returns the attribute with the given name.
func (e *Entity) Attribute(name string) (*field.Descriptor, bool) {
	d, ok := e.byName[name]
	return d, ok
}

// AttributeByColumn returns the attribute stored in the given column.
func (e *Entity) AttributeByColumn(column string) (*field.Descriptor, bool) {
	d, ok := e.byColumn[column]
	return d, ok
}

// Column maps an attribute name to its column. Unknown names are returned
// unchanged.
func (e *Entity) Column(name string) string {
	if d, ok := e.byName[name]; ok {
		return d.Column()
	}
	return name
}

// AttributeNames returns the attribute names in declaration order.
func (e *Entity) AttributeNames() []string {
	names := make([]string, len(e.Attributes))
	for i, d := range e.Attributes {
		names[i] = d.Name
	}
	return names
}

// PrimaryKey returns the first primary key attribute.
func (e *Entity) PrimaryKey() *field.Descriptor {
	if len(e.PrimaryKeys) == 0 {
		return nil
	}
	return e.PrimaryKeys[0]
}

// PrimaryKeyNames returns the primary key attribute names.
func (e *Entity) PrimaryKeyNames() []string {
	names := make([]string, len(e.PrimaryKeys))
	for i, d := range e.PrimaryKeys {
		names[i] = d.Name
	}
	return names
}

// Paranoid reports whether the entity is soft deleted.
func (e *Entity) Paranoid() bool {
	return e.DeletedAt != ""
}

// Junction reports whether the entity was synthesized as the junction of
// a many-to-many association.
func (e *Entity) Junction() bool {
	return e.junction
}
