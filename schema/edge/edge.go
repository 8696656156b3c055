package edge

import "errors"

// Kind is the association kind.
type Kind uint8

// Association kinds.
const (
	KindBelongsTo Kind = iota + 1
	KindHasOne
	KindHasMany
	KindBelongsToMany
)

// String returns the association kind name.
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "BelongsTo"
	case KindHasOne:
		return "HasOne"
	case KindHasMany:
		return "HasMany"
	case KindBelongsToMany:
		return "BelongsToMany"
	}
	return "Invalid"
}

// ToMany reports whether the association can match more than one row.
func (k Kind) ToMany() bool {
	return k == KindHasMany || k == KindBelongsToMany
}

// Referential actions.
const (
	Cascade  = "CASCADE"
	SetNull  = "SET NULL"
	Restrict = "RESTRICT"
	NoAction = "NO ACTION"
)

// Edge is implemented by association builders.
type Edge interface {
	Descriptor() *Descriptor
}

// Descriptor is the declaration of an association, before it is resolved
// against the other entities of a graph.
type Descriptor struct {
	Kind   Kind
	Target string // target entity name
	As     string // alias, derived from Target when empty
	// ForeignKey is the attribute holding the reference. It lives on the
	// source for BelongsTo, on the target for HasOne and HasMany, and on
	// the junction (pointing at the source) for BelongsToMany.
	ForeignKey string
	// SourceKey is the referenced attribute of the source (HasOne, HasMany,
	// BelongsToMany), TargetKey the referenced attribute of the target
	// (BelongsTo, BelongsToMany). Both default to the primary key.
	SourceKey string
	TargetKey string
	Through   string // junction entity name
	OtherKey  string // junction attribute pointing at the target
	Required  bool   // foreign key is NOT NULL
	OnDelete  string
	OnUpdate  string
	Comment   string
	Err       error
}

// Builder is the fluent builder for associations.
type Builder struct {
	desc *Descriptor
}

// BelongsTo declares that the source holds a foreign key to target.
func BelongsTo(target string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindBelongsTo, Target: target}}
}

// HasOne declares that target holds a unique foreign key to the source.
func HasOne(target string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindHasOne, Target: target}}
}

// HasMany declares that target holds a foreign key to the source.
func HasMany(target string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindHasMany, Target: target}}
}

// BelongsToMany declares a many-to-many association through a junction.
func BelongsToMany(target string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindBelongsToMany, Target: target}}
}

// As sets the association alias.
func (b *Builder) As(alias string) *Builder {
	b.desc.As = alias
	return b
}

// ForeignKey sets the foreign key attribute name.
func (b *Builder) ForeignKey(name string) *Builder {
	b.desc.ForeignKey = name
	return b
}

// SourceKey sets the referenced attribute of the source.
func (b *Builder) SourceKey(name string) *Builder {
	b.desc.SourceKey = name
	return b
}

// TargetKey sets the referenced attribute of the target.
func (b *Builder) TargetKey(name string) *Builder {
	b.desc.TargetKey = name
	return b
}

// Through sets the junction entity of a many-to-many association.
func (b *Builder) Through(entity string) *Builder {
	b.desc.Through = entity
	return b
}

// OtherKey sets the junction attribute pointing at the target.
func (b *Builder) OtherKey(name string) *Builder {
	b.desc.OtherKey = name
	return b
}

// Required makes the foreign key NOT NULL.
func (b *Builder) Required() *Builder {
	b.desc.Required = true
	return b
}

// OnDelete sets the ON DELETE action of the foreign key.
func (b *Builder) OnDelete(action string) *Builder {
	b.desc.OnDelete = action
	return b
}

// OnUpdate sets the ON UPDATE action of the foreign key.
func (b *Builder) OnUpdate(action string) *Builder {
	b.desc.OnUpdate = action
	return b
}

// Comment sets the association comment.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	switch {
	case d.Target == "":
		d.Err = errors.New("edge: missing target entity")
	case d.Kind != KindBelongsToMany && (d.Through != "" || d.OtherKey != ""):
		d.Err = errors.New("edge: through and other key apply to BelongsToMany only")
	default:
		d.Err = nil
	}
	return d
}
