// Package fixture holds the entity graph shared by the compiler and runtime
// tests.
package fixture

import (
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Graph returns a fresh library graph:
//
//	Author   hasMany Book (books), belongsTo Publisher (publisher)
//	Book     belongsTo Author (author, required)
//	Student  belongsToMany Course through Enrollment (courses)
//	Course   belongsToMany Student through Enrollment (students)
//	Post     timestamps and soft delete
func Graph() *schema.Graph {
	return schema.MustNewGraph(
		schema.MustDefine("Author",
			schema.Fields(
				field.String("name"),
				field.String("email").Unique().Nillable(),
			),
			schema.Edges(
				edge.HasMany("Book").As("books"),
				edge.BelongsTo("Publisher").As("publisher"),
			),
		),
		schema.MustDefine("Book",
			schema.Fields(
				field.String("title").StorageKey("book_title"),
				field.Enum("status").Values("active", "archived").Default("active"),
				field.Int("pages").Nillable(),
			),
			schema.Edges(edge.BelongsTo("Author").As("author").Required()),
		),
		schema.MustDefine("Publisher",
			schema.Fields(field.String("name")),
		),
		schema.MustDefine("Student",
			schema.Fields(field.String("name")),
			schema.Edges(edge.BelongsToMany("Course").Through("Enrollment").As("courses")),
		),
		schema.MustDefine("Course",
			schema.Fields(field.String("title")),
			schema.Edges(edge.BelongsToMany("Student").Through("Enrollment").As("students")),
		),
		schema.MustDefine("Enrollment",
			schema.Fields(field.String("grade").Nillable()),
		),
		schema.MustDefine("Post",
			schema.Fields(
				field.String("title"),
				field.JSON("meta").Nillable(),
				field.Time("created_at"),
				field.Time("updated_at"),
				field.Time("deleted_at").Nillable(),
			),
			schema.Timestamps("created_at", "updated_at"),
			schema.Paranoid("deleted_at"),
		),
	)
}

// Entity returns the named entity of g or panics.
func Entity(g *schema.Graph, name string) *schema.Entity {
	e, ok := g.Entity(name)
	if !ok {
		panic("fixture: unknown entity " + name)
	}
	return e
}
