// Package schema defines entities and resolves the associations between
// them.
//
//   - [field]: attribute builders and value codecs
//   - [edge]: association builders
//   - [mixin]: reusable definition components
//
// # Quick Start
//
//	author := schema.MustDefine("Author",
//	    schema.Fields(
//	        field.String("name").NotEmpty(),
//	        field.Enum("status").Values("active", "retired").Default("active"),
//	    ),
//	    schema.Edges(edge.HasMany("Book").As("books")),
//	)
//	book := schema.MustDefine("Book",
//	    schema.Fields(field.String("title")),
//	    schema.Edges(edge.BelongsTo("Author").As("author")),
//	)
//	graph, err := schema.NewGraph(author, book)
//
// An entity without a primary key attribute gets an auto-increment
// INTEGER "id". Table names default to the pluralized, underscored entity
// name ("BookReview" becomes "book_reviews").
//
// # Associations
//
// NewGraph resolves every declared edge into an Association. Default
// foreign keys are derived from names: BelongsTo "author" stores
// "author_id" on the source, HasMany from "Author" stores "author_id" on
// the target. Missing foreign-key attributes are added to the owning
// entity. A BelongsToMany junction that is not declared is synthesized
// with both foreign keys as its primary key.
//
// Lookups accept an alias or, when it is unambiguous, a target entity
// name:
//
//	a, err := graph.Association(author, "books")
//	a, err = graph.Association(author, "Book")
package schema
