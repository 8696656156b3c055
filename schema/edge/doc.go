// Package edge provides fluent builders for declaring associations between
// entities.
//
// # Association Kinds
//
//	edge.BelongsTo("Author")               // Book.author_id -> Author.id
//	edge.HasOne("Profile")                 // Profile.user_id -> User.id, unique
//	edge.HasMany("Book").As("books")       // Book.author_id -> Author.id
//	edge.BelongsToMany("Course").          // Student <-> Course
//	    Through("Enrollment")
//
// # Keys
//
// Foreign keys default to the singular source (HasOne, HasMany) or alias
// (BelongsTo) name followed by _id, and referenced keys to the primary key:
//
//	edge.BelongsTo("User").As("owner").   // owner_id
//	    ForeignKey("owner_ref").
//	    TargetKey("uuid")
//
// A junction entity that is not declared is synthesized by schema.NewGraph
// with the two foreign keys as a composite primary key.
//
// # Referential Actions
//
//	edge.BelongsTo("Author").Required().OnDelete(edge.Cascade)
//
// Without an explicit action, nullable foreign keys use SET NULL and
// required ones CASCADE.
package edge
